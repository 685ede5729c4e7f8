package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dep2p/go-assoc/config"
)

// 环境变量名，均使用 ASSOC_ 前缀
const (
	envPrefix       = "ASSOC_"
	envConnectDelay = "CONNECT_DELAY"
	envWorkers      = "WORKER_THREADS"
	envSingleThread = "SINGLE_THREAD"
	envMaxIOErrors  = "MAX_IO_ERRORS"
	envLogLevel     = "LOG_LEVEL"
	envLogFile      = "LOG_FILE"
)

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。无法解析的值被忽略。
func applyEnvOverrides(cfg *config.Config) {
	// ASSOC_CONNECT_DELAY，如 "2s"
	if v := os.Getenv(envPrefix + envConnectDelay); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Management = cfg.Management.WithConnectDelay(d)
		}
	}

	if v := os.Getenv(envPrefix + envWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Management = cfg.Management.WithWorkerThreads(n)
		}
	}

	if v := os.Getenv(envPrefix + envSingleThread); v != "" {
		cfg.Management = cfg.Management.WithSingleThread(parseBool(v))
	}

	if v := os.Getenv(envPrefix + envMaxIOErrors); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Management = cfg.Management.WithMaxIOErrors(n)
		}
	}

	if v := os.Getenv(envPrefix + envLogLevel); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv(envPrefix + envLogFile); v != "" {
		cfg.Log.File = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
