package reactor

import (
	"errors"
	"time"

	"github.com/dep2p/go-assoc/config"
)

// Config reactor 配置
type Config struct {
	// SelectTimeout 单次 select 的最长阻塞时间
	SelectTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		SelectTimeout: 500 * time.Millisecond,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.SelectTimeout <= 0 {
		return errors.New("select timeout must be positive")
	}
	return nil
}

// ConfigFromUnified 从统一配置创建 reactor 配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		SelectTimeout: cfg.Management.SelectTimeout.Duration(),
	}
}
