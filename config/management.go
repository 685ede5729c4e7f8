package config

import (
	"encoding/json"
	"errors"
	"runtime"
	"time"
)

// ManagementConfig 管理器配置
//
// 对应进程级的全局设置：
//   - 重连延迟（客户端关联失败后等待多久重新发起连接）
//   - worker 数量与单线程模式
//   - IO 错误阈值
//   - reactor 的 select 超时
type ManagementConfig struct {
	// ConnectDelay 重连延迟
	ConnectDelay Duration `json:"connect_delay"`

	// WorkerThreads worker 数量，0 表示 2×CPU 核数
	WorkerThreads int `json:"worker_threads"`

	// SingleThread 单线程模式：监听器直接在 reactor goroutine 上回调
	SingleThread bool `json:"single_thread"`

	// MaxIOErrors IO 错误阈值，超过后强制关闭并重连
	MaxIOErrors int `json:"max_io_errors"`

	// SelectTimeout reactor 单次 select 的最长阻塞时间
	SelectTimeout Duration `json:"select_timeout"`

	// Branching 多路复用关联建立后是否剥离为独立通道
	Branching bool `json:"branching,omitempty"`

	// Pinned 显式设置过的字段，名册中保存的设置不覆盖它们
	Pinned Setting `json:"-"`
}

// Setting 可随名册持久化的全局设置
type Setting uint8

const (
	SettingConnectDelay Setting = 1 << iota
	SettingWorkerThreads
	SettingSingleThread
	SettingMaxIOErrors
)

// settingKeys 配置文件中对应的键
var settingKeys = map[string]Setting{
	"connect_delay":  SettingConnectDelay,
	"worker_threads": SettingWorkerThreads,
	"single_thread":  SettingSingleThread,
	"max_io_errors":  SettingMaxIOErrors,
}

// DefaultManagementConfig 返回默认管理器配置
func DefaultManagementConfig() ManagementConfig {
	return ManagementConfig{
		ConnectDelay:  Duration(5 * time.Second),        // 重连延迟：5 秒
		WorkerThreads: 0,                                // worker 数量：2×CPU
		SingleThread:  false,                            // 默认使用 worker 池投递
		MaxIOErrors:   3,                                // IO 错误阈值：3 次
		SelectTimeout: Duration(500 * time.Millisecond), // select 超时：500ms
		Branching:     false,
	}
}

// Validate 验证管理器配置
func (c ManagementConfig) Validate() error {
	if c.ConnectDelay < 0 {
		return errors.New("connect delay must be non-negative")
	}
	if c.WorkerThreads < 0 {
		return errors.New("worker threads must be non-negative")
	}
	if c.MaxIOErrors < 0 {
		return errors.New("max io errors must be non-negative")
	}
	if c.SelectTimeout <= 0 {
		return errors.New("select timeout must be positive")
	}
	return nil
}

// EffectiveWorkerThreads 返回实际 worker 数量
func (c ManagementConfig) EffectiveWorkerThreads() int {
	if c.WorkerThreads > 0 {
		return c.WorkerThreads
	}
	return 2 * runtime.NumCPU()
}

// WithConnectDelay 设置重连延迟
func (c ManagementConfig) WithConnectDelay(d time.Duration) ManagementConfig {
	c.ConnectDelay = Duration(d)
	c.Pinned |= SettingConnectDelay
	return c
}

// WithWorkerThreads 设置 worker 数量
func (c ManagementConfig) WithWorkerThreads(n int) ManagementConfig {
	c.WorkerThreads = n
	c.Pinned |= SettingWorkerThreads
	return c
}

// WithSingleThread 设置单线程模式
func (c ManagementConfig) WithSingleThread(enabled bool) ManagementConfig {
	c.SingleThread = enabled
	c.Pinned |= SettingSingleThread
	return c
}

// WithMaxIOErrors 设置 IO 错误阈值
func (c ManagementConfig) WithMaxIOErrors(n int) ManagementConfig {
	c.MaxIOErrors = n
	c.Pinned |= SettingMaxIOErrors
	return c
}

// IsPinned 字段是否显式设置过
func (c ManagementConfig) IsPinned(s Setting) bool {
	return c.Pinned&s != 0
}

// pinKeys 把配置文件中出现的键标记为显式设置
func (c *ManagementConfig) pinKeys(raw map[string]json.RawMessage) {
	for key := range raw {
		if s, ok := settingKeys[key]; ok {
			c.Pinned |= s
		}
	}
}
