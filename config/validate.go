package config

import (
	"errors"
	"fmt"
)

// ValidateAll 验证整个配置的有效性
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 非正的 select 超时 -> 使用默认值
//   - 负的重连延迟 -> 使用默认值
//   - 非正的队列长度 -> 使用默认值
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	defMgmt := DefaultManagementConfig()
	if c.Management.SelectTimeout <= 0 {
		c.Management.SelectTimeout = defMgmt.SelectTimeout
	}
	if c.Management.ConnectDelay < 0 {
		c.Management.ConnectDelay = defMgmt.ConnectDelay
	}

	defTr := DefaultTransportConfig()
	if c.Transport.OutboxSize <= 0 {
		c.Transport.OutboxSize = defTr.OutboxSize
	}
	if c.Transport.InboxSize <= 0 {
		c.Transport.InboxSize = defTr.InboxSize
	}
	if c.Transport.HandshakeTimeout <= 0 {
		c.Transport.HandshakeTimeout = defTr.HandshakeTimeout
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed after fix: %w", err)
	}
	return c, nil
}
