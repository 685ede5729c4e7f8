package config

import (
	"errors"
	"time"
)

// TransportConfig 传输层配置
type TransportConfig struct {
	// MaxInboundStreams 入站流数量
	MaxInboundStreams int `json:"max_inbound_streams"`

	// MaxOutboundStreams 出站流数量
	MaxOutboundStreams int `json:"max_outbound_streams"`

	// ReceiveBufferSize 单条消息接收缓冲区大小（也是 SCTP 最大消息长度）
	ReceiveBufferSize int `json:"receive_buffer_size"`

	// OutboxSize 每个通道写队列长度
	OutboxSize int `json:"outbox_size"`

	// InboxSize 每个通道读队列长度
	InboxSize int `json:"inbox_size"`

	// HandshakeTimeout 建连（含 SCTP 握手）超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// ShutdownTimeout SCTP 优雅关闭超时，超时后 abort
	ShutdownTimeout Duration `json:"shutdown_timeout"`

	// ReuseAddr 本地端口复用（SO_REUSEADDR），客户端重连时可重新绑定固定端口
	ReuseAddr bool `json:"reuse_addr"`

	// TCPNoDelay 禁用 Nagle
	TCPNoDelay bool `json:"tcp_no_delay"`

	// TCPKeepAlive TCP keepalive 周期，0 表示使用系统默认
	TCPKeepAlive Duration `json:"tcp_keep_alive,omitempty"`
}

// DefaultTransportConfig 返回默认传输层配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxInboundStreams:  32,
		MaxOutboundStreams: 32,
		ReceiveBufferSize:  65536,
		OutboxSize:         256,
		InboxSize:          1024,
		HandshakeTimeout:   Duration(5 * time.Second),
		ShutdownTimeout:    Duration(2 * time.Second),
		ReuseAddr:          true,
		TCPNoDelay:         true,
	}
}

// Validate 验证传输层配置
func (c TransportConfig) Validate() error {
	if c.MaxInboundStreams <= 0 || c.MaxInboundStreams > 65535 {
		return errors.New("max inbound streams must be in [1, 65535]")
	}
	if c.MaxOutboundStreams <= 0 || c.MaxOutboundStreams > 65535 {
		return errors.New("max outbound streams must be in [1, 65535]")
	}
	if c.ReceiveBufferSize < 1024 {
		return errors.New("receive buffer size must be at least 1024")
	}
	if c.OutboxSize <= 0 || c.InboxSize <= 0 {
		return errors.New("queue sizes must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return errors.New("handshake timeout must be positive")
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown timeout must be non-negative")
	}
	return nil
}

// WithStreams 设置入站/出站流数量
func (c TransportConfig) WithStreams(in, out int) TransportConfig {
	c.MaxInboundStreams = in
	c.MaxOutboundStreams = out
	return c
}

// WithHandshakeTimeout 设置建连超时
func (c TransportConfig) WithHandshakeTimeout(d time.Duration) TransportConfig {
	c.HandshakeTimeout = Duration(d)
	return c
}
