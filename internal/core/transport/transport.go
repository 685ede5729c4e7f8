package transport

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/pkg/lib/log"
	"github.com/dep2p/go-assoc/pkg/types"
)

var logger = log.Logger("core/transport")

// FrameConn 已建立的帧连接
//
// ReadFrame 只由读泵调用，WriteFrame 只由写泵调用，二者可以并发。
type FrameConn interface {
	// ReadFrame 阻塞读取下一帧
	ReadFrame() (*types.Frame, error)

	// WriteFrame 阻塞写出一帧
	WriteFrame(f *types.Frame) error

	// Streams 返回协商后的入站/出站流数量
	Streams() (inbound, outbound int)

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// Close 优雅关闭，对端观察到 shutdown
	Close() error

	// Abort 立即中断，对端观察到 lost
	Abort() error
}

// Transport 一种传输类型的建连与监听
type Transport interface {
	// Type 返回传输类型
	Type() types.IPChannelType

	// Dial 按关联配置建立出站连接（含握手）
	Dial(ctx context.Context, cfg types.AssociationConfig) (FrameConn, error)

	// Listen 在 host:port 上监听原始连接
	Listen(host string, port int) (net.Listener, error)

	// Upgrade 对入站原始连接执行服务端握手
	Upgrade(ctx context.Context, raw net.Conn) (FrameConn, error)
}

// Config 传输层配置
type Config struct {
	MaxInboundStreams  int
	MaxOutboundStreams int
	ReceiveBufferSize  int
	OutboxSize         int
	InboxSize          int
	HandshakeTimeout   time.Duration
	ShutdownTimeout    time.Duration
	ReuseAddr          bool
	TCPNoDelay         bool
	TCPKeepAlive       time.Duration
}

// NewConfig 返回默认配置
func NewConfig() Config {
	return ConfigFrom(config.DefaultTransportConfig())
}

// ConfigFrom 从配置段转换
func ConfigFrom(c config.TransportConfig) Config {
	return Config{
		MaxInboundStreams:  c.MaxInboundStreams,
		MaxOutboundStreams: c.MaxOutboundStreams,
		ReceiveBufferSize:  c.ReceiveBufferSize,
		OutboxSize:         c.OutboxSize,
		InboxSize:          c.InboxSize,
		HandshakeTimeout:   c.HandshakeTimeout.Duration(),
		ShutdownTimeout:    c.ShutdownTimeout.Duration(),
		ReuseAddr:          c.ReuseAddr,
		TCPNoDelay:         c.TCPNoDelay,
		TCPKeepAlive:       c.TCPKeepAlive.Duration(),
	}
}

// ConfigFromUnified 从统一配置创建传输配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return NewConfig()
	}
	return ConfigFrom(cfg.Transport)
}

// Set 按传输类型索引的传输集合
type Set struct {
	transports map[types.IPChannelType]Transport
}

// NewSet 创建传输集合，同类型后注册者覆盖先注册者
func NewSet(ts ...Transport) *Set {
	s := &Set{transports: make(map[types.IPChannelType]Transport, len(ts))}
	for _, t := range ts {
		if t == nil {
			continue
		}
		s.transports[t.Type()] = t
	}
	return s
}

// Get 返回指定类型的传输
func (s *Set) Get(t types.IPChannelType) (Transport, error) {
	if tr, ok := s.transports[t]; ok {
		return tr, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransport, t)
}

// Types 返回已注册的传输类型
func (s *Set) Types() []types.IPChannelType {
	out := make([]types.IPChannelType, 0, len(s.transports))
	for t := range s.transports {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
