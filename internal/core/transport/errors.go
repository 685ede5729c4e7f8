package transport

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              传输错误
// ============================================================================

var (
	// ErrTransportIO 非致命读写错误
	ErrTransportIO = errors.New("transport io error")

	// ErrPeerShutdown 对端正常关闭
	ErrPeerShutdown = errors.New("peer shutdown")

	// ErrConnectionLost 连接异常中断
	ErrConnectionLost = errors.New("connection lost")

	// ErrChannelClosed 通道已在本端关闭
	ErrChannelClosed = errors.New("channel closed")

	// ErrHandshakeTimeout 建连或握手超时
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrUnsupportedTransport 未注册的传输类型
	ErrUnsupportedTransport = errors.New("unsupported transport")
)

// ErrFrameTooLarge 帧超过接收缓冲区，已丢弃，连接仍可用
var ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrTransportIO)

// Termination 连接终止原因
type Termination int32

const (
	// TermNone 未终止
	TermNone Termination = iota
	// TermShutdown 对端正常关闭
	TermShutdown
	// TermLost 连接丢失
	TermLost
	// TermClosed 本端关闭
	TermClosed
)

// String 返回可读表示
func (t Termination) String() string {
	switch t {
	case TermNone:
		return "none"
	case TermShutdown:
		return "shutdown"
	case TermLost:
		return "lost"
	case TermClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Classify 把致命读写错误映射为终止原因
func Classify(err error) Termination {
	switch {
	case err == nil:
		return TermNone
	case errors.Is(err, ErrChannelClosed):
		return TermClosed
	case errors.Is(err, ErrPeerShutdown):
		return TermShutdown
	default:
		return TermLost
	}
}

// IsFatal 读写错误是否意味着连接不可再用
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrTransportIO)
}
