package types

import (
	"fmt"
	"strings"
)

// ============================================================================
//                              AssociationType - 关联类型
// ============================================================================

// AssociationType 关联类型
type AssociationType int

const (
	// AssociationTypeClient 客户端关联，主动发起连接并自动重连
	AssociationTypeClient AssociationType = iota
	// AssociationTypeServer 服务端关联，由 Server 静态配置
	AssociationTypeServer
	// AssociationTypeAnonymousServer 匿名服务端关联，由 Server 在接受未知对端时创建
	AssociationTypeAnonymousServer
)

// String 返回关联类型的字符串表示
func (t AssociationType) String() string {
	switch t {
	case AssociationTypeClient:
		return "CLIENT"
	case AssociationTypeServer:
		return "SERVER"
	case AssociationTypeAnonymousServer:
		return "ANONYMOUS_SERVER"
	default:
		return "UNKNOWN"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (t AssociationType) MarshalText() ([]byte, error) {
	s := t.String()
	if s == "UNKNOWN" {
		return nil, fmt.Errorf("%w: association type %d", ErrInvalidAssociationType, int(t))
	}
	return []byte(s), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (t *AssociationType) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "CLIENT":
		*t = AssociationTypeClient
	case "SERVER":
		*t = AssociationTypeServer
	case "ANONYMOUS_SERVER":
		*t = AssociationTypeAnonymousServer
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAssociationType, string(b))
	}
	return nil
}

// ============================================================================
//                              IPChannelType - 传输类型
// ============================================================================

// IPChannelType 传输类型
type IPChannelType int

const (
	// IPChannelSCTP SCTP 传输
	IPChannelSCTP IPChannelType = iota
	// IPChannelTCP TCP 传输
	IPChannelTCP
)

// String 返回传输类型的字符串表示
func (t IPChannelType) String() string {
	switch t {
	case IPChannelSCTP:
		return "SCTP"
	case IPChannelTCP:
		return "TCP"
	default:
		return "UNKNOWN"
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (t IPChannelType) MarshalText() ([]byte, error) {
	s := t.String()
	if s == "UNKNOWN" {
		return nil, fmt.Errorf("%w: transport %d", ErrInvalidTransport, int(t))
	}
	return []byte(s), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (t *IPChannelType) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "SCTP":
		*t = IPChannelSCTP
	case "TCP":
		*t = IPChannelTCP
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTransport, string(b))
	}
	return nil
}

// ============================================================================
//                              AssociationState - 关联状态
// ============================================================================

// AssociationState 关联状态
//
// Created → Started → {Up, Down}（Started 期间 Up/Down 交替）→ Stopped
type AssociationState int

const (
	// StateCreated 已创建，尚未启动
	StateCreated AssociationState = iota
	// StateStarted 已启动，正在建立连接
	StateStarted
	// StateUp 通信已建立
	StateUp
	// StateDown 通信中断（Started 期间）
	StateDown
	// StateStopped 已停止，可移除
	StateStopped
)

// String 返回状态的字符串表示
func (s AssociationState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Removable 是否处于可移除状态
func (s AssociationState) Removable() bool {
	return s == StateCreated || s == StateStopped
}
