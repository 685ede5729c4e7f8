// Package interfaces 定义 go-assoc 公共接口
//
// 本文件定义 Association 组件接口，对应 internal/core/association/ 实现。
package interfaces

import "github.com/dep2p/go-assoc/pkg/types"

// Association 一个逻辑点对点传输关联
//
// 屏蔽传输类型（SCTP/TCP）、连接方向以及是否经由多路复用通道承载。
type Association interface {
	// Name 返回关联名称
	Name() string

	// Type 返回关联类型
	Type() types.AssociationType

	// Transport 返回传输类型
	Transport() types.IPChannelType

	// Config 返回关联的静态配置副本
	Config() types.AssociationConfig

	// State 返回当前状态
	State() types.AssociationState

	// IsStarted 是否已启动
	IsStarted() bool

	// IsUp 通信是否已建立
	IsUp() bool

	// Streams 返回协商后的入站/出站流数量，未建立时返回 (0, 0)
	Streams() (inbound, outbound int)

	// HostAddress 返回本地地址
	HostAddress() string

	// HostPort 返回本地端口
	HostPort() int

	// PeerAddress 返回对端地址
	PeerAddress() string

	// PeerPort 返回对端端口
	PeerPort() int

	// ServerName 返回所属 Server 名称（客户端关联为空）
	ServerName() string

	// SetListener 绑定事件监听器，Start 之前必须调用
	SetListener(listener AssociationListener)

	// Send 异步发送一帧
	//
	// 仅在 Started 且 Up 时有效。流号超出协商范围的帧不会入队，
	// 而是通过 AssociationListener.OnInvalidStreamID 报告一次，返回 nil。
	Send(frame *types.Frame) error

	// ==================== 匿名关联 ====================

	// AcceptAnonymous 接受匿名关联并绑定监听器
	AcceptAnonymous(listener AssociationListener) error

	// RejectAnonymous 拒绝匿名关联，底层通道随后被关闭
	RejectAnonymous()

	// StopAnonymous 停止已接受的匿名关联
	StopAnonymous() error
}

// AssociationListener 关联事件监听器
//
// 由上层协议实现，核心在 reactor 或 worker goroutine 上回调。
// 回调中的 panic 会被捕获并记录，不影响其他关联。
type AssociationListener interface {
	// OnCommunicationUp 通信建立
	OnCommunicationUp(a Association, maxInboundStreams, maxOutboundStreams int)

	// OnCommunicationLost 通信丢失
	OnCommunicationLost(a Association)

	// OnCommunicationShutdown 通信正常关闭
	OnCommunicationShutdown(a Association)

	// OnCommunicationRestart 对端重启，关联状态不变
	OnCommunicationRestart(a Association)

	// OnPayload 收到载荷
	//
	// 同一关联同一流上的帧按到达顺序回调。
	OnPayload(a Association, frame *types.Frame)

	// OnInvalidStreamID 发送的帧流号越界，帧已丢弃
	OnInvalidStreamID(frame *types.Frame)
}

// NoopAssociationListener 空实现，可嵌入以只覆盖关心的回调
type NoopAssociationListener struct{}

var _ AssociationListener = NoopAssociationListener{}

// OnCommunicationUp 空实现
func (NoopAssociationListener) OnCommunicationUp(Association, int, int) {}

// OnCommunicationLost 空实现
func (NoopAssociationListener) OnCommunicationLost(Association) {}

// OnCommunicationShutdown 空实现
func (NoopAssociationListener) OnCommunicationShutdown(Association) {}

// OnCommunicationRestart 空实现
func (NoopAssociationListener) OnCommunicationRestart(Association) {}

// OnPayload 空实现
func (NoopAssociationListener) OnPayload(Association, *types.Frame) {}

// OnInvalidStreamID 空实现
func (NoopAssociationListener) OnInvalidStreamID(*types.Frame) {}
