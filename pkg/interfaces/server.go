// Package interfaces 定义 go-assoc 公共接口
//
// 本文件定义 Server 组件接口，对应 internal/core/server/ 实现。
package interfaces

import "github.com/dep2p/go-assoc/pkg/types"

// Server 监听端点，接受入站连接并匹配到关联
type Server interface {
	// Name 返回 Server 名称
	Name() string

	// Transport 返回传输类型
	Transport() types.IPChannelType

	// Config 返回静态配置副本
	Config() types.ServerConfig

	// IsStarted 是否已启动
	IsStarted() bool

	// Associations 返回静态配置的关联名称
	Associations() []string

	// AnonymousAssociations 返回当前已接受的匿名关联
	AnonymousAssociations() []Association
}

// ServerListener 服务端接入闸门
//
// 仅当 Server 允许匿名接入且入站对端不匹配任何静态关联时调用。
// 实现方在回调内调用 a.AcceptAnonymous(listener) 并返回 true 表示接受；
// 返回 false 或未绑定监听器均视为拒绝。
type ServerListener interface {
	OnNewRemoteConnection(s Server, a Association) bool
}

// ServerListenerFunc 函数适配器
type ServerListenerFunc func(s Server, a Association) bool

// OnNewRemoteConnection 实现 ServerListener
func (f ServerListenerFunc) OnNewRemoteConnection(s Server, a Association) bool {
	return f(s, a)
}
