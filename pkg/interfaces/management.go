// Package interfaces 定义 go-assoc 公共接口
//
// 本文件定义管理 API，对应 internal/core/manager/ 实现。
package interfaces

import (
	"context"
	"time"

	"github.com/dep2p/go-assoc/pkg/types"
)

// Management 关联管理器
//
// 所有方法在调用方 goroutine 上同步执行，只负责修改名册并向 reactor
// 投递变更请求，不等待 I/O 完成。参数错误包装 types.ErrValidation。
type Management interface {
	// ==================== 生命周期 ====================

	// Start 启动 reactor、worker 池并加载名册
	Start(ctx context.Context) error

	// Stop 停止所有关联与 Server 并保存名册
	Stop(ctx context.Context) error

	// IsStarted 是否已启动
	IsStarted() bool

	// ==================== Server ====================

	// AddServer 添加 Server
	AddServer(cfg types.ServerConfig) (Server, error)

	// RemoveServer 移除 Server，仍有关联或已启动时失败
	RemoveServer(name string) error

	// StartServer 启动 Server，绑定失败同步返回
	StartServer(name string) error

	// StopServer 停止 Server
	StopServer(name string) error

	// ==================== Association ====================

	// AddServerAssociation 为 Server 添加静态服务端关联
	AddServerAssociation(cfg types.AssociationConfig) (Association, error)

	// AddAssociation 添加客户端关联
	AddAssociation(cfg types.AssociationConfig) (Association, error)

	// RemoveAssociation 移除关联，已启动时失败
	RemoveAssociation(name string) error

	// StartAssociation 启动关联
	StartAssociation(name string) error

	// StopAssociation 停止关联
	StopAssociation(name string) error

	// ==================== 查询 ====================

	// Association 按名称查找关联
	Association(name string) (Association, error)

	// Associations 返回名册快照中的全部关联
	Associations() map[string]Association

	// Server 按名称查找 Server
	Server(name string) (Server, error)

	// Servers 返回全部 Server
	Servers() []Server

	// Snapshot 返回可持久化的名册快照
	Snapshot() *types.RosterSnapshot

	// ==================== 全局配置 ====================

	ConnectDelay() time.Duration
	SetConnectDelay(d time.Duration) error

	WorkerThreads() int
	SetWorkerThreads(n int) error

	SingleThread() bool
	SetSingleThread(enabled bool) error

	MaxIOErrors() int
	SetMaxIOErrors(n int) error

	// SetServerListener 设置匿名接入闸门
	SetServerListener(l ServerListener)
}
