package association

import (
	"sync/atomic"

	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/types"
)

const (
	decisionPending int32 = iota
	decisionAccepted
	decisionRejected
)

// anonymousState 匿名关联在接入闸门期间的状态
type anonymousState struct {
	decision atomic.Int32
	conn     transport.FrameConn
}

// NewAnonymous 为未匹配静态配置的入站连接创建匿名关联
//
// conn 在闸门接受后由 AdoptAnonymous 接管，onClosed 在关联终止后回调。
func NewAnonymous(cfg types.AssociationConfig, conn transport.FrameConn, env *Env, onClosed func(*Association)) *Association {
	cfg.Type = types.AssociationTypeAnonymousServer
	a := newAssociation(cfg, env)
	a.anon = &anonymousState{conn: conn}
	a.onClosed = onClosed
	return a
}

// IsAnonymous 是否为匿名关联
func (a *Association) IsAnonymous() bool { return a.anon != nil }

// AcceptAnonymous 实现 interfaces.Association
func (a *Association) AcceptAnonymous(l interfaces.AssociationListener) error {
	if a.anon == nil {
		return ErrNotAnonymous
	}
	if l == nil {
		return ErrNoListener
	}
	if !a.anon.decision.CompareAndSwap(decisionPending, decisionAccepted) {
		return ErrAnonymousDecided
	}
	a.SetListener(l)
	a.started.Store(true)
	a.setState(types.StateStarted)
	return nil
}

// RejectAnonymous 实现 interfaces.Association
func (a *Association) RejectAnonymous() {
	if a.anon == nil {
		return
	}
	a.anon.decision.CompareAndSwap(decisionPending, decisionRejected)
}

// StopAnonymous 实现 interfaces.Association
func (a *Association) StopAnonymous() error {
	if a.anon == nil {
		return ErrNotAnonymous
	}
	return a.Stop()
}

// AnonymousAccepted 闸门是否已接受
func (a *Association) AnonymousAccepted() bool {
	return a.anon != nil && a.anon.decision.Load() == decisionAccepted
}

// AdoptAnonymous 闸门接受后接管入站连接，在 reactor goroutine 上调用
func (a *Association) AdoptAnonymous() bool {
	if a.anon == nil || a.anon.conn == nil || !a.AnonymousAccepted() || !a.started.Load() {
		return false
	}
	conn := a.anon.conn
	a.anon.conn = nil
	a.adopt(conn)
	a.commUp()
	return true
}

// DiscardAnonymous 闸门拒绝后关闭入站连接
func (a *Association) DiscardAnonymous() {
	if a.anon == nil {
		return
	}
	a.anon.decision.CompareAndSwap(decisionPending, decisionRejected)
	if conn := a.anon.conn; conn != nil {
		a.anon.conn = nil
		_ = conn.Abort()
	}
	a.started.Store(false)
	a.setState(types.StateStopped)
}
