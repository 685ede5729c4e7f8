package reactor

import (
	"fmt"
	"time"
)

// ChangeRequest 由其他 goroutine 提交、由 reactor 应用的变更请求
//
// 封闭的变体集合：RegisterRequest、ChangeOpsRequest、ConnectRequest、CloseRequest。
// 每个请求只被消费一次。
type ChangeRequest interface {
	// apply 在 reactor goroutine 上应用请求，返回 true 表示尚未到期需保留
	apply(r *Reactor, now time.Time) (keep bool)

	// kind 返回请求类型（日志与指标使用）
	kind() string
}

// RegisterRequest 把通道注册到 Selector 并附着处理者
type RegisterRequest struct {
	Channel Channel
	Owner   any
	Ops     Ops
}

func (req RegisterRequest) apply(r *Reactor, _ time.Time) bool {
	r.selector.Register(req.Channel, req.Owner, req.Ops)
	return false
}

func (RegisterRequest) kind() string { return "register" }

// String 实现 fmt.Stringer
func (req RegisterRequest) String() string {
	return fmt.Sprintf("Register{%T ops=%s}", req.Owner, req.Ops)
}

// ChangeOpsRequest 修改已注册通道的兴趣集
//
// 通道已被注销（例如关联已关闭）时请求被忽略。
type ChangeOpsRequest struct {
	Channel Channel
	Ops     Ops
}

func (req ChangeOpsRequest) apply(r *Reactor, _ time.Time) bool {
	if k := r.selector.KeyFor(req.Channel); k != nil {
		k.SetInterest(req.Ops)
	}
	return false
}

func (ChangeOpsRequest) kind() string { return "change_ops" }

// String 实现 fmt.Stringer
func (req ChangeOpsRequest) String() string {
	return fmt.Sprintf("ChangeOps{ops=%s}", req.Ops)
}

// ConnectRequest 到期后发起建连
//
// 到期时目标已不处于 Started 状态则丢弃，取消是协作式的。
type ConnectRequest struct {
	Target Connector
	Due    time.Time
}

func (req ConnectRequest) apply(_ *Reactor, now time.Time) bool {
	if now.Before(req.Due) {
		return true
	}
	if !req.Target.IsStarted() {
		logger.Debug("丢弃已取消的建连请求", "target", fmt.Sprintf("%v", req.Target))
		return false
	}
	req.Target.InitiateConnection()
	return false
}

func (ConnectRequest) kind() string { return "connect" }

// String 实现 fmt.Stringer
func (req ConnectRequest) String() string {
	return fmt.Sprintf("Connect{due=%s}", req.Due.Format(time.RFC3339Nano))
}

// CloseRequest 关闭目标的通道并传播关闭通知
type CloseRequest struct {
	Target Closer
}

func (req CloseRequest) apply(_ *Reactor, _ time.Time) bool {
	req.Target.CloseChannel()
	return false
}

func (CloseRequest) kind() string { return "close" }

// String 实现 fmt.Stringer
func (req CloseRequest) String() string {
	return "Close{}"
}
