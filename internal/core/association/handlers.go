package association

import (
	"context"

	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/types"
)

// 本文件中的方法只在 reactor goroutine 上执行。

var (
	_ reactor.ConnectHandler = (*Association)(nil)
	_ reactor.ReadHandler    = (*Association)(nil)
	_ reactor.WriteHandler   = (*Association)(nil)
)

// InitiateConnection 实现 reactor.Connector
func (a *Association) InitiateConnection() {
	if a.ch != nil || a.pending != nil {
		return
	}
	if h := a.mux.Load(); h != nil {
		h.b.Connect(a)
		return
	}

	tr, err := a.env.Transports.Get(a.cfg.Transport)
	if err != nil {
		logger.Error("无可用传输", "association", a.cfg.Name, "err", err)
		a.cantStart(err)
		return
	}

	cfg := a.cfg
	timeout := a.env.TransportConfig.HandshakeTimeout
	a.pending = transport.Connect(timeout, func(ctx context.Context) (transport.FrameConn, error) {
		return tr.Dial(ctx, cfg)
	})
	a.env.Reactor.Selector().Register(a.pending, a, reactor.OpConnect)
	logger.Debug("发起建连", "association", a.cfg.Name, "peer", a.cfg.PeerEndpoint())
}

// HandleConnect 实现 reactor.ConnectHandler
func (a *Association) HandleConnect(k *reactor.SelectionKey) {
	k.Cancel()
	p := a.pending
	a.pending = nil
	if p == nil {
		return
	}

	conn, err := p.Result()
	if err != nil {
		a.cantStart(err)
		return
	}
	if !a.started.Load() {
		_ = conn.Close()
		return
	}
	a.adopt(conn)
	a.commUp()
}

// HandleRead 实现 reactor.ReadHandler
func (a *Association) HandleRead(k *reactor.SelectionKey) {
	ch, ok := k.Channel().(*transport.StreamChannel)
	if !ok || ch != a.ch {
		k.Cancel()
		_ = k.Channel().Close()
		return
	}

	for i := 0; i < readBatch; i++ {
		f, ok := ch.Receive()
		if !ok {
			break
		}
		a.deliver(f)
	}

	if n := ch.TakeIOErrors(); n > 0 && a.countIOErrors(n) {
		a.detach(true)
		a.terminated(transport.TermLost)
		return
	}

	if term, err := ch.Termination(); term != transport.TermNone {
		logger.Debug("通道终止", "association", a.cfg.Name, "reason", term.String(), "err", err)
		a.detach(false)
		a.terminated(term)
	}
}

// HandleWrite 实现 reactor.WriteHandler
func (a *Association) HandleWrite(k *reactor.SelectionKey) {
	ch := a.ch
	if ch == nil || k.Channel() != reactor.Channel(ch) {
		return
	}
	_, out := ch.Streams()
	for {
		f := a.head
		if f == nil {
			var ok bool
			if f, ok = a.outq.Pop(); !ok {
				k.SetInterest(reactor.OpRead)
				return
			}
		}
		// 重启后对端的出站流可能变少
		if int(f.Stream()) >= out {
			a.head = nil
			a.env.Metrics.InvalidStream()
			a.notifyInvalidStream(f)
			continue
		}
		if !ch.Offer(f) {
			a.head = f
			return
		}
		a.head = nil
	}
}

// CloseChannel 实现 reactor.Closer
//
// 由 Stop 触发：关闭通道与未完成的建连，已建立的通信以 shutdown 通知。
func (a *Association) CloseChannel() {
	wasUp := a.IsUp()
	if a.pending != nil {
		if k := a.env.Reactor.Selector().KeyFor(a.pending); k != nil {
			k.Cancel()
		}
		_ = a.pending.Close()
		a.pending = nil
	}
	a.detach(false)
	if h := a.mux.Load(); h != nil {
		h.b.Release(a)
	}
	a.inbound.Store(0)
	a.outbound.Store(0)

	restarted := a.started.Load()
	if restarted {
		// Stop 之后又被 Start，等待随后的建连请求
		a.setState(types.StateStarted)
	} else {
		a.mux.Store(nil)
		a.setState(types.StateStopped)
	}

	if wasUp {
		a.env.Metrics.AssociationDown()
		a.env.Metrics.CommEvent(metrics.EventShutdown)
		a.notify("shutdown", func(l interfaces.AssociationListener) {
			l.OnCommunicationShutdown(a)
		})
	}
	if !restarted {
		a.closed()
	}
}

// adopt 绑定新建立的连接，已有通道时替换
func (a *Association) adopt(conn transport.FrameConn) {
	// 重启时排队的帧转到新连接
	a.release(false)

	tc := a.env.TransportConfig
	ch := transport.NewStreamChannel(conn, tc.InboxSize, tc.OutboxSize)
	ops := reactor.OpRead
	if a.head != nil || !a.outq.Empty() {
		ops |= reactor.OpWrite
	}
	a.env.Reactor.Selector().Register(ch, a, ops)
	a.ch = ch
	a.chRef.Store(ch)

	in, out := ch.Streams()
	a.inbound.Store(int32(in))
	a.outbound.Store(int32(out))
}

// detach 注销并关闭当前通道，丢弃未发出的帧
func (a *Association) detach(abort bool) {
	if a.release(abort) {
		a.dropQueued()
	}
}

// release 注销并关闭当前通道，出站队列保持不变
func (a *Association) release(abort bool) bool {
	ch := a.ch
	if ch == nil {
		return false
	}
	if k := a.env.Reactor.Selector().KeyFor(ch); k != nil {
		k.Cancel()
	}
	if abort {
		ch.Abort()
	} else {
		_ = ch.Close()
	}
	a.ch = nil
	a.chRef.Store(nil)
	return true
}

func (a *Association) dropQueued() {
	dropped := 0
	if a.head != nil {
		a.head = nil
		dropped++
	}
	for _, ok := a.outq.Pop(); ok; _, ok = a.outq.Pop() {
		dropped++
	}
	if dropped > 0 {
		a.env.Metrics.FramesDropped(dropped)
		logger.Info("通道关闭，丢弃未发送帧", "association", a.cfg.Name, "count", dropped)
	}
}

// commUp 通信建立：清零 IO 错误、按流数量分配执行器并通知
func (a *Association) commUp() {
	in, out := a.Streams()
	a.ioErrors = 0
	n := max(in, out)
	a.streamWorkers = make([]int, n)
	for i := range a.streamWorkers {
		a.streamWorkers[i] = a.env.Dispatcher.NextIndex()
	}
	a.setState(types.StateUp)

	a.env.Metrics.AssociationUp()
	a.env.Metrics.CommEvent(metrics.EventUp)
	logger.Info("通信已建立", "association", a.cfg.Name, "inbound", in, "outbound", out)

	a.notify("up", func(l interfaces.AssociationListener) {
		l.OnCommunicationUp(a, in, out)
	})
}

// restart 同一对端在通信已建立时重新接入
func (a *Association) restart() {
	a.ioErrors = 0
	a.env.Metrics.CommEvent(metrics.EventRestart)
	logger.Info("对端重启", "association", a.cfg.Name)
	a.notify("restart", func(l interfaces.AssociationListener) {
		l.OnCommunicationRestart(a)
	})
}

// countIOErrors 累加非致命错误，返回是否超过阈值
func (a *Association) countIOErrors(n int) bool {
	for i := 0; i < n; i++ {
		a.env.Metrics.IOError()
	}
	a.ioErrors += n
	limit := a.env.Settings.MaxIOErrors()
	if a.ioErrors <= limit {
		logger.Debug("IO 错误", "association", a.cfg.Name, "count", a.ioErrors, "limit", limit)
		return false
	}

	logger.Warn("IO 错误超过阈值，强制关闭通道", "association", a.cfg.Name, "count", a.ioErrors, "limit", limit)
	return true
}

// terminated 通道已解除后的状态迁移与通知
func (a *Association) terminated(term transport.Termination) {
	if term == transport.TermClosed {
		return
	}
	wasUp := a.IsUp()
	a.setState(types.StateDown)
	a.inbound.Store(0)
	a.outbound.Store(0)
	if wasUp {
		a.env.Metrics.AssociationDown()
	}

	switch term {
	case transport.TermShutdown:
		a.env.Metrics.CommEvent(metrics.EventShutdown)
		logger.Info("通信已关闭", "association", a.cfg.Name)
		a.notify("shutdown", func(l interfaces.AssociationListener) {
			l.OnCommunicationShutdown(a)
		})
	default:
		a.env.Metrics.CommEvent(metrics.EventLost)
		logger.Warn("通信丢失", "association", a.cfg.Name)
		a.notify("lost", func(l interfaces.AssociationListener) {
			l.OnCommunicationLost(a)
		})
	}

	if a.cfg.Type == types.AssociationTypeAnonymousServer {
		a.started.Store(false)
		a.setState(types.StateStopped)
		a.closed()
		return
	}
	a.scheduleReconnect()
}

// cantStart 建连失败
func (a *Association) cantStart(err error) {
	logger.Debug("建连失败", "association", a.cfg.Name, "peer", a.cfg.PeerEndpoint(), "err", err)
	if a.started.Load() && a.State() != types.StateUp {
		a.setState(types.StateDown)
	}
	a.scheduleReconnect()
}

// scheduleReconnect 客户端关联仍在运行时投递延迟建连
func (a *Association) scheduleReconnect() {
	if a.cfg.Type != types.AssociationTypeClient || !a.started.Load() {
		return
	}
	due := a.env.Reactor.Clock().Now().Add(a.env.Settings.ConnectDelay())
	if err := a.env.Reactor.Submit(reactor.ConnectRequest{Target: a, Due: due}); err != nil {
		logger.Warn("投递重连请求失败", "association", a.cfg.Name, "err", err)
		return
	}
	a.env.Metrics.ReconnectScheduled()
	logger.Debug("已安排重连", "association", a.cfg.Name, "due", due)
}

func (a *Association) closed() {
	a.env.Metrics.Bandwidth().Remove(a.cfg.Name)
	if a.onClosed != nil {
		a.onClosed(a)
	}
}

// AcceptConnection 服务端把入站连接交给静态关联
//
// 关联未启动时关闭连接；通信已建立时以新连接替换旧连接并通知重启。
func (a *Association) AcceptConnection(conn transport.FrameConn) {
	if !a.started.Load() {
		logger.Debug("关联未启动，拒绝入站连接", "association", a.cfg.Name, "remote", conn.RemoteAddr().String())
		_ = conn.Close()
		return
	}
	wasUp := a.IsUp()
	a.adopt(conn)
	if wasUp {
		a.setState(types.StateUp)
		a.restart()
		return
	}
	a.commUp()
}
