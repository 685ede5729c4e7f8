package association

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/internal/util/queue"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/lib/log"
	"github.com/dep2p/go-assoc/pkg/types"
)

var logger = log.Logger("core/association")

// readBatch 单次 HandleRead 最多投递的帧数，避免单个关联占满一轮循环
const readBatch = 256

type listenerBox struct {
	l interfaces.AssociationListener
}

// Association 关联
type Association struct {
	cfg types.AssociationConfig
	env *Env

	listener atomic.Pointer[listenerBox]
	state    atomic.Int32
	started  atomic.Bool
	inbound  atomic.Int32
	outbound atomic.Int32

	// outq 出站 FIFO，调用方入队，reactor 出队
	outq *queue.MPSC[*types.Frame]
	// chRef 当前通道，供调用方 goroutine 投递 ChangeOps
	chRef atomic.Pointer[transport.StreamChannel]
	mux   atomic.Pointer[muxHolder]

	// 以下字段只在 reactor goroutine 上访问
	ch            *transport.StreamChannel
	pending       *transport.PendingChannel
	head          *types.Frame
	streamWorkers []int
	ioErrors      int
	muxID         int

	// onClosed 匿名关联终止后回调所属 Server
	onClosed func(a *Association)
	anon     *anonymousState
}

type muxHolder struct {
	b MuxBinding
}

var (
	_ interfaces.Association = (*Association)(nil)
	_ reactor.Connector      = (*Association)(nil)
	_ reactor.Closer         = (*Association)(nil)
)

// New 按配置创建关联
func New(cfg types.AssociationConfig, env *Env) (*Association, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newAssociation(cfg, env), nil
}

func newAssociation(cfg types.AssociationConfig, env *Env) *Association {
	cfg.ExtraHostAddresses = append([]string(nil), cfg.ExtraHostAddresses...)
	a := &Association{
		cfg:  cfg,
		env:  env,
		outq: queue.NewMPSC[*types.Frame](),
	}
	a.state.Store(int32(types.StateCreated))
	return a
}

// ============================================================================
//                              访问器
// ============================================================================

// Name 实现 interfaces.Association
func (a *Association) Name() string { return a.cfg.Name }

// Type 实现 interfaces.Association
func (a *Association) Type() types.AssociationType { return a.cfg.Type }

// Transport 实现 interfaces.Association
func (a *Association) Transport() types.IPChannelType { return a.cfg.Transport }

// Config 实现 interfaces.Association
func (a *Association) Config() types.AssociationConfig {
	cfg := a.cfg
	cfg.ExtraHostAddresses = append([]string(nil), a.cfg.ExtraHostAddresses...)
	return cfg
}

// State 实现 interfaces.Association
func (a *Association) State() types.AssociationState {
	return types.AssociationState(a.state.Load())
}

// IsStarted 实现 interfaces.Association 与 reactor.Connector
func (a *Association) IsStarted() bool { return a.started.Load() }

// IsUp 实现 interfaces.Association
func (a *Association) IsUp() bool { return a.State() == types.StateUp }

// IsConnected 是否绑定了活动通道
func (a *Association) IsConnected() bool {
	return a.chRef.Load() != nil || (a.IsUp() && a.mux.Load() != nil)
}

// Streams 实现 interfaces.Association
func (a *Association) Streams() (inbound, outbound int) {
	return int(a.inbound.Load()), int(a.outbound.Load())
}

// HostAddress 实现 interfaces.Association
func (a *Association) HostAddress() string { return a.cfg.HostAddress }

// HostPort 实现 interfaces.Association
func (a *Association) HostPort() int { return a.cfg.HostPort }

// PeerAddress 实现 interfaces.Association
func (a *Association) PeerAddress() string { return a.cfg.PeerAddress }

// PeerPort 实现 interfaces.Association
func (a *Association) PeerPort() int { return a.cfg.PeerPort }

// ServerName 实现 interfaces.Association
func (a *Association) ServerName() string { return a.cfg.ServerName }

// Multiplexed 是否经一对多通道承载
func (a *Association) Multiplexed() bool { return a.cfg.Multiplexed }

// SetListener 实现 interfaces.Association
func (a *Association) SetListener(l interfaces.AssociationListener) {
	if l == nil {
		a.listener.Store(nil)
		return
	}
	a.listener.Store(&listenerBox{l: l})
}

// Listener 返回当前监听器
func (a *Association) Listener() interfaces.AssociationListener {
	if b := a.listener.Load(); b != nil {
		return b.l
	}
	return nil
}

// String 实现 fmt.Stringer
func (a *Association) String() string {
	return fmt.Sprintf("Association{%s %s/%s %s}", a.cfg.Name, a.cfg.Type, a.cfg.Transport, a.State())
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动关联
//
// 客户端关联立即投递一次建连请求，多路复用的客户端先登记到注册表。
// 服务端关联等待入站连接。
func (a *Association) Start() error {
	if a.Listener() == nil {
		return ErrNoListener
	}
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	a.setState(types.StateStarted)

	if a.cfg.Type == types.AssociationTypeClient {
		if a.cfg.Multiplexed {
			b, err := a.env.Muxes.Register(a)
			if err != nil {
				a.started.Store(false)
				a.setState(types.StateStopped)
				return err
			}
			a.mux.Store(&muxHolder{b: b})
		}
		now := a.env.Reactor.Clock().Now()
		if err := a.env.Reactor.Submit(reactor.ConnectRequest{Target: a, Due: now}); err != nil {
			a.started.Store(false)
			a.setState(types.StateStopped)
			return err
		}
	}

	logger.Info("关联已启动", "association", a.cfg.Name, "type", a.cfg.Type.String(), "transport", a.cfg.Transport.String())
	return nil
}

// Stop 停止关联，未启动时为空操作
//
// 之后到期的建连请求会被丢弃；通道由 reactor 关闭。
func (a *Association) Stop() error {
	if !a.started.CompareAndSwap(true, false) {
		return nil
	}
	if err := a.env.Reactor.Submit(reactor.CloseRequest{Target: a}); err != nil {
		// reactor 已停止时所有通道已随 selector 关闭
		a.setState(types.StateStopped)
	}
	logger.Info("关联已停止", "association", a.cfg.Name)
	return nil
}

// Send 异步发送一帧
func (a *Association) Send(f *types.Frame) error {
	if !a.started.Load() {
		return ErrNotStarted
	}
	if !a.IsUp() {
		return ErrNotUp
	}
	if f == nil || f.Length() == 0 {
		return types.ErrEmptyPayload
	}

	_, out := a.Streams()
	if int(f.Stream()) >= out {
		a.env.Metrics.InvalidStream()
		logger.Debug("流号越界，丢弃帧", "association", a.cfg.Name, "stream", f.Stream(), "outbound", out)
		a.notifyInvalidStream(f)
		return nil
	}

	if h := a.mux.Load(); h != nil && a.chRef.Load() == nil {
		h.b.Send(a, f)
		a.env.Metrics.FrameSent(a.cfg.Name, a.cfg.Transport.String(), f.Length())
		return nil
	}

	ch := a.chRef.Load()
	if ch == nil {
		return ErrNotUp
	}
	a.outq.Push(f)
	a.env.Metrics.FrameSent(a.cfg.Name, a.cfg.Transport.String(), f.Length())
	return a.env.Reactor.Submit(reactor.ChangeOpsRequest{
		Channel: ch,
		Ops:     reactor.OpRead | reactor.OpWrite,
	})
}

func (a *Association) setState(s types.AssociationState) {
	a.state.Store(int32(s))
}

// ============================================================================
//                              监听器回调
// ============================================================================

// notify 在当前 goroutine 上调用监听器并隔离 panic
func (a *Association) notify(event string, fn func(l interfaces.AssociationListener)) {
	l := a.Listener()
	if l == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.env.Metrics.ListenerPanic()
			logger.Error("监听器回调发生 panic",
				"association", a.cfg.Name,
				"event", event,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn(l)
}

func (a *Association) notifyInvalidStream(f *types.Frame) {
	a.notify("invalid_stream", func(l interfaces.AssociationListener) {
		l.OnInvalidStreamID(f)
	})
}

// deliver 按流号投递载荷到固定执行器
func (a *Association) deliver(f *types.Frame) {
	a.env.Metrics.FrameReceived(a.cfg.Name, a.cfg.Transport.String(), f.Length())
	l := a.Listener()
	if l == nil {
		return
	}
	idx := 0
	if n := len(a.streamWorkers); n > 0 {
		idx = a.streamWorkers[int(f.Stream())%n]
	}
	a.env.Dispatcher.Dispatch(idx, func() {
		l.OnPayload(a, f)
	})
}
