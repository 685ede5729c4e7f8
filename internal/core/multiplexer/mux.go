package multiplexer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	tec "github.com/jbenet/go-temp-err-catcher"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-assoc/internal/core/association"
	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/internal/core/transport/sctp"
	"github.com/dep2p/go-assoc/internal/util/queue"
	"github.com/dep2p/go-assoc/pkg/lib/log"
	"github.com/dep2p/go-assoc/pkg/types"
)

var logger = log.Logger("core/multiplexer")

const (
	// maxDatagram UDP 数据报上限
	maxDatagram = 1 << 16

	// eventBatch 单次 HandleRead 处理的事件数
	eventBatch = 256

	// chunkTypeInit SCTP INIT 块类型
	chunkTypeInit = 1
)

// Options 多路复用器选项
type Options struct {
	// Branching 返回是否启用分支模式，在每次握手完成时求值
	Branching func() bool

	HandshakeTimeout time.Duration
	ReuseAddr        bool
}

type itemKind int

const (
	itemInit itemKind = iota
	itemData
)

// sendItem 发送队列元素：建连请求或数据帧
type sendItem struct {
	kind  itemKind
	a     *association.Association
	frame *types.Frame
}

type eventKind int

const (
	evUp eventKind = iota
	evFailed
	evPayload
	evIOError
	evTerminated
)

// event 由握手与读泵 goroutine 产生、在 reactor 上处理的通知
type event struct {
	kind   eventKind
	id     int
	peer   netip.AddrPort
	client bool
	vc     *vconn
	conn   transport.FrameConn
	frame  *types.Frame
	term   transport.Termination
	err    error
}

// binding 已建立的对端连接
type binding struct {
	id   int
	a    *association.Association
	conn transport.FrameConn
	vc   *vconn
}

// Multiplexer 一个本地端点上的共享 SCTP 通道
type Multiplexer struct {
	local   netip.AddrPort
	pc      net.PacketConn
	tr      *sctp.Transport
	r       *reactor.Reactor
	metrics *metrics.Collector
	opts    Options

	mu        sync.Mutex
	members   map[netip.AddrPort]*association.Association
	pending   map[netip.AddrPort]*association.Association
	peers     map[netip.AddrPort]*vconn
	connected map[int]*binding
	nextID    int

	sendq  *queue.SwapQueue[sendItem]
	events *queue.MPSC[event]
	waker  atomic.Pointer[func()]

	closed   atomic.Bool
	readDone chan struct{}
}

var (
	_ reactor.Channel        = (*Multiplexer)(nil)
	_ reactor.ReadHandler    = (*Multiplexer)(nil)
	_ reactor.WriteHandler   = (*Multiplexer)(nil)
	_ reactor.Closer         = (*Multiplexer)(nil)
	_ association.MuxBinding = (*Multiplexer)(nil)
)

// newMultiplexer 绑定共享套接字并注册到 reactor
func newMultiplexer(local netip.AddrPort, tr *sctp.Transport, r *reactor.Reactor, m *metrics.Collector, opts Options) (*Multiplexer, error) {
	lc := net.ListenConfig{}
	if opts.ReuseAddr {
		lc.Control = transport.ReuseControl
	}
	pc, err := lc.ListenPacket(context.Background(), "udp", local.String())
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", local, err)
	}

	mux := &Multiplexer{
		local:     local,
		pc:        pc,
		tr:        tr,
		r:         r,
		metrics:   m,
		opts:      opts,
		members:   make(map[netip.AddrPort]*association.Association),
		pending:   make(map[netip.AddrPort]*association.Association),
		peers:     make(map[netip.AddrPort]*vconn),
		connected: make(map[int]*binding),
		sendq:     queue.NewSwapQueue[sendItem](),
		events:    queue.NewMPSC[event](),
		readDone:  make(chan struct{}),
	}

	if err := r.Submit(reactor.RegisterRequest{Channel: mux, Owner: mux, Ops: reactor.OpRead | reactor.OpWrite}); err != nil {
		_ = pc.Close()
		return nil, err
	}
	go mux.readLoop()

	logger.Info("多路复用器已创建", "local", pc.LocalAddr().String())
	return mux, nil
}

// LocalAddr 返回共享套接字地址
func (m *Multiplexer) LocalAddr() net.Addr { return m.pc.LocalAddr() }

// Connected 返回已建立的对端连接数
func (m *Multiplexer) Connected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connected)
}

// Pending 返回等待建连的关联数
func (m *Multiplexer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// ============================================================================
//                              reactor.Channel
// ============================================================================

// ReadyOps 实现 reactor.Channel
func (m *Multiplexer) ReadyOps() reactor.Ops {
	var ops reactor.Ops
	if !m.events.Empty() {
		ops |= reactor.OpRead
	}
	if !m.sendq.Empty() {
		ops |= reactor.OpWrite
	}
	return ops
}

// SetWaker 实现 reactor.Channel
func (m *Multiplexer) SetWaker(wake func()) {
	m.waker.Store(&wake)
}

func (m *Multiplexer) wake() {
	if w := m.waker.Load(); w != nil {
		(*w)()
	}
}

func (m *Multiplexer) post(ev event) {
	if m.closed.Load() {
		if ev.conn != nil {
			_ = ev.conn.Abort()
		}
		return
	}
	m.events.Push(ev)
	m.wake()
}

// ============================================================================
//                              MuxBinding
// ============================================================================

// register 登记关联，同一对端只允许一个关联
func (m *Multiplexer) register(a *association.Association) error {
	remote, err := peerOf(a)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return ErrMuxClosed
	}
	if other, ok := m.members[remote]; ok && other != a {
		return fmt.Errorf("%w: %s used by %s", ErrPeerAddressInUse, remote, other.Name())
	}
	m.members[remote] = a
	for _, b := range m.connected {
		if b.a == a {
			return nil
		}
	}
	m.pending[remote] = a
	return nil
}

// Connect 实现 association.MuxBinding
func (m *Multiplexer) Connect(a *association.Association) {
	m.sendq.Push(sendItem{kind: itemInit, a: a})
	m.wake()
}

// Send 实现 association.MuxBinding
func (m *Multiplexer) Send(a *association.Association, f *types.Frame) {
	if m.closed.Load() {
		return
	}
	m.sendq.Push(sendItem{kind: itemData, a: a, frame: f})
	m.wake()
}

// Release 实现 association.MuxBinding
func (m *Multiplexer) Release(a *association.Association) {
	remote, err := peerOf(a)
	if err != nil {
		return
	}

	m.mu.Lock()
	if m.pending[remote] == a {
		delete(m.pending, remote)
	}
	var b *binding
	if id := a.MuxID(); id != 0 {
		b = m.connected[id]
		delete(m.connected, id)
	}
	vc := m.peers[remote]
	if vc != nil && vc.owned.Load() {
		vc = nil
	} else {
		delete(m.peers, remote)
	}
	if !a.IsStarted() && m.members[remote] == a {
		delete(m.members, remote)
	}
	m.mu.Unlock()

	a.SetMuxID(0)
	go func() {
		if b != nil {
			_ = b.conn.Close()
		}
		if vc != nil {
			_ = vc.Close()
		}
	}()
	logger.Debug("关联已从多路复用器解除", "association", a.Name(), "peer", remote)
}

// ============================================================================
//                              reactor 处理器
// ============================================================================

// HandleWrite 实现 reactor.WriteHandler
func (m *Multiplexer) HandleWrite(_ *reactor.SelectionKey) {
	for _, it := range m.sendq.Swap() {
		switch it.kind {
		case itemInit:
			m.startClient(it.a)
		case itemData:
			m.write(it.a, it.frame)
		}
	}
}

// HandleRead 实现 reactor.ReadHandler
func (m *Multiplexer) HandleRead(_ *reactor.SelectionKey) {
	for i := 0; i < eventBatch; i++ {
		ev, ok := m.events.Pop()
		if !ok {
			return
		}
		m.handle(ev)
	}
}

// CloseChannel 实现 reactor.Closer，注销 selector 中的 key
func (m *Multiplexer) CloseChannel() {
	if k := m.r.Selector().KeyFor(m); k != nil {
		k.Cancel()
	}
}

func (m *Multiplexer) startClient(a *association.Association) {
	if !a.IsStarted() || a.MuxID() != 0 {
		return
	}
	remote, err := peerOf(a)
	if err != nil {
		return
	}

	m.mu.Lock()
	if other, ok := m.members[remote]; ok && other != a {
		m.mu.Unlock()
		logger.Warn("对端地址已被占用，放弃建连", "association", a.Name(), "peer", remote, "owner", other.Name())
		return
	}
	m.members[remote] = a
	m.pending[remote] = a
	if old, busy := m.peers[remote]; busy && !old.owned.Load() {
		m.mu.Unlock()
		return
	}
	vc := newVConn(m, remote)
	m.peers[remote] = vc
	m.mu.Unlock()

	logger.Debug("经共享通道发起建连", "association", a.Name(), "peer", remote)
	m.handshake(vc, true, a.Name())
}

func (m *Multiplexer) write(a *association.Association, f *types.Frame) {
	m.mu.Lock()
	b := m.connected[a.MuxID()]
	m.mu.Unlock()
	if b == nil || b.a != a {
		logger.Debug("关联未连接，丢弃帧", "association", a.Name())
		return
	}
	err := b.conn.WriteFrame(f)
	if err == nil {
		return
	}
	if transport.IsFatal(err) {
		logger.Debug("写帧失败", "association", a.Name(), "err", err)
		return
	}
	if a.MuxIOError(1) {
		m.abort(b)
	}
}

func (m *Multiplexer) handle(ev event) {
	switch ev.kind {
	case evUp:
		m.onUp(ev)
	case evFailed:
		if !ev.client {
			logger.Debug("服务端握手失败", "peer", ev.peer, "err", ev.err)
			return
		}
		if a, _ := m.resolve(0, ev.peer); a != nil {
			a.MuxFailed(ev.err)
		}
	case evPayload:
		if a, connected := m.resolve(ev.id, ev.peer); a != nil && connected {
			a.MuxPayload(ev.frame)
		}
	case evIOError:
		a, connected := m.resolve(ev.id, ev.peer)
		if a == nil || !connected || !a.MuxIOError(1) {
			return
		}
		m.mu.Lock()
		b := m.connected[ev.id]
		m.mu.Unlock()
		if b != nil {
			m.abort(b)
		}
	case evTerminated:
		m.mu.Lock()
		b := m.connected[ev.id]
		m.mu.Unlock()
		if b != nil {
			m.drop(b, ev.term)
		}
	}
}

// resolve 先按连接 ID 查找，未命中时按对端地址查找待连接关联
func (m *Multiplexer) resolve(id int, peer netip.AddrPort) (*association.Association, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.connected[id]; ok {
		return b.a, true
	}
	if a, ok := m.pending[peer]; ok {
		return a, false
	}
	return nil, false
}

// onUp 握手完成：提升待连接关联并通知通信建立
func (m *Multiplexer) onUp(ev event) {
	a, _ := m.resolve(0, ev.peer)
	if a == nil || !a.IsStarted() {
		logger.Debug("握手完成但没有待连接关联，中断连接", "peer", ev.peer)
		go func() {
			_ = ev.conn.Abort()
			_ = ev.vc.Close()
		}()
		return
	}

	m.mu.Lock()
	delete(m.pending, ev.peer)
	m.nextID++
	id := m.nextID
	branching := m.opts.Branching != nil && m.opts.Branching()
	var b *binding
	if !branching {
		b = &binding{id: id, a: a, conn: ev.conn, vc: ev.vc}
		m.connected[id] = b
	}
	m.mu.Unlock()

	if branching {
		ev.vc.owned.Store(true)
		logger.Info("分支模式：连接移交给关联", "association", a.Name(), "peer", ev.peer)
		a.AdoptConnection(ev.conn)
		return
	}

	a.SetMuxID(id)
	go m.pump(b)
	in, out := ev.conn.Streams()
	logger.Info("经共享通道通信已建立", "association", a.Name(), "peer", ev.peer, "id", id)
	a.MuxUp(in, out)
}

// abort IO 错误超过阈值后强制中断
func (m *Multiplexer) abort(b *binding) {
	go func() {
		_ = b.conn.Abort()
		_ = b.vc.Close()
	}()
	m.drop(b, transport.TermLost)
}

// drop 移除连接，关联退回待连接
func (m *Multiplexer) drop(b *binding, term transport.Termination) {
	m.mu.Lock()
	delete(m.connected, b.id)
	if m.peers[b.vc.remote] == b.vc {
		delete(m.peers, b.vc.remote)
	}
	if b.a.IsStarted() {
		m.pending[b.vc.remote] = b.a
	}
	m.mu.Unlock()

	go func() { _ = b.vc.Close() }()
	b.a.MuxTerminated(term)
}

// ============================================================================
//                              goroutine
// ============================================================================

// handshake 在虚拟连接上执行 SCTP 握手
func (m *Multiplexer) handshake(vc *vconn, client bool, name string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout)
		defer cancel()

		var (
			conn transport.FrameConn
			err  error
		)
		if client {
			conn, err = m.tr.Client(ctx, vc, name)
		} else {
			conn, err = m.tr.Server(ctx, vc, name)
		}
		if err != nil {
			_ = vc.Close()
			m.post(event{kind: evFailed, peer: vc.remote, client: client, err: err})
			return
		}
		m.post(event{kind: evUp, peer: vc.remote, client: client, vc: vc, conn: conn})
	}()
}

// pump 把对端连接上的帧与终止转为事件
func (m *Multiplexer) pump(b *binding) {
	for {
		f, err := b.conn.ReadFrame()
		if err != nil {
			if !transport.IsFatal(err) {
				m.post(event{kind: evIOError, id: b.id, peer: b.vc.remote})
				continue
			}
			m.post(event{kind: evTerminated, id: b.id, peer: b.vc.remote, term: transport.Classify(err)})
			return
		}
		m.post(event{kind: evPayload, id: b.id, peer: b.vc.remote, frame: f})
	}
}

// readLoop 按远端地址路由数据报
func (m *Multiplexer) readLoop() {
	defer close(m.readDone)
	var catcher tec.TempErrCatcher
	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := m.pc.ReadFrom(buf)
		if err != nil {
			if m.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if catcher.IsTemporary(err) {
				continue
			}
			logger.Warn("共享套接字读取失败", "local", m.local, "err", err)
			return
		}
		ua, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		remote := unmap(ua.AddrPort())
		b := append([]byte(nil), buf[:n]...)

		vc := m.route(remote, b)
		if vc == nil || !vc.deliver(b) {
			m.metrics.MuxDropped()
		}
	}
}

// route 查找对端的虚拟连接；未知对端只有在存在待连接关联且首包为 INIT 时
// 才创建虚拟连接并启动服务端握手
func (m *Multiplexer) route(remote netip.AddrPort, b []byte) *vconn {
	m.mu.Lock()
	if vc, ok := m.peers[remote]; ok {
		m.mu.Unlock()
		return vc
	}
	a, ok := m.pending[remote]
	if !ok || !a.IsStarted() || len(b) <= 12 || b[12] != chunkTypeInit {
		m.mu.Unlock()
		logger.Debug("丢弃未知对端的数据报", "local", m.local, "peer", remote)
		return nil
	}
	vc := newVConn(m, remote)
	m.peers[remote] = vc
	m.mu.Unlock()

	logger.Debug("对端发起建连", "association", a.Name(), "peer", remote)
	m.handshake(vc, false, a.Name())
	return vc
}

// forgetPeer 虚拟连接关闭时移除路由
func (m *Multiplexer) forgetPeer(vc *vconn) {
	m.mu.Lock()
	if m.peers[vc.remote] == vc {
		delete(m.peers, vc.remote)
	}
	m.mu.Unlock()
}

// Close 中断全部连接并关闭共享套接字，实现 reactor.Channel
//
// ABORT 经共享套接字写出，套接字在全部连接中断之后才关闭。
func (m *Multiplexer) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	bindings := make([]*binding, 0, len(m.connected))
	for _, b := range m.connected {
		bindings = append(bindings, b)
	}
	vcs := make([]*vconn, 0, len(m.peers))
	for _, vc := range m.peers {
		vcs = append(vcs, vc)
	}
	m.connected = make(map[int]*binding)
	m.peers = make(map[netip.AddrPort]*vconn)
	m.pending = make(map[netip.AddrPort]*association.Association)
	m.members = make(map[netip.AddrPort]*association.Association)
	m.mu.Unlock()

	var g errgroup.Group
	for _, b := range bindings {
		b := b
		g.Go(b.conn.Abort)
	}
	_ = g.Wait()
	for _, vc := range vcs {
		_ = vc.Close()
	}

	err := m.pc.Close()
	<-m.readDone

	_ = m.r.Submit(reactor.CloseRequest{Target: m})
	logger.Info("多路复用器已关闭", "local", m.local)
	return err
}

func peerOf(a *association.Association) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(a.Config().PeerEndpoint())
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: %v", types.ErrInvalidAddress, err)
	}
	return unmap(ap), nil
}

func unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
