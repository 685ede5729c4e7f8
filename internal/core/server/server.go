package server

import (
	"fmt"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-assoc/internal/core/association"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/lib/log"
	"github.com/dep2p/go-assoc/pkg/types"
)

var logger = log.Logger("core/server")

// Resolver 按名称解析关联
type Resolver func(name string) (*association.Association, bool)

// Gate 返回当前的接入闸门，可能为 nil
type Gate func() interfaces.ServerListener

// Server 监听端点
type Server struct {
	cfg     types.ServerConfig
	env     *association.Env
	resolve Resolver
	gate    Gate

	started atomic.Bool

	// names 静态关联名称，写时复制
	names atomic.Pointer[[]string]

	mu        sync.Mutex
	listeners []*transport.ListenerChannel
	anon      map[string]*association.Association
}

var (
	_ interfaces.Server      = (*Server)(nil)
	_ reactor.AcceptHandler = (*Server)(nil)
)

// New 创建 Server
func New(cfg types.ServerConfig, env *association.Env, resolve Resolver, gate Gate) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ExtraHostAddresses = append([]string(nil), cfg.ExtraHostAddresses...)
	s := &Server{
		cfg:     cfg,
		env:     env,
		resolve: resolve,
		gate:    gate,
		anon:    make(map[string]*association.Association),
	}
	empty := []string{}
	s.names.Store(&empty)
	return s, nil
}

// Name 实现 interfaces.Server
func (s *Server) Name() string { return s.cfg.Name }

// Transport 实现 interfaces.Server
func (s *Server) Transport() types.IPChannelType { return s.cfg.Transport }

// Config 实现 interfaces.Server
func (s *Server) Config() types.ServerConfig {
	cfg := s.cfg
	cfg.ExtraHostAddresses = append([]string(nil), s.cfg.ExtraHostAddresses...)
	cfg.Started = s.started.Load()
	return cfg
}

// IsStarted 实现 interfaces.Server
func (s *Server) IsStarted() bool { return s.started.Load() }

// Associations 实现 interfaces.Server
func (s *Server) Associations() []string {
	names := *s.names.Load()
	return append([]string(nil), names...)
}

// AddAssociation 登记静态关联名称，调用方负责串行化
func (s *Server) AddAssociation(name string) {
	old := *s.names.Load()
	next := make([]string, 0, len(old)+1)
	next = append(next, old...)
	next = append(next, name)
	s.names.Store(&next)
}

// RemoveAssociation 注销静态关联名称，调用方负责串行化
func (s *Server) RemoveAssociation(name string) {
	old := *s.names.Load()
	next := make([]string, 0, len(old))
	for _, n := range old {
		if n != name {
			next = append(next, n)
		}
	}
	s.names.Store(&next)
}

// AnonymousAssociations 实现 interfaces.Server
func (s *Server) AnonymousAssociations() []interfaces.Association {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interfaces.Association, 0, len(s.anon))
	for _, a := range s.anon {
		out = append(out, a)
	}
	return out
}

// IsEmpty 没有任何静态或匿名关联
func (s *Server) IsEmpty() bool {
	if len(*s.names.Load()) > 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.anon) == 0
}

// Addrs 返回实际监听地址，未启动时为空
func (s *Server) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]net.Addr, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l.Addr())
	}
	return out
}

// String 实现 fmt.Stringer
func (s *Server) String() string {
	return fmt.Sprintf("Server{%s %s %s}", s.cfg.Name, s.cfg.Transport, net.JoinHostPort(s.cfg.HostAddress, strconv.Itoa(s.cfg.HostPort)))
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 绑定全部监听地址并注册到 reactor
//
// 任一地址绑定失败时关闭已绑定的监听器并返回错误，Server 保持未启动。
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	tr, err := s.env.Transports.Get(s.cfg.Transport)
	if err != nil {
		s.started.Store(false)
		return err
	}

	addrs := s.cfg.BindAddresses()
	lns := make([]net.Listener, len(addrs))
	var g errgroup.Group
	for i, host := range addrs {
		i, host := i, host
		g.Go(func() error {
			ln, err := tr.Listen(host, s.cfg.HostPort)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrBind, net.JoinHostPort(host, strconv.Itoa(s.cfg.HostPort)), err)
			}
			lns[i] = ln
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, ln := range lns {
			if ln != nil {
				_ = ln.Close()
			}
		}
		s.started.Store(false)
		logger.Warn("Server 绑定失败", "server", s.cfg.Name, "err", err)
		return err
	}

	timeout := s.env.TransportConfig.HandshakeTimeout
	chans := make([]*transport.ListenerChannel, len(lns))
	reqs := make([]reactor.ChangeRequest, len(lns))
	for i, ln := range lns {
		chans[i] = transport.NewListenerChannel(ln, tr.Upgrade, timeout)
		reqs[i] = reactor.RegisterRequest{Channel: chans[i], Owner: s, Ops: reactor.OpAccept}
	}

	if err := s.env.Reactor.Submit(reqs...); err != nil {
		for _, ch := range chans {
			_ = ch.Close()
		}
		s.started.Store(false)
		return err
	}

	s.mu.Lock()
	s.listeners = chans
	s.mu.Unlock()

	logger.Info("Server 已启动", "server", s.cfg.Name, "transport", s.cfg.Transport.String(), "addrs", addrs, "port", s.cfg.HostPort)
	return nil
}

// Stop 停止 Server，未启动时为空操作
//
// 仍有已启动的静态关联时失败。匿名关联随之停止，监听器由 reactor 关闭。
func (s *Server) Stop() error {
	if !s.started.Load() {
		return nil
	}
	for _, name := range *s.names.Load() {
		if a, ok := s.resolve(name); ok && a.IsStarted() {
			return fmt.Errorf("%w: %s", ErrServerHasStartedAssociations, name)
		}
	}
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	chans := s.listeners
	s.listeners = nil
	anon := make([]*association.Association, 0, len(s.anon))
	for _, a := range s.anon {
		anon = append(anon, a)
	}
	s.mu.Unlock()

	for _, a := range anon {
		_ = a.StopAnonymous()
	}

	closer := listenerCloser{r: s.env.Reactor, chans: chans}
	if err := s.env.Reactor.Submit(reactor.CloseRequest{Target: closer}); err != nil {
		for _, ch := range chans {
			_ = ch.Close()
		}
	}

	logger.Info("Server 已停止", "server", s.cfg.Name)
	return nil
}

// listenerCloser 在 reactor goroutine 上注销并关闭监听器
type listenerCloser struct {
	r     *reactor.Reactor
	chans []*transport.ListenerChannel
}

func (c listenerCloser) CloseChannel() {
	sel := c.r.Selector()
	for _, ch := range c.chans {
		if k := sel.KeyFor(ch); k != nil {
			k.Cancel()
		}
		_ = ch.Close()
	}
}

// ============================================================================
//                              接入
// ============================================================================

// HandleAccept 实现 reactor.AcceptHandler
func (s *Server) HandleAccept(k *reactor.SelectionKey) {
	ch, ok := k.Channel().(*transport.ListenerChannel)
	if !ok {
		return
	}
	for {
		conn, ok := ch.Accept()
		if !ok {
			return
		}
		s.accept(conn)
	}
}

func (s *Server) accept(conn transport.FrameConn) {
	remote := conn.RemoteAddr()
	if !s.started.Load() {
		logger.Debug("Server 未启动，关闭入站连接", "server", s.cfg.Name, "remote", remote.String())
		_ = conn.Abort()
		return
	}

	ip, port := splitAddr(remote)
	if a := s.match(ip, port); a != nil {
		logger.Debug("入站连接匹配静态关联", "server", s.cfg.Name, "association", a.Name(), "remote", remote.String())
		a.AcceptConnection(conn)
		return
	}

	if !s.cfg.AcceptAnonymous {
		logger.Debug("未匹配任何关联，拒绝入站连接", "server", s.cfg.Name, "remote", remote.String())
		_ = conn.Abort()
		return
	}
	if limit := s.cfg.MaxConcurrentConnections; limit > 0 && s.anonymousCount() >= limit {
		logger.Warn("匿名关联已达上限，拒绝入站连接", "server", s.cfg.Name, "limit", limit, "remote", remote.String())
		s.env.Metrics.AnonymousDecision(false)
		_ = conn.Abort()
		return
	}
	s.acceptAnonymous(conn, ip, port)
}

// match 按对端地址与端口查找静态关联
func (s *Server) match(ip net.IP, port int) *association.Association {
	if ip == nil {
		return nil
	}
	for _, name := range *s.names.Load() {
		a, ok := s.resolve(name)
		if !ok {
			continue
		}
		peer := net.ParseIP(a.PeerAddress())
		if peer == nil || !peer.Equal(ip) {
			continue
		}
		if a.PeerPort() == 0 || a.PeerPort() == port {
			return a
		}
	}
	return nil
}

func (s *Server) acceptAnonymous(conn transport.FrameConn, ip net.IP, port int) {
	localIP, localPort := splitAddr(conn.LocalAddr())
	cfg := types.AssociationConfig{
		Name:        s.cfg.Name + "-anon-" + uuid.NewString(),
		Type:        types.AssociationTypeAnonymousServer,
		Transport:   s.cfg.Transport,
		HostPort:    localPort,
		PeerAddress: ip.String(),
		PeerPort:    port,
		ServerName:  s.cfg.Name,
	}
	if localIP != nil {
		cfg.HostAddress = localIP.String()
	}
	a := association.NewAnonymous(cfg, conn, s.env, s.removeAnonymous)

	accepted := s.askGate(a) && a.AnonymousAccepted()
	s.env.Metrics.AnonymousDecision(accepted)
	if !accepted {
		logger.Info("匿名接入被拒绝", "server", s.cfg.Name, "peer", cfg.PeerEndpoint())
		a.DiscardAnonymous()
		return
	}

	s.mu.Lock()
	s.anon[a.Name()] = a
	s.mu.Unlock()

	logger.Info("匿名接入已接受", "server", s.cfg.Name, "association", a.Name(), "peer", cfg.PeerEndpoint())
	a.AdoptAnonymous()
}

// askGate 调用接入闸门，panic 视为拒绝
func (s *Server) askGate(a *association.Association) (ok bool) {
	gate := s.gate()
	if gate == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.env.Metrics.ListenerPanic()
			logger.Error("接入闸门发生 panic",
				"server", s.cfg.Name,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	return gate.OnNewRemoteConnection(s, a)
}

func (s *Server) removeAnonymous(a *association.Association) {
	s.mu.Lock()
	delete(s.anon, a.Name())
	s.mu.Unlock()
	logger.Debug("匿名关联已移除", "server", s.cfg.Name, "association", a.Name())
}

func (s *Server) anonymousCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.anon)
}

func splitAddr(addr net.Addr) (net.IP, int) {
	switch v := addr.(type) {
	case *net.TCPAddr:
		return v.IP, v.Port
	case *net.UDPAddr:
		return v.IP, v.Port
	case nil:
		return nil, 0
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, 0
	}
	port, _ := strconv.Atoi(portStr)
	return net.ParseIP(host), port
}
