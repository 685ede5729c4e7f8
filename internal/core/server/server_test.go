package server

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/association"
	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/internal/core/transport/tcp"
	"github.com/dep2p/go-assoc/internal/core/worker"
	"github.com/dep2p/go-assoc/internal/testutil"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/types"
)

const waitFor = 3 * time.Second

// roster 测试用名册
type roster struct {
	mu    sync.Mutex
	assoc map[string]*association.Association
}

func (r *roster) add(a *association.Association) {
	r.mu.Lock()
	r.assoc[a.Name()] = a
	r.mu.Unlock()
}

func (r *roster) resolve(name string) (*association.Association, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assoc[name]
	return a, ok
}

type fixture struct {
	env    *association.Env
	tr     *tcp.Transport
	roster *roster
	gate   atomic.Pointer[gateBox]
}

type gateBox struct {
	l interfaces.ServerListener
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.New()
	m := metrics.NewCollector(clk)
	r := reactor.New(reactor.Config{SelectTimeout: 20 * time.Millisecond}, clk, m)
	require.NoError(t, r.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})

	tc := transport.ConfigFrom(config.DefaultTransportConfig().WithStreams(4, 4))
	tr := tcp.New(tc)
	return &fixture{
		env: &association.Env{
			Reactor:         r,
			Transports:      transport.NewSet(tr),
			Dispatcher:      worker.Inline{Metrics: m},
			Settings:        association.FixedSettings(time.Hour, 3),
			Metrics:         m,
			TransportConfig: tc,
		},
		tr:     tr,
		roster: &roster{assoc: make(map[string]*association.Association)},
	}
}

func (f *fixture) setGate(l interfaces.ServerListener) {
	f.gate.Store(&gateBox{l: l})
}

func (f *fixture) currentGate() interfaces.ServerListener {
	if b := f.gate.Load(); b != nil {
		return b.l
	}
	return nil
}

func (f *fixture) newServer(t *testing.T, cfg types.ServerConfig) *Server {
	t.Helper()
	s, err := New(cfg, f.env, f.roster.resolve, f.currentGate)
	require.NoError(t, err)
	return s
}

func (f *fixture) dial(t *testing.T, s *Server, localPort int) transport.FrameConn {
	t.Helper()
	addrs := s.Addrs()
	require.NotEmpty(t, addrs)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := f.tr.Dial(ctx, types.AssociationConfig{
		Name:        "dialer",
		Type:        types.AssociationTypeClient,
		Transport:   types.IPChannelTCP,
		HostAddress: "127.0.0.1",
		HostPort:    localPort,
		PeerAddress: "127.0.0.1",
		PeerPort:    addrs[0].(*net.TCPAddr).Port,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Abort() })
	return conn
}

func serverConfig(name string) types.ServerConfig {
	return types.ServerConfig{
		Name:        name,
		Transport:   types.IPChannelTCP,
		HostAddress: "127.0.0.1",
	}
}

// ============================================================================
// 生命周期
// ============================================================================

func TestServer_StartStop(t *testing.T) {
	f := newFixture(t)
	s := f.newServer(t, serverConfig("srv"))

	require.NoError(t, s.Start())
	assert.True(t, s.IsStarted())
	assert.Len(t, s.Addrs(), 1)
	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)
	assert.True(t, s.Config().Started)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsStarted())
	assert.Empty(t, s.Addrs())
	require.NoError(t, s.Stop())

	t.Log("✅ Server 启动与停止")
}

func TestServer_BindFailureLeavesStopped(t *testing.T) {
	f := newFixture(t)
	cfg := serverConfig("srv")
	cfg.HostPort = testutil.FreeTCPPort(t)
	// TEST-NET-3 地址不属于本机
	cfg.ExtraHostAddresses = []string{"203.0.113.7"}
	s := f.newServer(t, cfg)

	err := s.Start()
	require.ErrorIs(t, err, ErrBind)
	assert.False(t, s.IsStarted())

	// 主地址的监听器已释放，端口可以再次绑定
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.HostPort)))
	require.NoError(t, err)
	ln.Close()

	t.Log("✅ 绑定失败时 Server 保持未启动")
}

func TestServer_InvalidConfig(t *testing.T) {
	f := newFixture(t)
	_, err := New(types.ServerConfig{Name: "x", Transport: types.IPChannelTCP, HostAddress: "bad"}, f.env, f.roster.resolve, f.currentGate)
	assert.ErrorIs(t, err, types.ErrValidation)

	t.Log("✅ 非法配置被拒绝")
}

// ============================================================================
// 静态匹配
// ============================================================================

func TestServer_StaticMatch(t *testing.T) {
	f := newFixture(t)
	s := f.newServer(t, serverConfig("srv"))

	a, err := association.New(types.AssociationConfig{
		Name:        "s1",
		Type:        types.AssociationTypeServer,
		Transport:   types.IPChannelTCP,
		PeerAddress: "127.0.0.1",
		ServerName:  "srv",
	}, f.env)
	require.NoError(t, err)
	l := &testutil.RecordingListener{}
	a.SetListener(l)
	f.roster.add(a)
	s.AddAssociation("s1")
	assert.Equal(t, []string{"s1"}, s.Associations())

	require.NoError(t, s.Start())
	require.NoError(t, a.Start())

	peer := f.dial(t, s, 0)
	testutil.Eventually(t, waitFor, a.IsUp, "静态关联应建立")
	assert.Equal(t, 1, l.Count("up"))

	require.NoError(t, peer.WriteFrame(types.NewFrame([]byte("hello"), 1, 3)))
	testutil.Eventually(t, waitFor, func() bool { return l.Count("payload") == 1 }, "应收到载荷")
	got := l.Payloads()[0]
	assert.Equal(t, "hello", string(got.Data()))
	assert.Equal(t, uint16(1), got.Stream())
	assert.Equal(t, uint32(3), got.ProtocolID())

	assert.ErrorIs(t, s.Stop(), ErrServerHasStartedAssociations)
	assert.True(t, s.IsStarted())

	require.NoError(t, a.Stop())
	require.NoError(t, s.Stop())

	t.Log("✅ 入站连接匹配静态关联")
}

func TestServer_StaticMatchHonoursPeerPort(t *testing.T) {
	f := newFixture(t)
	s := f.newServer(t, serverConfig("srv"))

	ports := testutil.FreePorts(t, 2, false)
	a, err := association.New(types.AssociationConfig{
		Name:        "s1",
		Type:        types.AssociationTypeServer,
		Transport:   types.IPChannelTCP,
		PeerAddress: "127.0.0.1",
		PeerPort:    ports[0],
		ServerName:  "srv",
	}, f.env)
	require.NoError(t, err)
	a.SetListener(&testutil.RecordingListener{})
	f.roster.add(a)
	s.AddAssociation("s1")

	require.NoError(t, s.Start())
	require.NoError(t, a.Start())
	defer a.Stop()

	// 端口不匹配且不允许匿名接入，连接被关闭
	wrong := f.dial(t, s, ports[1])
	_, err = wrong.ReadFrame()
	assert.Error(t, err)
	assert.False(t, a.IsUp())

	f.dial(t, s, ports[0])
	testutil.Eventually(t, waitFor, a.IsUp, "端口匹配时应建立")

	t.Log("✅ 对端端口参与匹配")
}

// ============================================================================
// 匿名接入
// ============================================================================

func anonymousConfig(limit int) types.ServerConfig {
	cfg := serverConfig("srv")
	cfg.AcceptAnonymous = true
	cfg.MaxConcurrentConnections = limit
	return cfg
}

func TestServer_AnonymousAccepted(t *testing.T) {
	f := newFixture(t)
	l := &testutil.RecordingListener{}
	var asked atomic.Int32
	f.setGate(interfaces.ServerListenerFunc(func(s interfaces.Server, a interfaces.Association) bool {
		asked.Add(1)
		assert.Equal(t, "srv", s.Name())
		assert.Equal(t, types.AssociationTypeAnonymousServer, a.Type())
		return a.AcceptAnonymous(l) == nil
	}))
	s := f.newServer(t, anonymousConfig(0))
	require.NoError(t, s.Start())
	defer s.Stop()

	peer := f.dial(t, s, 0)
	testutil.Eventually(t, waitFor, func() bool { return l.Count("up") == 1 }, "匿名关联应建立")
	assert.Equal(t, int32(1), asked.Load())

	anon := s.AnonymousAssociations()
	require.Len(t, anon, 1)
	assert.Equal(t, "srv", anon[0].ServerName())
	assert.Equal(t, "127.0.0.1", anon[0].PeerAddress())
	assert.False(t, s.IsEmpty())

	require.NoError(t, anon[0].Send(types.NewFrame([]byte("hi"), 0, 0)))
	f2, err := peer.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hi", string(f2.Data()))

	require.NoError(t, anon[0].StopAnonymous())
	testutil.Eventually(t, waitFor, s.IsEmpty, "停止后应从 Server 移除")

	t.Log("✅ 闸门接受匿名关联")
}

func TestServer_AnonymousRejected(t *testing.T) {
	f := newFixture(t)
	f.setGate(interfaces.ServerListenerFunc(func(_ interfaces.Server, a interfaces.Association) bool {
		a.RejectAnonymous()
		return false
	}))
	s := f.newServer(t, anonymousConfig(0))
	require.NoError(t, s.Start())
	defer s.Stop()

	peer := f.dial(t, s, 0)
	_, err := peer.ReadFrame()
	assert.Error(t, err)
	assert.True(t, s.IsEmpty())

	t.Log("✅ 闸门拒绝匿名关联")
}

func TestServer_AnonymousTrueWithoutAcceptIsRejected(t *testing.T) {
	f := newFixture(t)
	f.setGate(interfaces.ServerListenerFunc(func(interfaces.Server, interfaces.Association) bool {
		return true
	}))
	s := f.newServer(t, anonymousConfig(0))
	require.NoError(t, s.Start())
	defer s.Stop()

	peer := f.dial(t, s, 0)
	_, err := peer.ReadFrame()
	assert.Error(t, err)
	assert.True(t, s.IsEmpty())

	t.Log("✅ 未绑定监听器视为拒绝")
}

func TestServer_AnonymousGatePanicIsRejection(t *testing.T) {
	f := newFixture(t)
	f.setGate(interfaces.ServerListenerFunc(func(interfaces.Server, interfaces.Association) bool {
		panic("gate")
	}))
	s := f.newServer(t, anonymousConfig(0))
	require.NoError(t, s.Start())
	defer s.Stop()

	peer := f.dial(t, s, 0)
	_, err := peer.ReadFrame()
	assert.Error(t, err)
	assert.True(t, s.IsEmpty())

	t.Log("✅ 闸门 panic 视为拒绝")
}

func TestServer_AnonymousLimit(t *testing.T) {
	f := newFixture(t)
	var asked atomic.Int32
	f.setGate(interfaces.ServerListenerFunc(func(_ interfaces.Server, a interfaces.Association) bool {
		asked.Add(1)
		return a.AcceptAnonymous(&testutil.RecordingListener{}) == nil
	}))
	s := f.newServer(t, anonymousConfig(1))
	require.NoError(t, s.Start())
	defer s.Stop()

	f.dial(t, s, 0)
	testutil.Eventually(t, waitFor, func() bool { return len(s.AnonymousAssociations()) == 1 }, "第一个匿名关联应建立")

	second := f.dial(t, s, 0)
	_, err := second.ReadFrame()
	assert.Error(t, err)
	assert.Len(t, s.AnonymousAssociations(), 1)
	assert.Equal(t, int32(1), asked.Load())

	t.Log("✅ 匿名关联数量受上限约束")
}

func TestServer_StopStopsAnonymous(t *testing.T) {
	f := newFixture(t)
	l := &testutil.RecordingListener{}
	f.setGate(interfaces.ServerListenerFunc(func(_ interfaces.Server, a interfaces.Association) bool {
		return a.AcceptAnonymous(l) == nil
	}))
	s := f.newServer(t, anonymousConfig(0))
	require.NoError(t, s.Start())

	f.dial(t, s, 0)
	testutil.Eventually(t, waitFor, func() bool { return l.Count("up") == 1 }, "匿名关联应建立")

	require.NoError(t, s.Stop())
	testutil.Eventually(t, waitFor, s.IsEmpty, "匿名关联应随 Server 停止")
	testutil.Eventually(t, waitFor, func() bool { return l.Count("shutdown") == 1 }, "应通知 shutdown")

	t.Log("✅ Server 停止时匿名关联一并停止")
}

func TestServer_RemoveAssociation(t *testing.T) {
	f := newFixture(t)
	s := f.newServer(t, serverConfig("srv"))
	assert.True(t, s.IsEmpty())

	s.AddAssociation("a")
	s.AddAssociation("b")
	before := s.Associations()
	s.RemoveAssociation("a")

	assert.Equal(t, []string{"a", "b"}, before)
	assert.Equal(t, []string{"b"}, s.Associations())
	assert.False(t, s.IsEmpty())

	t.Log("✅ 静态关联名称写时复制")
}
