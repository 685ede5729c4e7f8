package manager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/association"
	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/multiplexer"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	rosterstore "github.com/dep2p/go-assoc/internal/core/roster"
	"github.com/dep2p/go-assoc/internal/core/server"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/internal/core/transport/sctp"
	"github.com/dep2p/go-assoc/internal/core/transport/tcp"
	"github.com/dep2p/go-assoc/internal/core/worker"
	"github.com/dep2p/go-assoc/internal/testutil"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/types"
)

const waitFor = 5 * time.Second

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Management = cfg.Management.
		WithConnectDelay(100 * time.Millisecond).
		WithWorkerThreads(2)
	cfg.Management.SelectTimeout = config.Duration(20 * time.Millisecond)
	cfg.Transport.HandshakeTimeout = config.Duration(3 * time.Second)
	return cfg
}

// newManager 组装一个未启动的 Manager
func newManager(t *testing.T, cfg *config.Config, store interfaces.RosterStore) *Manager {
	t.Helper()
	return newManagerWithMetrics(t, cfg, store, metrics.NewCollector(clock.New()))
}

// newManagerWithMetrics mc 为 nil 时不采集指标
func newManagerWithMetrics(t *testing.T, cfg *config.Config, store interfaces.RosterStore, mc *metrics.Collector) *Manager {
	t.Helper()
	clk := clock.New()
	r := reactor.New(reactor.ConfigFromUnified(cfg), clk, mc)
	tc := transport.ConfigFromUnified(cfg)
	st := sctp.New(tc)

	m, err := New(cfg, Deps{
		Reactor:    r,
		Pool:       worker.NewPool(cfg.Management.EffectiveWorkerThreads(), mc),
		Transports: transport.NewSet(tcp.New(tc), st),
		Muxes:      multiplexer.NewRegistry(r, st, mc, multiplexer.Options{}),
		Metrics:    mc,
		Store:      store,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})
	return m
}

func startManager(t *testing.T, m *Manager) {
	t.Helper()
	require.NoError(t, m.Start(context.Background()))
}

func serverConfig(name string, tr types.IPChannelType, port int) types.ServerConfig {
	return types.ServerConfig{
		Name:        name,
		Transport:   tr,
		HostAddress: "127.0.0.1",
		HostPort:    port,
	}
}

func serverAssoc(name, srv string, tr types.IPChannelType, peerPort int) types.AssociationConfig {
	return types.AssociationConfig{
		Name:        name,
		Transport:   tr,
		PeerAddress: "127.0.0.1",
		PeerPort:    peerPort,
		ServerName:  srv,
	}
}

func clientAssoc(name string, tr types.IPChannelType, localPort, peerPort int) types.AssociationConfig {
	return types.AssociationConfig{
		Name:        name,
		Transport:   tr,
		HostAddress: "127.0.0.1",
		HostPort:    localPort,
		PeerAddress: "127.0.0.1",
		PeerPort:    peerPort,
	}
}

// pair 一对已建立的客户端/服务端关联
type pair struct {
	client, server       interfaces.Association
	clientL, serverL     *testutil.RecordingListener
	serverPort, hostPort int
}

func connectPair(t *testing.T, m *Manager, tr types.IPChannelType) *pair {
	t.Helper()
	ports := testutil.FreePorts(t, 2, tr == types.IPChannelSCTP)
	p := &pair{
		clientL:    &testutil.RecordingListener{},
		serverL:    &testutil.RecordingListener{},
		serverPort: ports[0],
		hostPort:   ports[1],
	}

	_, err := m.AddServer(serverConfig("srv", tr, p.serverPort))
	require.NoError(t, err)
	p.server, err = m.AddServerAssociation(serverAssoc("sa", "srv", tr, p.hostPort))
	require.NoError(t, err)
	p.server.SetListener(p.serverL)
	require.NoError(t, m.StartServer("srv"))
	require.NoError(t, m.StartAssociation("sa"))

	p.client, err = m.AddAssociation(clientAssoc("ca", tr, p.hostPort, p.serverPort))
	require.NoError(t, err)
	p.client.SetListener(p.clientL)
	require.NoError(t, m.StartAssociation("ca"))

	testutil.Eventually(t, waitFor, func() bool {
		return p.client.IsUp() && p.server.IsUp()
	}, "关联未建立")
	return p
}

// ============================================================================
// 生命周期
// ============================================================================

func TestManager_RequiresStarted(t *testing.T) {
	m := newManager(t, testConfig(), nil)

	_, err := m.AddServer(serverConfig("srv", types.IPChannelTCP, 2350))
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.True(t, types.IsValidation(err))
	_, err = m.AddAssociation(clientAssoc("ca", types.IPChannelTCP, 2351, 2350))
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, m.StartAssociation("ca"), ErrNotStarted)

	startManager(t, m)
	assert.True(t, m.IsStarted())
	require.NoError(t, m.Start(context.Background()), "重复启动为空操作")

	require.NoError(t, m.Stop(context.Background()))
	assert.False(t, m.IsStarted())
	require.NoError(t, m.Stop(context.Background()), "重复停止为空操作")

	t.Log("✅ 未启动时拒绝修改名册，Start/Stop 幂等")
}

func TestManager_RestartAfterStop(t *testing.T) {
	m := newManager(t, testConfig(), nil)
	startManager(t, m)
	p := connectPair(t, m, types.IPChannelTCP)

	require.NoError(t, m.Stop(context.Background()))
	assert.False(t, p.client.IsStarted())
	assert.False(t, p.server.IsStarted())

	startManager(t, m)
	testutil.Eventually(t, waitFor, func() bool {
		return p.client.IsUp() && p.server.IsUp()
	}, "重启后关联未恢复")

	t.Log("✅ 重启后恢复停止前运行中的 Server 与关联")
}

// ============================================================================
// 往返
// ============================================================================

func TestManager_RoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		tr     types.IPChannelType
		single bool
	}{
		{"TCP", types.IPChannelTCP, false},
		{"TCP单线程", types.IPChannelTCP, true},
		{"SCTP", types.IPChannelSCTP, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newManager(t, testConfig(), nil)
			require.NoError(t, m.SetSingleThread(tc.single))
			startManager(t, m)
			p := connectPair(t, m, tc.tr)

			require.NoError(t, p.client.Send(types.NewFrame([]byte("hello"), 0, 3)))
			testutil.Eventually(t, waitFor, func() bool {
				return len(p.serverL.Payloads()) == 1
			}, "服务端未收到载荷")
			got := p.serverL.Payloads()[0]
			assert.Equal(t, []byte("hello"), got.Data())
			assert.Equal(t, uint16(0), got.Stream())
			assert.Equal(t, uint32(3), got.ProtocolID())

			require.NoError(t, p.server.Send(types.NewFrame([]byte("world"), 0, 3)))
			testutil.Eventually(t, waitFor, func() bool {
				return len(p.clientL.Payloads()) == 1
			}, "客户端未收到载荷")
			assert.Equal(t, []byte("world"), p.clientL.Payloads()[0].Data())

			assert.Equal(t, 1, p.clientL.Count("up"))
			assert.Equal(t, 1, p.serverL.Count("up"))
		})
	}

	t.Log("✅ TCP/SCTP 往返载荷与协议号一致")
}

func TestManager_PerStreamOrdering(t *testing.T) {
	m := newManager(t, testConfig(), nil)
	startManager(t, m)
	p := connectPair(t, m, types.IPChannelTCP)

	_, out := p.client.Streams()
	require.GreaterOrEqual(t, out, 2)

	const n = 200
	for i := 0; i < n; i++ {
		stream := uint16(i % 2)
		require.NoError(t, p.client.Send(types.NewFrame([]byte(fmt.Sprintf("%d", i)), stream, 0)))
	}
	testutil.Eventually(t, waitFor, func() bool {
		return len(p.serverL.Payloads()) == n
	}, "载荷未全部到达")

	next := map[uint16]int{0: 0, 1: 1}
	for _, f := range p.serverL.Payloads() {
		assert.Equal(t, fmt.Sprintf("%d", next[f.Stream()]), string(f.Data()), "流 %d 乱序", f.Stream())
		next[f.Stream()] += 2
	}

	t.Log("✅ 同一流内载荷保持发送顺序")
}

func TestManager_StreamBound(t *testing.T) {
	m := newManager(t, testConfig(), nil)
	startManager(t, m)
	p := connectPair(t, m, types.IPChannelTCP)

	_, out := p.client.Streams()
	require.NoError(t, p.client.Send(types.NewFrame([]byte("x"), uint16(out), 0)))

	testutil.Eventually(t, waitFor, func() bool {
		return p.clientL.Count("invalid") == 1
	}, "未回调越界流号")
	testutil.Never(t, 200*time.Millisecond, func() bool {
		return len(p.serverL.Payloads()) > 0
	}, "越界帧不应发出")

	t.Log("✅ 越界流号不发送并回调 OnInvalidStreamID")
}

// ============================================================================
// 重连与幂等
// ============================================================================

func TestManager_ReconnectConverges(t *testing.T) {
	m := newManager(t, testConfig(), nil)
	startManager(t, m)

	ports := testutil.FreePorts(t, 2, false)
	srvPort, hostPort := ports[0], ports[1]

	_, err := m.AddServer(serverConfig("srv", types.IPChannelTCP, srvPort))
	require.NoError(t, err)
	sa, err := m.AddServerAssociation(serverAssoc("sa", "srv", types.IPChannelTCP, hostPort))
	require.NoError(t, err)
	sa.SetListener(&testutil.RecordingListener{})
	require.NoError(t, m.StartAssociation("sa"))

	ca, err := m.AddAssociation(clientAssoc("ca", types.IPChannelTCP, hostPort, srvPort))
	require.NoError(t, err)
	cl := &testutil.RecordingListener{}
	ca.SetListener(cl)
	require.NoError(t, m.StartAssociation("ca"))

	// 对端尚未监听
	time.Sleep(300 * time.Millisecond)
	assert.False(t, ca.IsUp())

	require.NoError(t, m.StartServer("srv"))
	testutil.Eventually(t, waitFor, func() bool {
		return ca.IsUp() && sa.IsUp()
	}, "对端可达后未收敛到 Up")
	assert.Equal(t, 1, cl.Count("up"))

	t.Log("✅ 对端可达后重连收敛")
}

func TestManager_StopIdempotent(t *testing.T) {
	m := newManager(t, testConfig(), nil)
	startManager(t, m)
	p := connectPair(t, m, types.IPChannelTCP)

	require.NoError(t, m.StopAssociation("ca"))
	require.NoError(t, m.StopAssociation("ca"))
	assert.ErrorIs(t, m.StartAssociation("sa"), association.ErrAlreadyStarted)

	testutil.Eventually(t, waitFor, func() bool {
		return p.client.State() == types.StateStopped
	}, "客户端未停止")
	testutil.Eventually(t, waitFor, func() bool {
		return p.clientL.Count("shutdown") == 1
	}, "未回调 shutdown")
	testutil.Never(t, 300*time.Millisecond, func() bool {
		return p.client.IsUp()
	}, "停止后不应重连")

	t.Log("✅ 重复停止无副作用")
}

// ============================================================================
// 名册约束
// ============================================================================

func TestManager_Uniqueness(t *testing.T) {
	m := newManager(t, testConfig(), nil)
	startManager(t, m)

	_, err := m.AddServer(serverConfig("srv", types.IPChannelTCP, 2350))
	require.NoError(t, err)
	_, err = m.AddServer(serverConfig("srv", types.IPChannelTCP, 2360))
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = m.AddServer(serverConfig("srv2", types.IPChannelTCP, 2350))
	assert.ErrorIs(t, err, ErrDuplicateEndpoint)
	_, err = m.AddServer(serverConfig("srv3", types.IPChannelSCTP, 2350))
	assert.NoError(t, err, "不同传输可共用端口")

	_, err = m.AddAssociation(clientAssoc("ca", types.IPChannelTCP, 2351, 2350))
	require.NoError(t, err)
	_, err = m.AddAssociation(clientAssoc("ca", types.IPChannelTCP, 2352, 2350))
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = m.AddAssociation(clientAssoc("cb", types.IPChannelTCP, 2351, 2350))
	assert.ErrorIs(t, err, ErrDuplicateEndpoint)
	assert.True(t, types.IsValidation(err))

	_, err = m.AddServerAssociation(serverAssoc("sa", "srv", types.IPChannelTCP, 2351))
	require.NoError(t, err)
	_, err = m.AddServerAssociation(serverAssoc("sb", "srv", types.IPChannelTCP, 2351))
	assert.ErrorIs(t, err, ErrDuplicateEndpoint)
	_, err = m.AddServerAssociation(serverAssoc("sc", "nope", types.IPChannelTCP, 2351))
	assert.ErrorIs(t, err, ErrUnknownServer)
	_, err = m.AddServerAssociation(serverAssoc("sd", "srv", types.IPChannelSCTP, 2353))
	assert.ErrorIs(t, err, types.ErrInvalidTransport)

	_, err = m.AddAssociation(types.AssociationConfig{Name: "bad", Transport: types.IPChannelTCP, PeerAddress: "x"})
	assert.ErrorIs(t, err, types.ErrInvalidAddress)

	assert.Len(t, m.Associations(), 2)
	t.Log("✅ 名称与端点组合在名册内唯一")
}

func TestManager_RemoveGuards(t *testing.T) {
	m := newManager(t, testConfig(), nil)
	startManager(t, m)

	ports := testutil.FreePorts(t, 1, false)
	_, err := m.AddServer(serverConfig("srv", types.IPChannelTCP, ports[0]))
	require.NoError(t, err)
	sa, err := m.AddServerAssociation(serverAssoc("sa", "srv", types.IPChannelTCP, 0))
	require.NoError(t, err)
	sa.SetListener(interfaces.NoopAssociationListener{})

	assert.ErrorIs(t, m.RemoveServer("srv"), ErrServerNotEmpty)
	assert.ErrorIs(t, m.RemoveServer("nope"), ErrUnknownServer)
	assert.ErrorIs(t, m.RemoveAssociation("nope"), ErrUnknownAssociation)

	require.NoError(t, m.StartAssociation("sa"))
	assert.ErrorIs(t, m.RemoveAssociation("sa"), ErrAssociationStarted)
	require.NoError(t, m.StartServer("srv"))
	assert.ErrorIs(t, m.StopServer("srv"), server.ErrServerHasStartedAssociations)

	require.NoError(t, m.StopAssociation("sa"))
	require.NoError(t, m.RemoveAssociation("sa"))
	assert.ErrorIs(t, m.RemoveServer("srv"), ErrServerStarted)
	require.NoError(t, m.StopServer("srv"))
	require.NoError(t, m.RemoveServer("srv"))

	assert.Empty(t, m.Servers())
	assert.Empty(t, m.Associations())
	_, err = m.Association("sa")
	assert.ErrorIs(t, err, ErrUnknownAssociation)

	t.Log("✅ 运行中或非空的条目不可移除")
}

func TestManager_SnapshotStable(t *testing.T) {
	m := newManager(t, testConfig(), nil)
	startManager(t, m)

	_, err := m.AddAssociation(clientAssoc("c1", types.IPChannelTCP, 0, 2350))
	require.NoError(t, err)
	before := m.Associations()

	_, err = m.AddAssociation(clientAssoc("c2", types.IPChannelTCP, 0, 2351))
	require.NoError(t, err)
	require.NoError(t, m.RemoveAssociation("c1"))

	assert.Len(t, before, 1)
	assert.Contains(t, before, "c1")
	assert.Len(t, m.Associations(), 1)
	assert.Contains(t, m.Associations(), "c2")

	t.Log("✅ 已取得的名册快照不受后续修改影响")
}

// ============================================================================
// 设置
// ============================================================================

func TestManager_Settings(t *testing.T) {
	m := newManager(t, testConfig(), nil)

	require.NoError(t, m.SetWorkerThreads(4))
	assert.Equal(t, 4, m.WorkerThreads())
	assert.ErrorIs(t, m.SetWorkerThreads(-1), ErrInvalidSetting)
	require.NoError(t, m.SetSingleThread(true))
	assert.True(t, m.SingleThread())
	require.NoError(t, m.SetSingleThread(false))

	startManager(t, m)
	assert.Equal(t, 4, m.pool.Size())
	assert.ErrorIs(t, m.SetWorkerThreads(8), ErrStarted)
	assert.ErrorIs(t, m.SetSingleThread(true), ErrStarted)

	require.NoError(t, m.SetConnectDelay(2*time.Second))
	assert.Equal(t, 2*time.Second, m.ConnectDelay())
	assert.ErrorIs(t, m.SetConnectDelay(-time.Second), ErrInvalidSetting)

	require.NoError(t, m.SetMaxIOErrors(7))
	assert.Equal(t, 7, m.MaxIOErrors())
	assert.ErrorIs(t, m.SetMaxIOErrors(-1), ErrInvalidSetting)

	t.Log("✅ 设置校验与运行时约束")
}

// ============================================================================
// 匿名接入
// ============================================================================

func TestManager_AnonymousGate(t *testing.T) {
	m := newManager(t, testConfig(), nil)
	startManager(t, m)

	ports := testutil.FreePorts(t, 1, false)
	cfg := serverConfig("srv", types.IPChannelTCP, ports[0])
	cfg.AcceptAnonymous = true
	srv, err := m.AddServer(cfg)
	require.NoError(t, err)
	require.NoError(t, m.StartServer("srv"))

	anonL := &testutil.RecordingListener{}
	m.SetServerListener(interfaces.ServerListenerFunc(func(s interfaces.Server, a interfaces.Association) bool {
		return a.AcceptAnonymous(anonL) == nil
	}))

	ca, err := m.AddAssociation(clientAssoc("ca", types.IPChannelTCP, 0, ports[0]))
	require.NoError(t, err)
	ca.SetListener(&testutil.RecordingListener{})
	require.NoError(t, m.StartAssociation("ca"))

	testutil.Eventually(t, waitFor, func() bool {
		return ca.IsUp() && len(srv.AnonymousAssociations()) == 1 && anonL.Count("up") == 1
	}, "匿名关联未建立")
	assert.NotContains(t, m.Associations(), srv.AnonymousAssociations()[0].Name(), "匿名关联不进入名册")

	t.Log("✅ 闸门接受的匿名关联挂在 Server 下")
}

func TestManager_WithoutMetrics(t *testing.T) {
	m := newManagerWithMetrics(t, testConfig(), nil, nil)
	startManager(t, m)
	assert.Nil(t, m.Metrics())

	ports := testutil.FreePorts(t, 1, false)
	cfg := serverConfig("srv", types.IPChannelTCP, ports[0])
	cfg.AcceptAnonymous = true
	srv, err := m.AddServer(cfg)
	require.NoError(t, err)
	require.NoError(t, m.StartServer("srv"))

	anonL := &testutil.RecordingListener{}
	m.SetServerListener(interfaces.ServerListenerFunc(func(s interfaces.Server, a interfaces.Association) bool {
		return a.AcceptAnonymous(anonL) == nil
	}))

	ca, err := m.AddAssociation(clientAssoc("ca", types.IPChannelTCP, 0, ports[0]))
	require.NoError(t, err)
	cl := &testutil.RecordingListener{}
	ca.SetListener(cl)
	require.NoError(t, m.StartAssociation("ca"))

	testutil.Eventually(t, waitFor, func() bool {
		return ca.IsUp() && len(srv.AnonymousAssociations()) == 1 && anonL.Count("up") == 1
	}, "匿名关联未建立")
	anon := srv.AnonymousAssociations()[0]

	require.NoError(t, ca.Send(types.NewFrame([]byte("ping"), 0, 0)))
	testutil.Eventually(t, waitFor, func() bool {
		return len(anonL.Payloads()) == 1
	}, "匿名关联未收到载荷")
	require.NoError(t, anon.Send(types.NewFrame([]byte("pong"), 0, 0)))
	testutil.Eventually(t, waitFor, func() bool {
		return len(cl.Payloads()) == 1
	}, "客户端未收到载荷")

	// 客户端重连时不再接受匿名接入
	m.SetServerListener(nil)
	require.NoError(t, anon.StopAnonymous())
	testutil.Eventually(t, waitFor, func() bool {
		return anon.State() == types.StateStopped && len(srv.AnonymousAssociations()) == 0
	}, "停止的匿名关联未从 Server 移除")

	require.NoError(t, m.StopAssociation("ca"))
	require.NoError(t, m.RemoveAssociation("ca"))
	require.NoError(t, m.StopServer("srv"))
	require.NoError(t, m.RemoveServer("srv"))

	t.Log("✅ 未配置指标时收发与关闭流程完整")
}

// ============================================================================
// 持久化
// ============================================================================

func TestManager_Persistence(t *testing.T) {
	store := rosterstore.NewMemoryStore(nil)
	ports := testutil.FreePorts(t, 1, false)

	m1 := newManager(t, testConfig(), store)
	startManager(t, m1)
	_, err := m1.AddServer(serverConfig("srv", types.IPChannelTCP, ports[0]))
	require.NoError(t, err)
	require.NoError(t, m1.StartServer("srv"))
	_, err = m1.AddServerAssociation(serverAssoc("sa", "srv", types.IPChannelTCP, 0))
	require.NoError(t, err)
	_, err = m1.AddAssociation(clientAssoc("ca", types.IPChannelTCP, 0, 9))
	require.NoError(t, err)
	require.NoError(t, m1.SetConnectDelay(1500*time.Millisecond))
	assert.GreaterOrEqual(t, store.Saves(), 5)
	require.NoError(t, m1.Stop(context.Background()))

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Servers, 1)
	assert.True(t, snap.Servers[0].Started)
	require.Len(t, snap.Associations, 2)
	assert.Equal(t, "ca", snap.Associations[0].Name)
	assert.Equal(t, types.AssociationTypeClient, snap.Associations[0].Type)
	assert.Equal(t, "sa", snap.Associations[1].Name)
	assert.Equal(t, int64(1500), snap.Settings.ConnectDelayMillis)

	cfg2 := testConfig()
	cfg2.Management.Pinned = 0
	m2 := newManager(t, cfg2, store)
	startManager(t, m2)
	assert.Equal(t, 1500*time.Millisecond, m2.ConnectDelay(), "未显式设置的字段取名册中的值")
	s, err := m2.Server("srv")
	require.NoError(t, err)
	assert.True(t, s.IsStarted())
	assert.Equal(t, []string{"sa"}, s.Associations())
	assert.Len(t, m2.Associations(), 2)

	t.Log("✅ 名册经 RosterStore 保存并在启动时恢复")
}

func TestManager_PinnedSettingsWin(t *testing.T) {
	store := rosterstore.NewMemoryStore(&types.RosterSnapshot{
		Settings: types.RosterSettings{
			ConnectDelayMillis: 5000,
			WorkerThreads:      3,
			SingleThread:       true,
			MaxIOErrors:        9,
		},
	})

	cfg := testConfig()
	cfg.Management = cfg.Management.WithSingleThread(false)
	require.True(t, cfg.Management.IsPinned(config.SettingConnectDelay))
	require.False(t, cfg.Management.IsPinned(config.SettingMaxIOErrors))

	m := newManager(t, cfg, store)
	startManager(t, m)

	assert.Equal(t, 100*time.Millisecond, m.ConnectDelay(), "显式配置优先于名册")
	assert.Equal(t, 2, m.WorkerThreads())
	assert.False(t, m.SingleThread())
	assert.Equal(t, 9, m.MaxIOErrors(), "未显式设置的字段取名册中的值")

	t.Log("✅ 显式配置的设置不被名册覆盖")
}

func TestManager_EmptyStoredSettings(t *testing.T) {
	store := rosterstore.NewMemoryStore(&types.RosterSnapshot{})
	cfg := testConfig()
	cfg.Management.Pinned = 0

	m := newManager(t, cfg, store)
	startManager(t, m)

	assert.Equal(t, config.DefaultManagementConfig().MaxIOErrors, m.MaxIOErrors(), "空设置块不清零")
	assert.Equal(t, 100*time.Millisecond, m.ConnectDelay())

	t.Log("✅ 空设置块保留配置值")
}

// ============================================================================
// Fx 模块
// ============================================================================

func TestModule(t *testing.T) {
	var mgmt interfaces.Management
	app := fxtest.New(t,
		fx.Supply(testConfig()),
		fx.Provide(func() interfaces.RosterStore { return rosterstore.NewMemoryStore(nil) }),
		metrics.Module(),
		reactor.Module(),
		worker.Module(),
		transport.Module(),
		tcp.Module(),
		sctp.Module(),
		multiplexer.Module(),
		Module(),
		fx.Populate(&mgmt),
	)
	app.RequireStart()
	assert.True(t, mgmt.IsStarted())

	_, err := mgmt.AddServer(serverConfig("srv", types.IPChannelSCTP, testutil.FreeUDPPort(t)))
	require.NoError(t, err)

	app.RequireStop()
	assert.False(t, mgmt.IsStarted())

	t.Log("✅ Fx 模块随应用启动与停止")
}
