package assoc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-assoc/internal/testutil"
	"github.com/dep2p/go-assoc/pkg/types"
)

func newTestStack(t *testing.T, opts ...Option) *Stack {
	t.Helper()
	base := []Option{
		WithConnectDelay(100 * time.Millisecond),
		WithWorkerThreads(2),
		WithSelectTimeout(20 * time.Millisecond),
	}
	s, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOptions_Invalid(t *testing.T) {
	cases := []struct {
		name string
		opt  Option
	}{
		{"负重连延迟", WithConnectDelay(-time.Second)},
		{"负 worker 数", WithWorkerThreads(-1)},
		{"负错误阈值", WithMaxIOErrors(-1)},
		{"零 select 超时", WithSelectTimeout(0)},
		{"零流数", WithStreams(0, 4)},
		{"空名册路径", WithRosterFile("")},
		{"nil 配置", WithConfig(nil)},
		{"缺失配置文件", WithConfigFile(filepath.Join(t.TempDir(), "missing.json"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.opt)
			assert.Error(t, err)
		})
	}
	t.Log("✅ 非法选项在 New 时返回错误")
}

func TestStack_Lifecycle(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsStarted())
	assert.True(t, s.Management().IsStarted())
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.Management().IsStarted())
	require.NoError(t, s.Stop(ctx))

	require.NoError(t, s.Start(ctx), "停止后可再次启动")
	assert.True(t, s.Management().IsStarted())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Start(ctx), ErrClosed)
	assert.NotNil(t, s.Registry())

	t.Log("✅ Start/Stop 可重复，Close 后不可再用")
}

func TestStack_TCPRoundTrip(t *testing.T) {
	rosterPath := filepath.Join(t.TempDir(), "roster.json")
	s := newTestStack(t, WithRosterFile(rosterPath), WithStreams(8, 8))
	require.NoError(t, s.Start(context.Background()))
	mgmt := s.Management()

	ports := testutil.FreePorts(t, 2, false)
	_, err := mgmt.AddServer(types.ServerConfig{
		Name: "srv", Transport: types.IPChannelTCP, HostAddress: "127.0.0.1", HostPort: ports[0],
	})
	require.NoError(t, err)
	sa, err := mgmt.AddServerAssociation(types.AssociationConfig{
		Name: "sa", Transport: types.IPChannelTCP, PeerAddress: "127.0.0.1", PeerPort: ports[1], ServerName: "srv",
	})
	require.NoError(t, err)
	sl := &testutil.RecordingListener{}
	sa.SetListener(sl)
	require.NoError(t, mgmt.StartServer("srv"))
	require.NoError(t, mgmt.StartAssociation("sa"))

	ca, err := mgmt.AddAssociation(types.AssociationConfig{
		Name: "ca", Transport: types.IPChannelTCP,
		HostAddress: "127.0.0.1", HostPort: ports[1],
		PeerAddress: "127.0.0.1", PeerPort: ports[0],
	})
	require.NoError(t, err)
	ca.SetListener(&testutil.RecordingListener{})
	require.NoError(t, mgmt.StartAssociation("ca"))

	testutil.Eventually(t, 5*time.Second, func() bool { return ca.IsUp() && sa.IsUp() }, "关联未建立")
	in, out := ca.Streams()
	assert.Equal(t, 8, in)
	assert.Equal(t, 8, out)

	require.NoError(t, ca.Send(types.NewFrame([]byte("ping"), 7, 0)))
	testutil.Eventually(t, 5*time.Second, func() bool { return len(sl.Payloads()) == 1 }, "未收到载荷")
	assert.Equal(t, uint16(7), sl.Payloads()[0].Stream())

	assert.FileExists(t, rosterPath)
	t.Log("✅ 通过 Stack 完成 TCP 往返并写出名册文件")
}
