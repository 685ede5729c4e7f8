package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/testutil"
	"github.com/dep2p/go-assoc/pkg/types"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, TermNone, Classify(nil))
	assert.Equal(t, TermClosed, Classify(ErrChannelClosed))
	assert.Equal(t, TermShutdown, Classify(fmt.Errorf("read: %w", ErrPeerShutdown)))
	assert.Equal(t, TermLost, Classify(ErrConnectionLost))
	assert.Equal(t, TermLost, Classify(errBoom))

	assert.False(t, IsFatal(ErrFrameTooLarge))
	assert.True(t, IsFatal(ErrPeerShutdown))
	assert.False(t, IsFatal(nil))
	t.Log("✅ 错误分类正确")
}

func TestStreamChannel_ReadyAndReceive(t *testing.T) {
	conn := newPipeConn()
	ch := NewStreamChannel(conn, 4, 2)
	defer ch.Close()

	woke := make(chan struct{}, 16)
	ch.SetWaker(func() { woke <- struct{}{} })

	in, out := ch.Streams()
	assert.Equal(t, 8, in)
	assert.Equal(t, 4, out)

	assert.False(t, ch.ReadyOps().Has(reactor.OpRead))
	assert.True(t, ch.ReadyOps().Has(reactor.OpWrite))

	conn.in <- types.NewFrame([]byte("a"), 1, 0)
	testutil.Eventually(t, time.Second, func() bool {
		return ch.ReadyOps().Has(reactor.OpRead)
	}, "收到帧后应可读")

	f, ok := ch.Receive()
	require.True(t, ok)
	assert.Equal(t, []byte("a"), f.Data())
	_, ok = ch.Receive()
	assert.False(t, ok)
	t.Log("✅ 读泵投递帧并报告可读")
}

func TestStreamChannel_OfferWritesInOrder(t *testing.T) {
	conn := newPipeConn()
	ch := NewStreamChannel(conn, 4, 8)
	defer ch.Close()

	for i := 0; i < 5; i++ {
		require.True(t, ch.Offer(types.NewFrame([]byte{byte(i)}, 0, 0)))
	}
	testutil.Eventually(t, time.Second, func() bool {
		return len(conn.Written()) == 5
	}, "写泵应写出全部帧")

	for i, f := range conn.Written() {
		assert.Equal(t, byte(i), f.Data()[0])
	}
	t.Log("✅ 写泵按序写出")
}

func TestStreamChannel_NonFatalWriteErrorCounted(t *testing.T) {
	conn := newPipeConn()
	conn.failW = fmt.Errorf("%w: stream closed", ErrTransportIO)
	ch := NewStreamChannel(conn, 4, 4)
	defer ch.Close()

	require.True(t, ch.Offer(types.NewFrame([]byte("x"), 0, 0)))
	require.True(t, ch.Offer(types.NewFrame([]byte("y"), 0, 0)))

	testutil.Eventually(t, time.Second, func() bool {
		return ch.ReadyOps().Has(reactor.OpRead)
	}, "IO 错误应报告可读")

	testutil.Eventually(t, time.Second, func() bool {
		return ch.ioErrors.Load() == 2
	}, "应累计两次 IO 错误")
	assert.Equal(t, 2, ch.TakeIOErrors())
	assert.Equal(t, 0, ch.TakeIOErrors())

	term, _ := ch.Termination()
	assert.Equal(t, TermNone, term)
	t.Log("✅ 非致命写错误只计数")
}

func TestStreamChannel_TerminationAfterInboxDrained(t *testing.T) {
	conn := newPipeConn()
	ch := NewStreamChannel(conn, 4, 4)
	defer ch.Close()

	conn.in <- types.NewFrame([]byte("last"), 0, 0)
	testutil.Eventually(t, time.Second, func() bool { return len(ch.inbox) == 1 }, "帧应入队")
	conn.errs <- fmt.Errorf("%w: eof", ErrPeerShutdown)

	testutil.Eventually(t, time.Second, func() bool {
		return ch.term.Load() == int32(TermShutdown)
	}, "应记录终止")

	term, _ := ch.Termination()
	assert.Equal(t, TermNone, term, "inbox 未清空前不报告终止")

	_, ok := ch.Receive()
	require.True(t, ok)
	term, err := ch.Termination()
	assert.Equal(t, TermShutdown, term)
	assert.True(t, errors.Is(err, ErrPeerShutdown))
	t.Log("✅ 先投递数据再报告终止")
}

func TestStreamChannel_CloseIsIdempotent(t *testing.T) {
	conn := newPipeConn()
	ch := NewStreamChannel(conn, 4, 4)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	ch.Wait()

	assert.False(t, ch.Offer(types.NewFrame([]byte("x"), 0, 0)))
	term, _ := ch.Termination()
	assert.Equal(t, TermClosed, term)
	t.Log("✅ 重复关闭无副作用")
}

func TestStreamChannel_AbortUsesConnAbort(t *testing.T) {
	conn := newPipeConn()
	ch := NewStreamChannel(conn, 4, 4)
	ch.Abort()
	ch.Wait()

	testutil.Eventually(t, time.Second, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.aborted
	}, "应调用 Abort")
	t.Log("✅ Abort 中断底层连接")
}

func TestPendingChannel_Success(t *testing.T) {
	conn := newPipeConn()
	p := Connect(time.Second, func(ctx context.Context) (FrameConn, error) {
		return conn, nil
	})

	testutil.Eventually(t, time.Second, func() bool {
		return p.ReadyOps().Has(reactor.OpConnect)
	}, "建连完成后应就绪")

	got, err := p.Result()
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.Equal(t, reactor.Ops(0), p.ReadyOps())

	require.NoError(t, p.Close())
	conn.mu.Lock()
	assert.False(t, conn.aborted, "已取出的连接不应被关闭")
	conn.mu.Unlock()
	t.Log("✅ 建连成功后转移所有权")
}

func TestPendingChannel_Timeout(t *testing.T) {
	p := Connect(50*time.Millisecond, func(ctx context.Context) (FrameConn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	testutil.Eventually(t, time.Second, func() bool {
		return p.ReadyOps().Has(reactor.OpConnect)
	}, "超时后应就绪")

	_, err := p.Result()
	assert.ErrorIs(t, err, ErrHandshakeTimeout)
	t.Log("✅ 建连超时")
}

func TestPendingChannel_CloseBeforeCompletion(t *testing.T) {
	conn := newPipeConn()
	release := make(chan struct{})
	p := Connect(time.Second, func(ctx context.Context) (FrameConn, error) {
		<-release
		return conn, nil
	})

	require.NoError(t, p.Close())
	close(release)

	testutil.Eventually(t, time.Second, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.aborted
	}, "取消后到达的连接应被中断")
	assert.Equal(t, reactor.Ops(0), p.ReadyOps())
	t.Log("✅ 取消后的迟到连接被丢弃")
}

func TestListenerChannel_AcceptsUpgraded(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	upgraded := make(chan net.Conn, 1)
	lc := NewListenerChannel(ln, func(ctx context.Context, raw net.Conn) (FrameConn, error) {
		upgraded <- raw
		return newPipeConn(), nil
	}, time.Second)
	defer lc.Close()

	c, err := net.Dial("tcp", lc.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	testutil.Eventually(t, 2*time.Second, func() bool {
		return lc.ReadyOps().Has(reactor.OpAccept)
	}, "握手完成后应可 accept")

	conn, ok := lc.Accept()
	require.True(t, ok)
	require.NotNil(t, conn)
	_, ok = lc.Accept()
	assert.False(t, ok)
	t.Log("✅ 监听通道报告已握手连接")
}

func TestListenerChannel_FailedUpgradeDropped(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	lc := NewListenerChannel(ln, func(ctx context.Context, raw net.Conn) (FrameConn, error) {
		return nil, errBoom
	}, time.Second)
	defer lc.Close()

	c, err := net.Dial("tcp", lc.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	testutil.Never(t, 200*time.Millisecond, func() bool {
		return lc.ReadyOps().Has(reactor.OpAccept)
	}, "握手失败的连接不应就绪")
	t.Log("✅ 握手失败的连接被丢弃")
}

type stubTransport struct{ typ types.IPChannelType }

func (s stubTransport) Type() types.IPChannelType { return s.typ }
func (stubTransport) Dial(context.Context, types.AssociationConfig) (FrameConn, error) {
	return nil, errBoom
}
func (stubTransport) Listen(string, int) (net.Listener, error) { return nil, errBoom }
func (stubTransport) Upgrade(context.Context, net.Conn) (FrameConn, error) {
	return nil, errBoom
}

func TestSet(t *testing.T) {
	s := NewSet(stubTransport{types.IPChannelTCP}, nil)

	tr, err := s.Get(types.IPChannelTCP)
	require.NoError(t, err)
	assert.Equal(t, types.IPChannelTCP, tr.Type())

	_, err = s.Get(types.IPChannelSCTP)
	assert.ErrorIs(t, err, ErrUnsupportedTransport)
	assert.Equal(t, []types.IPChannelType{types.IPChannelTCP}, s.Types())
	t.Log("✅ 传输集合按类型索引")
}

func TestModule(t *testing.T) {
	var set *Set
	app := fxtest.New(t,
		fx.Provide(fx.Annotate(
			func() Transport { return stubTransport{types.IPChannelSCTP} },
			fx.ResultTags(`group:"transports"`),
		)),
		Module(),
		fx.Populate(&set),
	)
	app.RequireStart()
	defer app.RequireStop()

	_, err := set.Get(types.IPChannelSCTP)
	require.NoError(t, err)
	t.Log("✅ Fx 模块汇总传输实现")
}
