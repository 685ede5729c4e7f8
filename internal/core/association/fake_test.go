package association

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/pkg/types"
)

var errRefused = errors.New("connection refused")

// fakeConn 内存帧连接
type fakeConn struct {
	in     chan *types.Frame
	errs   chan error
	out    chan *types.Frame
	closed chan struct{}
	once   sync.Once

	inbound, outbound int
	aborted           atomic.Bool
	graceful          atomic.Bool
}

func newFakeConn(in, out int) *fakeConn {
	return &fakeConn{
		in:       make(chan *types.Frame, 64),
		errs:     make(chan error, 64),
		out:      make(chan *types.Frame, 64),
		closed:   make(chan struct{}),
		inbound:  in,
		outbound: out,
	}
}

func (c *fakeConn) ReadFrame() (*types.Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, transport.ErrChannelClosed
	}
}

func (c *fakeConn) WriteFrame(f *types.Frame) error {
	select {
	case c.out <- f:
		return nil
	case <-c.closed:
		return transport.ErrChannelClosed
	}
}

func (c *fakeConn) Streams() (int, int) { return c.inbound, c.outbound }

func (c *fakeConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1000}
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2000}
}

func (c *fakeConn) Close() error {
	c.graceful.Store(true)
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Abort() error {
	c.aborted.Store(true)
	c.once.Do(func() { close(c.closed) })
	return nil
}

// peerShutdown 模拟对端优雅关闭
func (c *fakeConn) peerShutdown() { c.errs <- transport.ErrPeerShutdown }

// peerLost 模拟对端丢失
func (c *fakeConn) peerLost() { c.errs <- transport.ErrConnectionLost }

// fakeTransport Dial 依次返回预置的连接，没有预置时返回拒绝
type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials atomic.Int32
}

func (t *fakeTransport) push(c *fakeConn) {
	t.mu.Lock()
	t.conns = append(t.conns, c)
	t.mu.Unlock()
}

func (t *fakeTransport) Type() types.IPChannelType { return types.IPChannelTCP }

func (t *fakeTransport) Dial(context.Context, types.AssociationConfig) (transport.FrameConn, error) {
	t.dials.Add(1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil, errRefused
	}
	c := t.conns[0]
	t.conns = t.conns[1:]
	return c, nil
}

func (t *fakeTransport) Listen(string, int) (net.Listener, error) { return nil, errRefused }

func (t *fakeTransport) Upgrade(context.Context, net.Conn) (transport.FrameConn, error) {
	return nil, errRefused
}
