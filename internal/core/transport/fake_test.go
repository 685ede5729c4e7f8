package transport

import (
	"errors"
	"net"
	"sync"

	"github.com/dep2p/go-assoc/pkg/types"
)

// pipeConn 内存帧连接，测试使用
type pipeConn struct {
	in   chan *types.Frame
	out  chan *types.Frame
	errs chan error

	mu      sync.Mutex
	closed  chan struct{}
	once    sync.Once
	aborted bool
	written []*types.Frame
	failW   error
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan *types.Frame, 64),
		out:    make(chan *types.Frame, 64),
		errs:   make(chan error, 4),
		closed: make(chan struct{}),
	}
}

func (c *pipeConn) ReadFrame() (*types.Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, ErrChannelClosed
	}
}

func (c *pipeConn) WriteFrame(f *types.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failW != nil {
		return c.failW
	}
	c.written = append(c.written, f)
	return nil
}

func (c *pipeConn) Written() []*types.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Frame, len(c.written))
	copy(out, c.written)
	return out
}

func (c *pipeConn) Streams() (int, int) { return 8, 4 }

func (c *pipeConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1000}
}

func (c *pipeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2000}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *pipeConn) Abort() error {
	c.mu.Lock()
	c.aborted = true
	c.mu.Unlock()
	return c.Close()
}

var errBoom = errors.New("boom")
