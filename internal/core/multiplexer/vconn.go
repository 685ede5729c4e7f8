package multiplexer

import (
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// peerBacklog 每个虚拟连接缓存的数据报数
const peerBacklog = 256

// vconn 共享 UDP 套接字上指向单个对端的虚拟连接
type vconn struct {
	mux    *Multiplexer
	remote netip.AddrPort
	raddr  *net.UDPAddr

	in        chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// owned 分支模式下连接已移交给关联，由连接关闭时释放
	owned atomic.Bool
}

var _ net.Conn = (*vconn)(nil)

func newVConn(m *Multiplexer, remote netip.AddrPort) *vconn {
	return &vconn{
		mux:    m,
		remote: remote,
		raddr:  net.UDPAddrFromAddrPort(remote),
		in:     make(chan []byte, peerBacklog),
		done:   make(chan struct{}),
	}
}

// deliver 由读循环调用，队列满时丢弃
func (c *vconn) deliver(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.in <- b:
		return true
	default:
		return false
	}
}

func (c *vconn) Read(p []byte) (int, error) {
	select {
	case b := <-c.in:
		return copy(p, b), nil
	case <-c.done:
		return 0, net.ErrClosed
	}
}

func (c *vconn) Write(p []byte) (int, error) {
	select {
	case <-c.done:
		return 0, net.ErrClosed
	default:
	}
	return c.mux.pc.WriteTo(p, c.raddr)
}

func (c *vconn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mux.forgetPeer(c)
	})
	return nil
}

func (c *vconn) LocalAddr() net.Addr  { return c.mux.pc.LocalAddr() }
func (c *vconn) RemoteAddr() net.Addr { return c.raddr }

func (c *vconn) SetDeadline(time.Time) error      { return nil }
func (c *vconn) SetReadDeadline(time.Time) error  { return nil }
func (c *vconn) SetWriteDeadline(time.Time) error { return nil }
