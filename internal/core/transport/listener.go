package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	tec "github.com/jbenet/go-temp-err-catcher"

	"github.com/dep2p/go-assoc/internal/core/reactor"
)

// UpgradeFunc 对入站原始连接执行服务端握手
type UpgradeFunc func(ctx context.Context, raw net.Conn) (FrameConn, error)

const acceptBacklog = 128

// ListenerChannel 监听器通道
//
// 接受泵持续 Accept，每个原始连接在独立 goroutine 上完成握手，
// 握手成功的连接进入有界队列，队列非空时 OpAccept 就绪。
type ListenerChannel struct {
	ln      net.Listener
	upgrade UpgradeFunc
	timeout time.Duration

	accepted  chan FrameConn
	done      chan struct{}
	closeOnce sync.Once
	waker     atomic.Pointer[func()]
	inflight  sync.WaitGroup
}

var _ reactor.Channel = (*ListenerChannel)(nil)

// NewListenerChannel 包装监听器并启动接受泵
func NewListenerChannel(ln net.Listener, upgrade UpgradeFunc, handshakeTimeout time.Duration) *ListenerChannel {
	c := &ListenerChannel{
		ln:       ln,
		upgrade:  upgrade,
		timeout:  handshakeTimeout,
		accepted: make(chan FrameConn, acceptBacklog),
		done:     make(chan struct{}),
	}
	go c.acceptPump()
	return c
}

// Addr 返回监听地址
func (c *ListenerChannel) Addr() net.Addr {
	return c.ln.Addr()
}

// ReadyOps 实现 reactor.Channel
func (c *ListenerChannel) ReadyOps() reactor.Ops {
	if len(c.accepted) > 0 {
		return reactor.OpAccept
	}
	return 0
}

// SetWaker 实现 reactor.Channel
func (c *ListenerChannel) SetWaker(wake func()) {
	c.waker.Store(&wake)
}

func (c *ListenerChannel) wake() {
	if w := c.waker.Load(); w != nil {
		(*w)()
	}
}

// Accept 非阻塞取出一个已握手的入站连接
func (c *ListenerChannel) Accept() (FrameConn, bool) {
	select {
	case conn := <-c.accepted:
		return conn, true
	default:
		return nil, false
	}
}

func (c *ListenerChannel) acceptPump() {
	var catcher tec.TempErrCatcher
	for {
		raw, err := c.ln.Accept()
		if err != nil {
			if c.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			if catcher.IsTemporary(err) {
				logger.Debug("accept 临时错误，重试", "addr", c.ln.Addr().String(), "err", err)
				continue
			}
			logger.Warn("accept 失败，接受泵退出", "addr", c.ln.Addr().String(), "err", err)
			return
		}
		catcher = tec.TempErrCatcher{}

		c.inflight.Add(1)
		go c.handshake(raw)
	}
}

func (c *ListenerChannel) handshake(raw net.Conn) {
	defer c.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	conn, err := c.upgrade(ctx, raw)
	if err != nil {
		logger.Debug("入站握手失败", "remote", addrString(raw.RemoteAddr()), "err", err)
		_ = raw.Close()
		return
	}

	select {
	case c.accepted <- conn:
		c.wake()
	case <-c.done:
		_ = conn.Abort()
	}
}

func (c *ListenerChannel) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close 关闭监听器并丢弃未取走的连接，实现 reactor.Channel
func (c *ListenerChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ln.Close()
		go func() {
			c.inflight.Wait()
			for {
				select {
				case conn := <-c.accepted:
					_ = conn.Abort()
				default:
					return
				}
			}
		}()
	})
	return err
}
