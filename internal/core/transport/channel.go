package transport

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/pkg/types"
)

// StreamChannel 已建立连接的 reactor 通道
//
// 读泵把帧放入有界 inbox，写泵从有界 outbox 取帧写出。
// OpRead 在 inbox 非空、有待报告的 IO 错误或连接已终止时就绪；
// OpWrite 在 outbox 有空位时就绪。
type StreamChannel struct {
	conn FrameConn

	inbox  chan *types.Frame
	outbox chan *types.Frame

	ioErrors   atomic.Int32
	term       atomic.Int32
	termErr    atomic.Pointer[error]
	outboxFull atomic.Bool

	waker     atomic.Pointer[func()]
	done      chan struct{}
	closeOnce sync.Once
	pumps     sync.WaitGroup

	inboundStreams  int
	outboundStreams int
}

var _ reactor.Channel = (*StreamChannel)(nil)

// NewStreamChannel 包装连接并启动读写泵
func NewStreamChannel(conn FrameConn, inboxSize, outboxSize int) *StreamChannel {
	if inboxSize <= 0 {
		inboxSize = 1
	}
	if outboxSize <= 0 {
		outboxSize = 1
	}
	in, out := conn.Streams()
	c := &StreamChannel{
		conn:            conn,
		inbox:           make(chan *types.Frame, inboxSize),
		outbox:          make(chan *types.Frame, outboxSize),
		done:            make(chan struct{}),
		inboundStreams:  in,
		outboundStreams: out,
	}
	c.pumps.Add(2)
	go c.readPump()
	go c.writePump()
	return c
}

// ReadyOps 实现 reactor.Channel
func (c *StreamChannel) ReadyOps() reactor.Ops {
	var ops reactor.Ops
	if len(c.inbox) > 0 || c.ioErrors.Load() > 0 || c.term.Load() != int32(TermNone) {
		ops |= reactor.OpRead
	}
	if len(c.outbox) < cap(c.outbox) {
		ops |= reactor.OpWrite
	}
	return ops
}

// SetWaker 实现 reactor.Channel
func (c *StreamChannel) SetWaker(wake func()) {
	c.waker.Store(&wake)
}

func (c *StreamChannel) wake() {
	if w := c.waker.Load(); w != nil {
		(*w)()
	}
}

// Streams 返回协商后的入站/出站流数量
func (c *StreamChannel) Streams() (inbound, outbound int) {
	return c.inboundStreams, c.outboundStreams
}

// LocalAddr 返回本地地址
func (c *StreamChannel) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr 返回对端地址
func (c *StreamChannel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Receive 非阻塞取出一帧
func (c *StreamChannel) Receive() (*types.Frame, bool) {
	select {
	case f := <-c.inbox:
		return f, true
	default:
		return nil, false
	}
}

// Offer 非阻塞放入一帧，outbox 已满时返回 false
func (c *StreamChannel) Offer(f *types.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbox <- f:
		return true
	default:
		c.outboxFull.Store(true)
		return false
	}
}

// TakeIOErrors 取出并清零累计的非致命错误数
func (c *StreamChannel) TakeIOErrors() int {
	return int(c.ioErrors.Swap(0))
}

// Termination 返回终止原因
//
// inbox 中还有帧时返回 TermNone，保证先投递已收到的数据。
func (c *StreamChannel) Termination() (Termination, error) {
	if len(c.inbox) > 0 {
		return TermNone, nil
	}
	t := Termination(c.term.Load())
	if t == TermNone {
		return TermNone, nil
	}
	var err error
	if p := c.termErr.Load(); p != nil {
		err = *p
	}
	return t, err
}

func (c *StreamChannel) terminate(err error) {
	t := Classify(err)
	c.termErr.CompareAndSwap(nil, &err)
	if c.term.CompareAndSwap(int32(TermNone), int32(t)) {
		logger.Debug("连接终止", "remote", addrString(c.conn.RemoteAddr()), "reason", t.String(), "err", err)
	}
	c.wake()
}

func (c *StreamChannel) readPump() {
	defer c.pumps.Done()
	for {
		f, err := c.conn.ReadFrame()
		if err != nil {
			if c.isClosed() {
				return
			}
			if !IsFatal(err) {
				c.ioErrors.Add(1)
				c.wake()
				continue
			}
			c.terminate(err)
			return
		}

		select {
		case c.inbox <- f:
			c.wake()
		case <-c.done:
			return
		}
	}
}

func (c *StreamChannel) writePump() {
	defer c.pumps.Done()
	for {
		select {
		case f := <-c.outbox:
			if err := c.conn.WriteFrame(f); err != nil {
				if c.isClosed() {
					return
				}
				if !IsFatal(err) {
					c.ioErrors.Add(1)
					c.wake()
					continue
				}
				c.terminate(err)
				return
			}
			if c.outboxFull.CompareAndSwap(true, false) {
				c.wake()
			}
		case <-c.done:
			return
		}
	}
}

func (c *StreamChannel) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close 优雅关闭连接，实现 reactor.Channel
//
// 连接关闭在后台执行，不阻塞 reactor。
func (c *StreamChannel) Close() error {
	c.closeWith(c.conn.Close)
	return nil
}

// Abort 立即中断连接，对端观察到 lost
func (c *StreamChannel) Abort() {
	c.closeWith(c.conn.Abort)
}

func (c *StreamChannel) closeWith(fn func() error) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.terminate(ErrChannelClosed)
		go func() {
			if err := fn(); err != nil {
				logger.Debug("关闭连接", "remote", addrString(c.conn.RemoteAddr()), "err", err)
			}
		}()
	})
}

// Wait 等待读写泵退出，测试使用
func (c *StreamChannel) Wait() {
	c.pumps.Wait()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
