package sctp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/sctp"

	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/pkg/types"
)

// abortTimeout 等待 ABORT 写出并结束读循环的时间
const abortTimeout = time.Second

type inbound struct {
	frame *types.Frame
	err   error
}

type streamState struct {
	s         *sctp.Stream
	unordered bool
}

// Conn SCTP 帧连接
type Conn struct {
	assoc   *sctp.Association
	netConn net.Conn
	cfg     transport.Config

	inbox   chan inbound
	mu      sync.Mutex
	streams map[uint16]*streamState
	readers sync.WaitGroup

	aborted atomic.Bool
	lostErr atomic.Pointer[error]
	closed  atomic.Bool
	done    chan struct{}
}

var _ transport.FrameConn = (*Conn)(nil)

// newConn 包装已完成握手的 SCTP 关联
//
// 本端预先打开流 0，保证关联终止时至少有一个读 goroutine 观察到终止原因。
func newConn(a *sctp.Association, nc net.Conn, cfg transport.Config) *Conn {
	c := &Conn{
		assoc:   a,
		netConn: nc,
		cfg:     cfg,
		inbox:   make(chan inbound, cfg.InboxSize),
		streams: make(map[uint16]*streamState),
		done:    make(chan struct{}),
	}
	if _, err := c.stream(0); err != nil {
		logger.Debug("打开流 0 失败", "err", err)
	}
	go c.acceptLoop()
	return c
}

func (c *Conn) acceptLoop() {
	for {
		s, err := c.assoc.AcceptStream()
		if err != nil {
			break
		}
		c.mu.Lock()
		if _, ok := c.streams[s.StreamIdentifier()]; !ok {
			c.adoptLocked(s)
		}
		c.mu.Unlock()
	}
	c.readers.Wait()
	c.finish()
}

// adoptLocked 登记流并启动读 goroutine，调用方持有 mu
func (c *Conn) adoptLocked(s *sctp.Stream) *streamState {
	st := &streamState{s: s}
	c.streams[s.StreamIdentifier()] = st
	c.readers.Add(1)
	go c.readStream(st)
	return st
}

func (c *Conn) readStream(st *streamState) {
	defer c.readers.Done()
	id := st.s.StreamIdentifier()
	buf := make([]byte, c.cfg.ReceiveBufferSize)

	for {
		n, ppi, err := st.s.ReadSCTP(buf)
		if err != nil {
			if errors.Is(err, io.ErrShortBuffer) {
				c.push(inbound{err: fmt.Errorf("%w: stream %d", transport.ErrFrameTooLarge, id)})
				continue
			}
			c.noteStreamEnd(err)
			c.mu.Lock()
			if c.streams[id] == st {
				delete(c.streams, id)
			}
			c.mu.Unlock()
			return
		}

		// ReadSCTP 不返回 DATA 块的 U 位，收到的帧统一按有序标记
		f := types.NewFrameWithFlags(buf[:n], id, uint32(ppi), true, false)
		if !c.push(inbound{frame: f}) {
			return
		}
	}
}

// noteStreamEnd 记录关联级终止线索；流被对端复位时为 io.EOF
func (c *Conn) noteStreamEnd(err error) {
	switch {
	case errors.Is(err, sctp.ErrChunk):
		c.aborted.Store(true)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
	default:
		c.lostErr.CompareAndSwap(nil, &err)
	}
}

func (c *Conn) push(in inbound) bool {
	select {
	case c.inbox <- in:
		return true
	case <-c.done:
		return false
	}
}

// finish 关联结束后投递终止错误
func (c *Conn) finish() {
	var err error
	switch {
	case c.closed.Load():
		err = transport.ErrChannelClosed
	case c.aborted.Load():
		err = fmt.Errorf("%w: abort received", transport.ErrConnectionLost)
	case c.lostErr.Load() != nil:
		err = fmt.Errorf("%w: %v", transport.ErrConnectionLost, *c.lostErr.Load())
	default:
		err = transport.ErrPeerShutdown
	}
	c.push(inbound{err: err})
}

// stream 返回流，不存在时打开并启动读 goroutine
func (c *Conn) stream(id uint16) (*streamState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.streams[id]; ok {
		return st, nil
	}
	s, err := c.assoc.OpenStream(id, sctp.PayloadTypeWebRTCBinary)
	if err != nil {
		return nil, err
	}
	return c.adoptLocked(s), nil
}

// ReadFrame 实现 transport.FrameConn
func (c *Conn) ReadFrame() (*types.Frame, error) {
	select {
	case in := <-c.inbox:
		if in.err != nil {
			return nil, in.err
		}
		return in.frame, nil
	case <-c.done:
		return nil, transport.ErrChannelClosed
	}
}

// WriteFrame 实现 transport.FrameConn
func (c *Conn) WriteFrame(f *types.Frame) error {
	if c.closed.Load() {
		return transport.ErrChannelClosed
	}
	st, err := c.stream(f.Stream())
	if err != nil {
		return fmt.Errorf("%w: open stream %d: %v", transport.ErrTransportIO, f.Stream(), err)
	}
	if st.unordered != f.Unordered() {
		st.s.SetReliabilityParams(f.Unordered(), sctp.ReliabilityTypeReliable, 0)
		st.unordered = f.Unordered()
	}

	if _, err := st.s.WriteSCTP(f.Data(), sctp.PayloadProtocolIdentifier(f.ProtocolID())); err != nil {
		switch {
		case c.closed.Load():
			return transport.ErrChannelClosed
		case errors.Is(err, sctp.ErrOutboundPacketTooLarge):
			return fmt.Errorf("%w: %v", transport.ErrFrameTooLarge, err)
		default:
			return fmt.Errorf("%w: %v", transport.ErrTransportIO, err)
		}
	}
	return nil
}

// Streams 实现 transport.FrameConn
//
// pion/sctp 不对外暴露协商后的流数量，这里返回本端配置值。
func (c *Conn) Streams() (inbound, outbound int) {
	return c.cfg.MaxInboundStreams, c.cfg.MaxOutboundStreams
}

// LocalAddr 实现 transport.FrameConn
func (c *Conn) LocalAddr() net.Addr {
	return c.netConn.LocalAddr()
}

// RemoteAddr 实现 transport.FrameConn
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// Close 执行 SHUTDOWN 序列，超时后强制关闭
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	if c.cfg.ShutdownTimeout <= 0 {
		c.assoc.Abort("shutdown")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()
	if err := c.assoc.Shutdown(ctx); err != nil {
		logger.Debug("SCTP 优雅关闭未完成", "remote", c.netConn.RemoteAddr().String(), "err", err)
	}
	return c.assoc.Close()
}

// Abort 发送 ABORT 并立即关闭
//
// ABORT 写不出去时 pion 的读循环不会退出，超过 abortTimeout 后直接关闭底层连接。
func (c *Conn) Abort() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	aborted := make(chan struct{})
	go func() {
		c.assoc.Abort("abort")
		close(aborted)
	}()
	timer := time.NewTimer(abortTimeout)
	defer timer.Stop()
	select {
	case <-aborted:
	case <-timer.C:
		logger.Debug("ABORT 未完成，强制关闭底层连接", "remote", c.netConn.RemoteAddr().String())
		_ = c.netConn.Close()
		<-aborted
	}
	return nil
}
