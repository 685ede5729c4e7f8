package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/pkg/types"
)

// Conn TCP 帧连接
type Conn struct {
	nc    *net.TCPConn
	codec *codec

	inbound  int
	outbound int

	closed atomic.Bool
}

var _ transport.FrameConn = (*Conn)(nil)

// newConn 在已建立的 TCP 连接上执行 hello 交换
func newConn(ctx context.Context, nc *net.TCPConn, cfg transport.Config) (*Conn, error) {
	c := &Conn{
		nc:    nc,
		codec: newCodec(nc, cfg.ReceiveBufferSize),
	}
	if err := c.hello(ctx, cfg.MaxInboundStreams, cfg.MaxOutboundStreams); err != nil {
		return nil, err
	}
	return c, nil
}

// hello 交换流数量，双方先写后读
func (c *Conn) hello(ctx context.Context, in, out int) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.nc.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetDeadline(time.Unix(1, 0))
	})
	defer func() {
		stop()
		_ = c.nc.SetDeadline(time.Time{})
	}()

	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], uint16(in))
	binary.BigEndian.PutUint16(payload[2:4], uint16(out))
	if err := c.codec.writeFrame(rawFrame{flags: flagControl, payload: payload}); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	f, err := c.codec.readFrame()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if f.flags&flagControl == 0 || len(f.payload) != 4 {
		return ErrBadHello
	}
	peerIn := int(binary.BigEndian.Uint16(f.payload[0:2]))
	peerOut := int(binary.BigEndian.Uint16(f.payload[2:4]))
	c.inbound = min(in, peerOut)
	c.outbound = min(out, peerIn)
	return nil
}

// ReadFrame 实现 transport.FrameConn，跳过控制帧
func (c *Conn) ReadFrame() (*types.Frame, error) {
	for {
		f, err := c.codec.readFrame()
		if err != nil {
			return nil, c.mapErr(err)
		}
		if f.flags&flagControl != 0 {
			continue
		}
		return types.WrapFrame(f.payload, f.stream, f.ppid,
			f.flags&flagComplete != 0, f.flags&flagUnordered != 0), nil
	}
}

// WriteFrame 实现 transport.FrameConn
func (c *Conn) WriteFrame(f *types.Frame) error {
	if f.Length() > c.codec.maxSize {
		return transport.ErrFrameTooLarge
	}
	var flags byte
	if f.Complete() {
		flags |= flagComplete
	}
	if f.Unordered() {
		flags |= flagUnordered
	}
	err := c.codec.writeFrame(rawFrame{
		stream:  f.Stream(),
		ppid:    f.ProtocolID(),
		flags:   flags,
		payload: f.Data(),
	})
	if err != nil {
		return c.mapErr(err)
	}
	return nil
}

func (c *Conn) mapErr(err error) error {
	var oe *oversizeError
	switch {
	case errors.As(err, &oe):
		return fmt.Errorf("%w: %d bytes", transport.ErrFrameTooLarge, oe.size)
	case c.closed.Load() || errors.Is(err, net.ErrClosed):
		return transport.ErrChannelClosed
	case errors.Is(err, io.EOF):
		return transport.ErrPeerShutdown
	default:
		return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
}

// Streams 实现 transport.FrameConn
func (c *Conn) Streams() (inbound, outbound int) {
	return c.inbound, c.outbound
}

// LocalAddr 实现 transport.FrameConn
func (c *Conn) LocalAddr() net.Addr {
	return c.nc.LocalAddr()
}

// RemoteAddr 实现 transport.FrameConn
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// Close 正常关闭，对端读到 EOF
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.nc.Close()
}

// Abort 以 RST 中断，对端读到连接复位
func (c *Conn) Abort() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.nc.SetLinger(0)
	return c.nc.Close()
}
