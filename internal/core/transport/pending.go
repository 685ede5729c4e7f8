package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-assoc/internal/core/reactor"
)

// DialFunc 在后台 goroutine 上建立连接
type DialFunc func(ctx context.Context) (FrameConn, error)

// PendingChannel 异步建连中的通道
//
// 建连结束（成功或失败）后报告 OpConnect 就绪，由 reactor 取出结果。
type PendingChannel struct {
	mu     sync.Mutex
	done   bool
	closed bool
	conn   FrameConn
	err    error

	cancel context.CancelFunc
	waker  atomic.Pointer[func()]
}

var _ reactor.Channel = (*PendingChannel)(nil)

// Connect 启动后台建连，timeout 约束整个建连与握手过程
func Connect(timeout time.Duration, dial DialFunc) *PendingChannel {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	p := &PendingChannel{cancel: cancel}

	go func() {
		defer cancel()
		conn, err := dial(ctx)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
		}
		p.complete(conn, err)
	}()
	return p
}

func (p *PendingChannel) complete(conn FrameConn, err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if conn != nil {
			_ = conn.Abort()
		}
		return
	}
	p.done = true
	p.conn = conn
	p.err = err
	p.mu.Unlock()

	if w := p.waker.Load(); w != nil {
		(*w)()
	}
}

// ReadyOps 实现 reactor.Channel
func (p *PendingChannel) ReadyOps() reactor.Ops {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done && !p.closed {
		return reactor.OpConnect
	}
	return 0
}

// SetWaker 实现 reactor.Channel
func (p *PendingChannel) SetWaker(wake func()) {
	p.waker.Store(&wake)
}

// Result 取出建连结果，所有权转移给调用方
//
// 之后通道不再就绪，Close 也不会关闭已取出的连接。
func (p *PendingChannel) Result() (FrameConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, err := p.conn, p.err
	p.conn = nil
	p.closed = true
	return conn, err
}

// Close 取消建连，实现 reactor.Channel
func (p *PendingChannel) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	p.cancel()
	if conn != nil {
		go conn.Abort()
	}
	return nil
}
