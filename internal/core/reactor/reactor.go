package reactor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/pkg/lib/log"
)

var logger = log.Logger("core/reactor")

// Reactor 单 goroutine I/O 反应器
//
// 可重复 Start/Stop：每次 Start 创建新的 Selector。
type Reactor struct {
	cfg     Config
	clock   clock.Clock
	metrics *metrics.Collector

	// mu 是生产者与 reactor 排空步骤之间唯一的串行化点
	mu      sync.Mutex
	pending []ChangeRequest
	// accepting 受 mu 保护；Stop 先关闭它，之后的 Submit 一律拒绝
	accepting bool

	// selector 仅 reactor goroutine 访问；wake 指向当前 selector 的 Wakeup
	selector *Selector
	wake     atomic.Pointer[func()]

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New 创建 Reactor
func New(cfg Config, clk clock.Clock, m *metrics.Collector) *Reactor {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.SelectTimeout <= 0 {
		cfg.SelectTimeout = DefaultConfig().SelectTimeout
	}
	return &Reactor{
		cfg:     cfg,
		clock:   clk,
		metrics: m,
	}
}

// Clock 返回 reactor 使用的时钟
func (r *Reactor) Clock() clock.Clock {
	return r.clock
}

// Start 启动 reactor goroutine
//
// 上一次 Stop 超时且旧循环仍未退出时返回 ErrStillStopping。
func (r *Reactor) Start() error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if r.doneCh != nil {
		select {
		case <-r.doneCh:
		default:
			r.running.Store(false)
			return ErrStillStopping
		}
	}

	sel := NewSelector()
	r.selector = sel
	wake := sel.Wakeup
	r.wake.Store(&wake)
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	r.mu.Lock()
	r.accepting = true
	r.mu.Unlock()

	go r.run(sel, r.stopCh, r.doneCh)

	logger.Info("reactor 已启动", "selectTimeout", r.cfg.SelectTimeout)
	return nil
}

// Stop 停止 reactor
//
// 停止前最后一次应用已排队的请求（建连请求除外），随后关闭所有通道。
// ctx 到期时返回 ErrStopTimeout，旧循环退出前不能再次 Start。
func (r *Reactor) Stop(ctx context.Context) error {
	if !r.running.CompareAndSwap(true, false) {
		return nil
	}

	r.mu.Lock()
	r.accepting = false
	r.mu.Unlock()

	close(r.stopCh)
	r.Wakeup()

	select {
	case <-r.doneCh:
		logger.Info("reactor 已停止")
		return nil
	case <-ctx.Done():
		logger.Warn("reactor 停止超时，旧循环仍在运行")
		return fmt.Errorf("%w: %v", ErrStopTimeout, ctx.Err())
	}
}

// IsRunning 是否运行中
func (r *Reactor) IsRunning() bool {
	return r.running.Load()
}

// Submit 提交变更请求并唤醒 reactor
//
// 任意 goroutine 可调用；请求在 reactor 的下一轮循环中按提交顺序应用。
func (r *Reactor) Submit(reqs ...ChangeRequest) error {
	r.mu.Lock()
	if !r.accepting {
		r.mu.Unlock()
		return ErrNotRunning
	}
	r.pending = append(r.pending, reqs...)
	r.mu.Unlock()

	r.Wakeup()
	return nil
}

// Wakeup 唤醒 reactor
func (r *Reactor) Wakeup() {
	if w := r.wake.Load(); w != nil {
		(*w)()
	}
}

// Pending 返回排队中的请求数
func (r *Reactor) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Selector 返回当前 Selector，仅 reactor goroutine 上的处理器使用
func (r *Reactor) Selector() *Selector {
	return r.selector
}

func (r *Reactor) run(sel *Selector, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			r.shutdown(sel)
			return
		default:
		}

		timeout := r.drain()
		r.metrics.ReactorCycle()

		for _, k := range sel.Select(timeout) {
			r.dispatch(k)
		}
	}
}

// drain 换出并应用全部请求，返回本轮 select 的超时
func (r *Reactor) drain() time.Duration {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return r.cfg.SelectTimeout
	}

	now := r.clock.Now()
	timeout := r.cfg.SelectTimeout
	var kept []ChangeRequest
	for _, req := range batch {
		if r.applySafely(req, now) {
			kept = append(kept, req)
			if cr, ok := req.(ConnectRequest); ok {
				if d := cr.Due.Sub(now); d < timeout {
					timeout = d
				}
			}
		}
	}

	if len(kept) > 0 {
		r.mu.Lock()
		r.pending = append(kept, r.pending...)
		r.mu.Unlock()
	}
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	return timeout
}

func (r *Reactor) applySafely(req ChangeRequest, now time.Time) (keep bool) {
	defer func() {
		if p := recover(); p != nil {
			keep = false
			r.metrics.ReactorPanic()
			logger.Error("应用变更请求时发生 panic",
				"request", fmt.Sprintf("%v", req),
				"panic", p,
				"stack", string(debug.Stack()))
		}
	}()

	keep = req.apply(r, now)
	if !keep {
		r.metrics.ChangeRequest(req.kind())
	}
	return keep
}

// dispatch 按就绪类型分发，处理器可能在中途注销 key
func (r *Reactor) dispatch(k *SelectionKey) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.ReactorPanic()
			logger.Error("处理就绪事件时发生 panic",
				"owner", fmt.Sprintf("%T", k.owner),
				"ready", k.ready.String(),
				"panic", p,
				"stack", string(debug.Stack()))
		}
	}()

	ready := k.ready
	if ready.Has(OpAccept) && k.valid {
		if h, ok := k.owner.(AcceptHandler); ok {
			h.HandleAccept(k)
		}
	}
	if ready.Has(OpConnect) && k.valid {
		if h, ok := k.owner.(ConnectHandler); ok {
			h.HandleConnect(k)
		}
	}
	if ready.Has(OpRead) && k.valid {
		if h, ok := k.owner.(ReadHandler); ok {
			h.HandleRead(k)
		}
	}
	if ready.Has(OpWrite) && k.valid {
		if h, ok := k.owner.(WriteHandler); ok {
			h.HandleWrite(k)
		}
	}
}

// shutdown 应用残余请求后关闭全部通道
func (r *Reactor) shutdown(sel *Selector) {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	now := r.clock.Now()
	for _, req := range batch {
		if _, ok := req.(ConnectRequest); ok {
			continue
		}
		r.applySafely(req, now)
	}

	sel.Close()
	r.wake.Store(nil)
}
