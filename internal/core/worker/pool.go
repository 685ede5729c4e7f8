package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/util/queue"
	"github.com/dep2p/go-assoc/pkg/lib/log"
)

var logger = log.Logger("core/worker")

// Dispatcher 按执行器下标投递任务
type Dispatcher interface {
	// NextIndex 返回下一个执行器下标
	NextIndex() int

	// Dispatch 把任务投递到 index 对应的执行器
	Dispatch(index int, task func())
}

// executor 串行执行器
type executor struct {
	id    int
	tasks *queue.MPSC[func()]
	done  chan struct{}
}

func (e *executor) run(m *metrics.Collector) {
	defer close(e.done)
	for e.tasks.Wait() {
		for task, ok := e.tasks.Pop(); ok; task, ok = e.tasks.Pop() {
			runSafely(task, m)
		}
	}
}

// Pool 串行执行器池
type Pool struct {
	mu        sync.Mutex
	size      int
	executors []*executor
	running   atomic.Bool

	next    atomic.Uint64
	metrics *metrics.Collector
}

var _ Dispatcher = (*Pool)(nil)

// NewPool 创建执行器池，size 必须为正数
func NewPool(size int, m *metrics.Collector) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{size: size, metrics: m}
}

// Size 返回执行器数量
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// SetSize 修改执行器数量，仅在停止状态下允许
func (p *Pool) SetSize(n int) error {
	if n <= 0 {
		return ErrInvalidSize
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running.Load() {
		return ErrPoolRunning
	}
	p.size = n
	return nil
}

// Start 启动全部执行器
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running.Load() {
		return nil
	}

	p.executors = make([]*executor, p.size)
	for i := range p.executors {
		e := &executor{
			id:    i,
			tasks: queue.NewMPSC[func()](),
			done:  make(chan struct{}),
		}
		p.executors[i] = e
		go e.run(p.metrics)
	}
	p.running.Store(true)

	logger.Info("worker 池已启动", "size", p.size)
	return nil
}

// Stop 停止执行器池
//
// 已入队的任务会被执行完毕；ctx 超时则不再等待。
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running.Load() {
		p.mu.Unlock()
		return nil
	}
	p.running.Store(false)
	executors := p.executors
	p.executors = nil
	p.mu.Unlock()

	for _, e := range executors {
		e.tasks.Close()
	}
	for _, e := range executors {
		select {
		case <-e.done:
		case <-ctx.Done():
			return fmt.Errorf("wait worker %d: %w", e.id, ctx.Err())
		}
	}

	logger.Info("worker 池已停止", "size", len(executors))
	return nil
}

// IsRunning 是否运行中
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// NextIndex 返回下一个执行器下标
func (p *Pool) NextIndex() int {
	n := p.Size()
	return int((p.next.Add(1) - 1) % uint64(n))
}

// Dispatch 投递任务，永不阻塞
//
// 池未运行时任务被丢弃并记录日志。
func (p *Pool) Dispatch(index int, task func()) {
	p.mu.Lock()
	executors := p.executors
	p.mu.Unlock()

	if len(executors) == 0 {
		logger.Warn("worker 池未运行，丢弃任务", "index", index)
		return
	}
	e := executors[index%len(executors)]
	if !e.tasks.Push(task) {
		logger.Warn("worker 已关闭，丢弃任务", "index", index)
	}
}

// Pending 返回各执行器的排队任务数
func (p *Pool) Pending() []int {
	p.mu.Lock()
	executors := p.executors
	p.mu.Unlock()

	out := make([]int, len(executors))
	for i, e := range executors {
		out[i] = e.tasks.Len()
	}
	return out
}

// Inline 在调用方 goroutine 上直接执行任务
type Inline struct {
	Metrics *metrics.Collector
}

var _ Dispatcher = Inline{}

// NextIndex 总是返回 0
func (Inline) NextIndex() int { return 0 }

// Dispatch 立即执行任务
func (i Inline) Dispatch(_ int, task func()) {
	runSafely(task, i.Metrics)
}

func runSafely(task func(), m *metrics.Collector) {
	defer func() {
		if r := recover(); r != nil {
			m.ListenerPanic()
			logger.Error("监听器回调发生 panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	task()
}
