package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// MPSC 无锁多生产者单消费者队列
type MPSC[T any] struct {
	head   atomic.Pointer[node[T]] // 仅消费者修改
	tail   atomic.Pointer[node[T]]
	closed atomic.Bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewMPSC 创建队列
func NewMPSC[T any]() *MPSC[T] {
	q := &MPSC[T]{}
	q.cond = sync.NewCond(&q.mu)

	sentinel := &node[T]{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Push 追加元素，队列已关闭时返回 false
//
// 并发安全。
func (q *MPSC[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	n := &node[T]{value: value}
	var backoff uint8
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				q.signal()
				return true
			}
		} else {
			// 帮助推进 tail
			q.tail.CompareAndSwap(tail, next)
		}

		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// signal 在锁内唤醒，避免消费者检查与 Wait 之间丢失信号
func (q *MPSC[T]) signal() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// Pop 非阻塞出队，仅消费者调用
func (q *MPSC[T]) Pop() (T, bool) {
	var zero T
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return zero, false
	}
	v := next.value
	next.value = zero
	q.head.Store(next)
	return v, true
}

// Wait 阻塞直到队列非空或已关闭
//
// 返回 false 表示队列已关闭且为空，消费者应退出。
func (q *MPSC[T]) Wait() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head.Load().next.Load() == nil {
		if q.closed.Load() {
			return false
		}
		q.cond.Wait()
	}
	return true
}

// Empty 队列是否为空（近似值）
func (q *MPSC[T]) Empty() bool {
	return q.head.Load().next.Load() == nil
}

// Len 返回近似元素个数，O(n)，仅用于调试与指标
func (q *MPSC[T]) Len() int {
	count := 0
	for cur := q.head.Load().next.Load(); cur != nil; cur = cur.next.Load() {
		count++
	}
	return count
}

// Close 关闭队列，已入队元素仍可被消费
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// IsClosed 是否已关闭
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}
