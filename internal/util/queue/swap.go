package queue

import "sync"

// SwapQueue 交换式批量队列
//
// 生产者持读锁追加，互不阻塞；消费者 Swap 时持写锁把整条队列替换为
// 空队列，随后在锁外处理旧队列。
type SwapQueue[T any] struct {
	mu sync.RWMutex
	q  *MPSC[T]
}

// NewSwapQueue 创建交换式队列
func NewSwapQueue[T any]() *SwapQueue[T] {
	return &SwapQueue[T]{q: NewMPSC[T]()}
}

// Push 追加元素，并发安全
func (s *SwapQueue[T]) Push(v T) {
	s.mu.RLock()
	s.q.Push(v)
	s.mu.RUnlock()
}

// Swap 取出当前全部元素（按入队顺序）
func (s *SwapQueue[T]) Swap() []T {
	s.mu.Lock()
	old := s.q
	if old.Empty() {
		s.mu.Unlock()
		return nil
	}
	s.q = NewMPSC[T]()
	s.mu.Unlock()

	var out []T
	for v, ok := old.Pop(); ok; v, ok = old.Pop() {
		out = append(out, v)
	}
	return out
}

// Empty 是否为空（近似值）
func (s *SwapQueue[T]) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.Empty()
}
