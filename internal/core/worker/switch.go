package worker

import "sync/atomic"

// Switch 在执行器池与 Inline 之间切换的 Dispatcher
//
// 单线程模式只在 Manager 停止时切换，关联持有同一个 Switch。
type Switch struct {
	pool   *Pool
	inline Inline
	single atomic.Bool
}

var _ Dispatcher = (*Switch)(nil)

// NewSwitch 创建 Switch
func NewSwitch(pool *Pool, singleThread bool) *Switch {
	s := &Switch{pool: pool, inline: Inline{Metrics: pool.metrics}}
	s.single.Store(singleThread)
	return s
}

// SetSingleThread 设置单线程模式
func (s *Switch) SetSingleThread(enabled bool) {
	s.single.Store(enabled)
}

// SingleThread 是否单线程模式
func (s *Switch) SingleThread() bool {
	return s.single.Load()
}

// Pool 返回执行器池
func (s *Switch) Pool() *Pool {
	return s.pool
}

// NextIndex 实现 Dispatcher
func (s *Switch) NextIndex() int {
	if s.single.Load() {
		return s.inline.NextIndex()
	}
	return s.pool.NextIndex()
}

// Dispatch 实现 Dispatcher
func (s *Switch) Dispatch(index int, task func()) {
	if s.single.Load() {
		s.inline.Dispatch(index, task)
		return
	}
	s.pool.Dispatch(index, task)
}
