package reactor

import "time"

// Selector 电平触发的就绪选择器
//
// 除 Wakeup 外的所有方法只能在 reactor goroutine 上调用。
type Selector struct {
	keys   map[Channel]*SelectionKey
	wakeCh chan struct{}
}

// NewSelector 创建 Selector
func NewSelector() *Selector {
	return &Selector{
		keys:   make(map[Channel]*SelectionKey),
		wakeCh: make(chan struct{}, 1),
	}
}

// Wakeup 唤醒阻塞中的 Select，可在任意 goroutine 调用
func (s *Selector) Wakeup() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Register 注册通道；已注册时更新 owner 与兴趣集
func (s *Selector) Register(ch Channel, owner any, ops Ops) *SelectionKey {
	if k, ok := s.keys[ch]; ok {
		k.owner = owner
		k.interest = ops
		return k
	}
	k := &SelectionKey{
		sel:      s,
		ch:       ch,
		owner:    owner,
		interest: ops,
		valid:    true,
	}
	s.keys[ch] = k
	ch.SetWaker(s.Wakeup)
	return k
}

// KeyFor 返回通道的 key，未注册返回 nil
func (s *Selector) KeyFor(ch Channel) *SelectionKey {
	return s.keys[ch]
}

// Keys 返回全部有效 key
func (s *Selector) Keys() []*SelectionKey {
	out := make([]*SelectionKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	return out
}

// Len 返回注册数
func (s *Selector) Len() int {
	return len(s.keys)
}

// Select 返回就绪 key，最多阻塞 timeout
//
// 先检查一次就绪状态；没有就绪时等待唤醒或超时后再检查一次。
func (s *Selector) Select(timeout time.Duration) []*SelectionKey {
	if ready := s.collect(); len(ready) > 0 {
		s.drainWake()
		return ready
	}

	timer := time.NewTimer(timeout)
	select {
	case <-s.wakeCh:
	case <-timer.C:
	}
	timer.Stop()

	return s.collect()
}

func (s *Selector) collect() []*SelectionKey {
	var ready []*SelectionKey
	for _, k := range s.keys {
		k.ready = k.ch.ReadyOps() & k.interest
		if k.ready != 0 {
			ready = append(ready, k)
		}
	}
	return ready
}

func (s *Selector) drainWake() {
	select {
	case <-s.wakeCh:
	default:
	}
}

// Close 关闭并注销全部通道
func (s *Selector) Close() {
	for ch, k := range s.keys {
		k.valid = false
		_ = ch.Close()
		delete(s.keys, ch)
	}
}
