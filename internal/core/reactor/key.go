package reactor

// SelectionKey 通道在 Selector 上的注册句柄
//
// 只能在 reactor goroutine 上访问。
type SelectionKey struct {
	sel      *Selector
	ch       Channel
	owner    any
	interest Ops
	ready    Ops
	valid    bool
}

// Channel 返回注册的通道
func (k *SelectionKey) Channel() Channel {
	return k.ch
}

// Owner 返回附着的处理者
func (k *SelectionKey) Owner() any {
	return k.owner
}

// Interest 返回兴趣集
func (k *SelectionKey) Interest() Ops {
	return k.interest
}

// SetInterest 设置兴趣集
func (k *SelectionKey) SetInterest(ops Ops) {
	k.interest = ops
}

// ReadyOps 返回最近一次 Select 时的就绪集合（已与兴趣集求交）
func (k *SelectionKey) ReadyOps() Ops {
	return k.ready
}

// Valid key 是否仍然有效
func (k *SelectionKey) Valid() bool {
	return k.valid
}

// Cancel 注销 key，不关闭通道
func (k *SelectionKey) Cancel() {
	if !k.valid {
		return
	}
	k.valid = false
	delete(k.sel.keys, k.ch)
}

// Selector 返回所属 Selector
func (k *SelectionKey) Selector() *Selector {
	return k.sel
}
