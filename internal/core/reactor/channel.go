package reactor

// Channel 可注册到 Selector 的就绪源
type Channel interface {
	// ReadyOps 返回当前就绪的操作集合，并发安全
	ReadyOps() Ops

	// SetWaker 注入唤醒函数，就绪状态变化时调用
	SetWaker(wake func())

	// Close 关闭通道，由 reactor 调用
	Close() error
}

// AcceptHandler 处理 OpAccept 就绪
type AcceptHandler interface {
	HandleAccept(key *SelectionKey)
}

// ConnectHandler 处理 OpConnect 就绪
type ConnectHandler interface {
	HandleConnect(key *SelectionKey)
}

// ReadHandler 处理 OpRead 就绪
type ReadHandler interface {
	HandleRead(key *SelectionKey)
}

// WriteHandler 处理 OpWrite 就绪
type WriteHandler interface {
	HandleWrite(key *SelectionKey)
}

// Connector 可被 ConnectRequest 驱动建连的对象（客户端关联）
type Connector interface {
	// IsStarted 到期时检查，未启动则丢弃请求
	IsStarted() bool

	// InitiateConnection 在 reactor goroutine 上发起建连
	InitiateConnection()
}

// Closer 可被 CloseRequest 关闭通道的对象
type Closer interface {
	// CloseChannel 在 reactor goroutine 上关闭通道并传播关闭通知
	CloseChannel()
}
