package association

import (
	"time"

	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/internal/core/worker"
	"github.com/dep2p/go-assoc/pkg/types"
)

// Settings 进程级可调参数，由 Manager 提供
type Settings interface {
	ConnectDelay() time.Duration
	MaxIOErrors() int
}

// MuxRegistry 一对多多路复用器注册表
type MuxRegistry interface {
	// Register 把关联登记为待连接，返回其所在的多路复用器
	Register(a *Association) (MuxBinding, error)
}

// MuxBinding 关联与多路复用器的绑定
type MuxBinding interface {
	// Connect 请求向对端发起建连，在 reactor goroutine 上调用
	Connect(a *Association)

	// Send 经多路复用器的发送队列发出一帧
	Send(a *Association, f *types.Frame)

	// Release 解除关联，中断其对端连接，在 reactor goroutine 上调用
	Release(a *Association)
}

// Env 关联共享的运行环境
type Env struct {
	Reactor    *reactor.Reactor
	Transports *transport.Set
	Dispatcher worker.Dispatcher
	Settings   Settings
	Muxes      MuxRegistry
	Metrics    *metrics.Collector

	// TransportConfig 提供队列长度与握手超时
	TransportConfig transport.Config
}

type fixedSettings struct {
	delay     time.Duration
	maxErrors int
}

func (s fixedSettings) ConnectDelay() time.Duration { return s.delay }
func (s fixedSettings) MaxIOErrors() int            { return s.maxErrors }

// FixedSettings 返回固定值的 Settings
func FixedSettings(connectDelay time.Duration, maxIOErrors int) Settings {
	return fixedSettings{delay: connectDelay, maxErrors: maxIOErrors}
}
