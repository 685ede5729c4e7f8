package manager

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/multiplexer"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/internal/core/worker"
	"github.com/dep2p/go-assoc/pkg/interfaces"
)

// Params Manager 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Reactor    *reactor.Reactor
	Pool       *worker.Pool
	Transports *transport.Set
	Muxes      *multiplexer.Registry   `optional:"true"`
	Metrics    *metrics.Collector      `optional:"true"`
	Store      interfaces.RosterStore `optional:"true"`
}

// Module 返回 Fx 模块
//
// 同时提供 *Manager 与 interfaces.Management，随应用启动与停止。
func Module() fx.Option {
	return fx.Module("manager",
		fx.Provide(ProvideManager),
		fx.Provide(func(m *Manager) interfaces.Management { return m }),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 提供 Manager
func ProvideManager(p Params) (*Manager, error) {
	return New(p.UnifiedCfg, Deps{
		Reactor:    p.Reactor,
		Pool:       p.Pool,
		Transports: p.Transports,
		Muxes:      p.Muxes,
		Metrics:    p.Metrics,
		Store:      p.Store,
	})
}

type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Manager *Manager
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return input.Manager.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return input.Manager.Stop(ctx)
		},
	})
}
