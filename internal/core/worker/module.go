package worker

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/metrics"
)

// Params Pool 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config     `optional:"true"`
	Metrics    *metrics.Collector `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("worker",
		fx.Provide(ProvidePool),
		fx.Invoke(registerLifecycle),
	)
}

// ProvidePool 提供执行器池
func ProvidePool(p Params) *Pool {
	size := config.DefaultManagementConfig().EffectiveWorkerThreads()
	if p.UnifiedCfg != nil {
		size = p.UnifiedCfg.Management.EffectiveWorkerThreads()
	}
	return NewPool(size, p.Metrics)
}

type lifecycleInput struct {
	fx.In
	LC   fx.Lifecycle
	Pool *Pool
}

// Pool 由 Manager 启动，这里只在应用停止时兜底
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return input.Pool.Stop(ctx)
		},
	})
}
