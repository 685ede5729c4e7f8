package reactor

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/metrics"
)

// Params Reactor 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config     `optional:"true"`
	Clock      clock.Clock        `optional:"true"`
	Metrics    *metrics.Collector `optional:"true"`
}

// Module 返回 Fx 模块
//
// Reactor 由 Manager 负责启动；模块只在应用停止时兜底停止。
func Module() fx.Option {
	return fx.Module("reactor",
		fx.Provide(ProvideReactor),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideReactor 提供 Reactor
func ProvideReactor(p Params) *Reactor {
	return New(ConfigFromUnified(p.UnifiedCfg), p.Clock, p.Metrics)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Reactor *Reactor
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return input.Reactor.Stop(ctx)
		},
	})
}
