package metrics

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Clock clock.Clock `optional:"true"`
}

// Module 返回 metrics 的 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			NewCollectorFromParams,
		),
	)
}

// NewCollectorFromParams 从参数创建 Collector
func NewCollectorFromParams(p Params) *Collector {
	return NewCollector(p.Clock)
}
