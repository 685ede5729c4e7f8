package transport

import (
	"go.uber.org/fx"
)

// TransportsIn 以 group 收集各传输实现
type TransportsIn struct {
	fx.In

	Transports []Transport `group:"transports"`
}

// Module 返回 Fx 模块
//
// 各传输子包以 group:"transports" 提供实现，这里汇总为 Set。
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideSet),
	)
}

// ProvideSet 提供传输集合
func ProvideSet(in TransportsIn) *Set {
	s := NewSet(in.Transports...)
	logger.Debug("传输集合已创建", "count", len(s.transports))
	return s
}
