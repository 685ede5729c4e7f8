package sctp

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/transport"
)

// Params SCTP 传输依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回 Fx 模块
//
// 同时以具体类型（供多路复用器使用）与 group:"transports" 提供。
func Module() fx.Option {
	return fx.Module("transport_sctp",
		fx.Provide(ProvideTransport),
		fx.Provide(fx.Annotate(
			func(t *Transport) transport.Transport { return t },
			fx.ResultTags(`group:"transports"`),
		)),
	)
}

// ProvideTransport 提供 SCTP 传输
func ProvideTransport(p Params) *Transport {
	return New(transport.ConfigFromUnified(p.UnifiedCfg))
}
