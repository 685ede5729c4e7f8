package tcp

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/transport"
)

// Params TCP 传输依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回 Fx 模块，以 group:"transports" 提供 TCP 传输
func Module() fx.Option {
	return fx.Module("transport_tcp",
		fx.Provide(fx.Annotate(
			ProvideTransport,
			fx.As(new(transport.Transport)),
			fx.ResultTags(`group:"transports"`),
		)),
	)
}

// ProvideTransport 提供 TCP 传输
func ProvideTransport(p Params) *Transport {
	return New(transport.ConfigFromUnified(p.UnifiedCfg))
}
