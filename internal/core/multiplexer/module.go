package multiplexer

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport/sctp"
)

// Params Registry 依赖参数
type Params struct {
	fx.In

	Reactor    *reactor.Reactor
	SCTP       *sctp.Transport
	UnifiedCfg *config.Config     `optional:"true"`
	Metrics    *metrics.Collector `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("multiplexer",
		fx.Provide(ProvideRegistry),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideRegistry 提供多路复用器注册表
func ProvideRegistry(p Params) *Registry {
	mgmt := config.DefaultManagementConfig()
	if p.UnifiedCfg != nil {
		mgmt = p.UnifiedCfg.Management
	}
	tc := p.SCTP.Config()
	return NewRegistry(p.Reactor, p.SCTP, p.Metrics, Options{
		Branching:        func() bool { return mgmt.Branching },
		HandshakeTimeout: tc.HandshakeTimeout,
		ReuseAddr:        tc.ReuseAddr,
	})
}

type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Registry *Registry
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return input.Registry.Close()
		},
	})
}
