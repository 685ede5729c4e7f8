package assoc

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/manager"
	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/multiplexer"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/internal/core/transport/sctp"
	"github.com/dep2p/go-assoc/internal/core/transport/tcp"
	"github.com/dep2p/go-assoc/internal/core/worker"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/lib/log"
)

var fxLogger = log.Logger("assoc/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Metrics → Reactor → Worker
//  2. Transport: TCP, SCTP → Set → Multiplexer
//  3. Manager
func buildFxApp(o *options, s *Stack) (*fx.App, error) {
	if err := config.ValidateAll(o.config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(o.config),

		metrics.Module(),
		reactor.Module(),
		worker.Module(),

		transport.Module(),
		tcp.Module(),
		sctp.Module(),
		multiplexer.Module(),

		manager.Module(),
	}

	if clk := o.clock; clk != nil {
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}
	if store := o.store; store != nil {
		modules = append(modules, fx.Provide(func() interfaces.RosterStore { return store }))
	}

	modules = append(modules, o.fxOptions...)

	modules = append(modules,
		fx.Populate(&s.manager, &s.metrics),
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	fxLogger.Debug("Fx 模块已组装", "modules", len(modules))
	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}
