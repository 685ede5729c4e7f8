package assoc

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/roster"
	"github.com/dep2p/go-assoc/pkg/interfaces"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// config 完整配置，各选项在其上修改
	config *config.Config

	// store 名册持久化，nil 表示不持久化
	store interfaces.RosterStore

	// clock 测试时注入 mock 时钟
	clock clock.Clock

	// fxOptions 用户追加的 Fx 选项
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用完整配置，之后的选项在其副本上修改
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		o.config = cfg
		return nil
	}
}

// WithConnectDelay 设置重连延迟
func WithConnectDelay(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("connect delay must be non-negative: %s", d)
		}
		o.config.Management = o.config.Management.WithConnectDelay(d)
		return nil
	}
}

// WithWorkerThreads 设置 worker 数量，0 表示 2×CPU 核数
func WithWorkerThreads(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("worker threads must be non-negative: %d", n)
		}
		o.config.Management = o.config.Management.WithWorkerThreads(n)
		return nil
	}
}

// WithSingleThread 启用单线程模式，全部回调在 reactor goroutine 上执行
func WithSingleThread(enabled bool) Option {
	return func(o *options) error {
		o.config.Management = o.config.Management.WithSingleThread(enabled)
		return nil
	}
}

// WithMaxIOErrors 设置 IO 错误阈值
func WithMaxIOErrors(n int) Option {
	return func(o *options) error {
		if n < 0 {
			return fmt.Errorf("max io errors must be non-negative: %d", n)
		}
		o.config.Management = o.config.Management.WithMaxIOErrors(n)
		return nil
	}
}

// WithSelectTimeout 设置 reactor 单次等待的最长时间
func WithSelectTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("select timeout must be positive: %s", d)
		}
		o.config.Management.SelectTimeout = config.Duration(d)
		return nil
	}
}

// WithBranching 多路复用关联建立后剥离为独立通道
func WithBranching(enabled bool) Option {
	return func(o *options) error {
		o.config.Management.Branching = enabled
		return nil
	}
}

// WithStreams 设置本端声明的入站/出站流数量
func WithStreams(inbound, outbound int) Option {
	return func(o *options) error {
		if inbound <= 0 || outbound <= 0 {
			return fmt.Errorf("stream counts must be positive: %d/%d", inbound, outbound)
		}
		o.config.Transport = o.config.Transport.WithStreams(inbound, outbound)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              持久化
// ════════════════════════════════════════════════════════════════════════════

// WithRosterStore 使用自定义名册存储
func WithRosterStore(s interfaces.RosterStore) Option {
	return func(o *options) error {
		o.store = s
		return nil
	}
}

// WithRosterFile 把名册保存为 JSON 文件
func WithRosterFile(path string) Option {
	return func(o *options) error {
		if path == "" {
			return errors.New("roster file path is empty")
		}
		o.store = roster.NewFileStore(path)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              扩展
// ════════════════════════════════════════════════════════════════════════════

// WithClock 注入时钟，测试中用 clock.NewMock 驱动重连
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithFxOptions 追加 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
