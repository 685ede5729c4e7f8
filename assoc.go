package assoc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/manager"
	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/lib/log"
)

var logger = log.Logger("assoc")

// Version 当前版本
const Version = "v0.1.0"

// stopTimeout Close 使用的停止超时
const stopTimeout = 10 * time.Second

// Stack 关联管理栈
//
// 持有 Fx 应用与 Manager。Start/Stop 可重复调用，Close 之后不可再用。
type Stack struct {
	config *config.Config
	app    *fx.App

	manager *manager.Manager
	metrics *metrics.Collector

	mu         sync.Mutex
	appRunning bool
	started    bool
	closed     bool
}

// New 创建 Stack，不启动
func New(opts ...Option) (*Stack, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	s := &Stack{config: o.config}
	app, err := buildFxApp(o, s)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	s.app = app
	return s, nil
}

// Start 快捷启动函数，等价于 New() + Start()
func Start(ctx context.Context, opts ...Option) (*Stack, error) {
	s, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("start stack: %w", err)
	}
	return s, nil
}

// Start 启动 Stack
//
// 首次启动运行 Fx 应用；之后的启动只重启 Manager。
func (s *Stack) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}

	if !s.appRunning {
		if err := s.app.Start(ctx); err != nil {
			return fmt.Errorf("initialize failed: %w", err)
		}
		s.appRunning = true
	} else if err := s.manager.Start(ctx); err != nil {
		return err
	}
	s.started = true

	logger.Info("Stack 已启动", "version", Version)
	return nil
}

// Stop 停止全部关联与 Server，可再次 Start
func (s *Stack) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	if err := s.manager.Stop(ctx); err != nil {
		return err
	}
	logger.Info("Stack 已停止")
	return nil
}

// Close 停止并释放 Fx 应用
func (s *Stack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.started = false
	if !s.appRunning {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := s.app.Stop(ctx); err != nil {
		return fmt.Errorf("stop fx app: %w", err)
	}
	logger.Info("Stack 已关闭")
	return nil
}

// IsStarted 是否已启动
func (s *Stack) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Management 返回管理 API
func (s *Stack) Management() interfaces.Management {
	return s.manager
}

// Config 返回配置副本
func (s *Stack) Config() *config.Config {
	return s.config.Clone()
}

// Registry 返回 Prometheus 注册表，供 /metrics 暴露
func (s *Stack) Registry() *prometheus.Registry {
	return s.metrics.Registry()
}
