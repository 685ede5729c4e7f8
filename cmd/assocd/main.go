// Package main 提供 assocd 守护进程入口
//
// assocd 从 JSON 名册恢复 Server 与关联，并在 /metrics 暴露 Prometheus 指标。
// 关联的载荷由嵌入方处理；守护进程为每个恢复的关联挂载只记录日志的监听器。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-assoc"
	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/lib/log"
	"github.com/dep2p/go-assoc/pkg/types"
)

var logger = log.Logger("assocd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖（「这次运行」想怎么跑）
//   JSON 配置文件：持久化配置（管理器、传输与日志）
//   JSON 名册文件：Server 与关联，以及未显式配置时使用的管理设置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile  = flag.String("config", "", "配置文件路径")
	rosterFile  = flag.String("roster", "roster.json", "名册文件路径")
	metricsAddr = flag.String("metrics-addr", "", "Prometheus 指标监听地址（为空不启用）")

	// ─────────────────────────────────────────────────────────────────────
	// 管理器覆盖
	// ─────────────────────────────────────────────────────────────────────
	connectDelay = flag.Duration("connect-delay", 0, "重连延迟（0 = 使用配置）")
	singleThread = flag.Bool("single-thread", false, "单线程模式")
	workers      = flag.Int("workers", -1, "worker 数量（-1 = 使用配置，0 = 2×CPU）")

	// ─────────────────────────────────────────────────────────────────────
	// 日志参数
	// ─────────────────────────────────────────────────────────────────────
	logLevel  = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	logFormat = flag.String("log-format", "", "日志格式 (text/json)")
	logFile   = flag.String("log", "", "日志文件路径")

	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println("assocd", assoc.Version)
		return nil
	}

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	logHandle, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	if logHandle != nil {
		defer func() { _ = logHandle.Close() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("启动 assocd", "version", assoc.Version, "roster", *rosterFile)
	stack, err := assoc.Start(ctx,
		assoc.WithConfig(cfg),
		assoc.WithRosterFile(*rosterFile),
	)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = stack.Close() }()

	attachListeners(stack.Management())

	var srv *http.Server
	if *metricsAddr != "" {
		srv = serveMetrics(*metricsAddr, stack)
	}

	printRoster(stack.Management())
	fmt.Println("assocd 已启动，按 Ctrl+C 退出")
	waitForSignal()

	fmt.Println("\n正在关闭...")
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return stack.Stop(context.Background())
}

// buildConfig 合并配置文件、环境变量与命令行参数
//
// 优先级：命令行 > 环境变量（ASSOC_*）> 配置文件 > 名册中保存的设置 > 默认值
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if isFlagSet("connect-delay") {
		cfg.Management = cfg.Management.WithConnectDelay(*connectDelay)
	}
	if isFlagSet("single-thread") {
		cfg.Management = cfg.Management.WithSingleThread(*singleThread)
	}
	if *workers >= 0 {
		cfg.Management = cfg.Management.WithWorkerThreads(*workers)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	return config.ValidateAndFix(cfg)
}

// setupLogging 按日志配置初始化全局 logger
func setupLogging(c config.LogConfig) (*os.File, error) {
	lvl, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if c.File == "" {
		log.Setup(os.Stderr, lvl, c.Format)
		return nil, nil
	}
	f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	log.Setup(f, lvl, c.Format)
	return f, nil
}

// serveMetrics 在独立 goroutine 中暴露 /metrics
func serveMetrics(addr string, stack *assoc.Stack) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(stack.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("指标服务退出", "addr", addr, "error", err)
		}
	}()
	logger.Info("指标服务已启动", "addr", addr)
	return srv
}

// logListener 只记录事件的关联监听器
type logListener struct{}

func (logListener) OnCommunicationUp(a interfaces.Association, in, out int) {
	logger.Info("通信建立", "association", a.Name(), "inbound", in, "outbound", out)
}

func (logListener) OnCommunicationLost(a interfaces.Association) {
	logger.Warn("通信丢失", "association", a.Name())
}

func (logListener) OnCommunicationShutdown(a interfaces.Association) {
	logger.Info("通信关闭", "association", a.Name())
}

func (logListener) OnCommunicationRestart(a interfaces.Association) {
	logger.Info("通信重启", "association", a.Name())
}

func (logListener) OnPayload(a interfaces.Association, f *types.Frame) {
	logger.Debug("收到载荷", "association", a.Name(), "stream", f.Stream(), "ppid", f.ProtocolID(), "size", f.Length())
}

func (logListener) OnInvalidStreamID(f *types.Frame) {
	logger.Warn("流号越界", "stream", f.Stream())
}

// attachListeners 为名册中的关联挂载日志监听器并启动标记为运行的关联
//
// 名册恢复时关联尚无监听器，启动会失败，这里补上。
func attachListeners(mgmt interfaces.Management) {
	snap := mgmt.Snapshot()
	wanted := make(map[string]bool, len(snap.Associations))
	for _, ra := range snap.Associations {
		wanted[ra.Name] = ra.Started
	}

	for name, a := range mgmt.Associations() {
		a.SetListener(logListener{})
		if !a.IsStarted() && wanted[name] {
			if err := mgmt.StartAssociation(name); err != nil {
				logger.Warn("启动关联失败", "association", name, "error", err)
			}
		}
	}

	mgmt.SetServerListener(interfaces.ServerListenerFunc(func(s interfaces.Server, a interfaces.Association) bool {
		logger.Info("接受匿名连接", "server", s.Name(), "association", a.Name(), "peer", a.Config().PeerEndpoint())
		return a.AcceptAnonymous(logListener{}) == nil
	}))
}

func printRoster(mgmt interfaces.Management) {
	fmt.Println("Server:")
	for _, s := range mgmt.Servers() {
		c := s.Config()
		fmt.Printf("  %-16s %-4s %s:%d started=%v\n", c.Name, c.Transport, c.HostAddress, c.HostPort, s.IsStarted())
	}
	fmt.Println("关联:")
	for name, a := range mgmt.Associations() {
		fmt.Printf("  %-16s %-6s %-4s -> %s state=%s\n", name, a.Type(), a.Transport(), a.Config().PeerEndpoint(), a.State())
	}
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// waitForSignal 等待退出信号
func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
}
