package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-assoc/config"
	"github.com/dep2p/go-assoc/internal/core/association"
	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/multiplexer"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/internal/core/worker"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/lib/log"
	"github.com/dep2p/go-assoc/pkg/types"
)

var logger = log.Logger("core/manager")

// persistTimeout 单次名册保存的最长时间
const persistTimeout = 5 * time.Second

// Deps Manager 依赖的组件
//
// Muxes 为 nil 时不支持多路复用关联；Store 为 nil 时不持久化。
type Deps struct {
	Reactor    *reactor.Reactor
	Pool       *worker.Pool
	Transports *transport.Set
	Muxes      *multiplexer.Registry
	Metrics    *metrics.Collector
	Store      interfaces.RosterStore
}

type gateBox struct {
	l interfaces.ServerListener
}

// Manager 关联管理器
type Manager struct {
	reactor *reactor.Reactor
	pool    *worker.Pool
	sw      *worker.Switch
	muxes   *multiplexer.Registry
	metrics *metrics.Collector
	store   interfaces.RosterStore
	env     *association.Env

	// lifeMu 串行化 Start/Stop
	lifeMu  sync.Mutex
	started atomic.Bool
	// resume Stop 时记录的名册快照，重启时据此恢复运行状态
	resume *types.RosterSnapshot

	// writeMu 串行化名册写操作，读操作直接 Load
	writeMu sync.Mutex
	roster  atomic.Pointer[roster]

	connectDelay  atomic.Int64
	maxIOErrors   atomic.Int64
	workerThreads atomic.Int64
	// pinned 配置中显式设置的字段，加载名册时保留
	pinned config.Setting

	gate atomic.Pointer[gateBox]
}

var (
	_ interfaces.Management = (*Manager)(nil)
	_ association.Settings  = (*Manager)(nil)
)

// New 创建 Manager
func New(cfg *config.Config, d Deps) (*Manager, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if d.Reactor == nil || d.Pool == nil || d.Transports == nil {
		return nil, errors.New("manager requires reactor, pool and transports")
	}

	m := &Manager{
		reactor: d.Reactor,
		pool:    d.Pool,
		sw:      worker.NewSwitch(d.Pool, cfg.Management.SingleThread),
		muxes:   d.Muxes,
		metrics: d.Metrics,
		store:   d.Store,
		pinned:  cfg.Management.Pinned,
	}
	m.connectDelay.Store(int64(cfg.Management.ConnectDelay))
	m.maxIOErrors.Store(int64(cfg.Management.MaxIOErrors))
	m.workerThreads.Store(int64(cfg.Management.WorkerThreads))
	m.roster.Store(emptyRoster())

	m.env = &association.Env{
		Reactor:         d.Reactor,
		Transports:      d.Transports,
		Dispatcher:      m.sw,
		Settings:        m,
		Metrics:         d.Metrics,
		TransportConfig: transport.ConfigFromUnified(cfg),
	}
	if d.Muxes != nil {
		m.env.Muxes = d.Muxes
	}
	return m, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动 Manager
//
// 名册为空时从 RosterStore 加载，随后启动标记为运行中的 Server 与关联。
// 重复调用为空操作。
func (m *Manager) Start(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.started.Load() {
		return nil
	}

	resume := m.resume
	m.resume = nil
	if len(m.roster.Load().servers) == 0 && len(m.roster.Load().associations) == 0 {
		if snap := m.load(ctx); snap != nil {
			m.applySettings(snap.Settings)
			resume = snap
		}
	}

	if err := m.reactor.Start(); err != nil && !errors.Is(err, reactor.ErrAlreadyRunning) {
		return fmt.Errorf("start reactor: %w", err)
	}
	if !m.sw.SingleThread() {
		if err := m.pool.SetSize(m.effectiveWorkerThreads()); err != nil && !errors.Is(err, worker.ErrPoolRunning) {
			return err
		}
		if err := m.pool.Start(); err != nil {
			return fmt.Errorf("start worker pool: %w", err)
		}
	}
	if m.muxes != nil {
		m.muxes.Reopen()
	}
	m.started.Store(true)

	if resume != nil {
		m.restore(resume)
	}

	logger.Info("Manager 已启动",
		"servers", len(m.roster.Load().servers),
		"associations", len(m.roster.Load().associations),
		"singleThread", m.sw.SingleThread())
	return nil
}

// Stop 停止全部关联与 Server，随后停止 reactor 与 worker 池并保存名册
//
// 未启动时为空操作。
func (m *Manager) Stop(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if !m.started.CompareAndSwap(true, false) {
		return nil
	}

	snap := m.Snapshot()
	m.resume = snap
	r := m.roster.Load()

	var err error
	for _, a := range r.sortedAssociations() {
		err = multierr.Append(err, a.Stop())
	}
	for _, s := range r.sortedServers() {
		if serr := s.Stop(); serr != nil {
			err = multierr.Append(err, fmt.Errorf("stop server %s: %w", s.Name(), serr))
		}
	}
	if m.muxes != nil {
		err = multierr.Append(err, m.muxes.Close())
	}
	err = multierr.Append(err, m.reactor.Stop(ctx))
	err = multierr.Append(err, m.pool.Stop(ctx))

	m.save(snap)

	logger.Info("Manager 已停止")
	return err
}

// IsStarted 实现 interfaces.Management
func (m *Manager) IsStarted() bool {
	return m.started.Load()
}

func (m *Manager) load(ctx context.Context) *types.RosterSnapshot {
	if m.store == nil {
		return nil
	}
	snap, err := m.store.Load(ctx)
	if err != nil {
		logger.Warn("加载名册失败，以空名册启动", "error", err)
		return nil
	}
	if snap == nil {
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	r := m.roster.Load()
	for _, sc := range snap.Servers {
		sc.Started = false
		s, err := m.newServer(r, sc)
		if err != nil {
			logger.Warn("名册中的 Server 无效，已跳过", "server", sc.Name, "error", err)
			continue
		}
		r = r.withServer(s)
	}
	for _, ra := range snap.Associations {
		var (
			a   *association.Association
			err error
		)
		if ra.Type == types.AssociationTypeServer {
			a, err = m.newServerAssociation(r, ra.AssociationConfig)
		} else {
			a, err = m.newClientAssociation(r, ra.AssociationConfig)
		}
		if err != nil {
			logger.Warn("名册中的关联无效，已跳过", "association", ra.Name, "error", err)
			continue
		}
		if a.Type() == types.AssociationTypeServer {
			r.servers[a.ServerName()].AddAssociation(a.Name())
		}
		r = r.withAssociation(a)
	}
	m.roster.Store(r)

	logger.Info("名册已加载", "servers", len(r.servers), "associations", len(r.associations))
	return snap
}

// restore 启动快照中标记为运行中的条目，Server 先于关联
//
// 关联需要先设置监听器，未设置的保持停止并记录日志。
func (m *Manager) restore(snap *types.RosterSnapshot) {
	r := m.roster.Load()
	for _, sc := range snap.Servers {
		if !sc.Started {
			continue
		}
		if s, ok := r.servers[sc.Name]; ok {
			if err := s.Start(); err != nil {
				logger.Warn("恢复 Server 失败", "server", sc.Name, "error", err)
			}
		}
	}
	for _, ra := range snap.Associations {
		if !ra.Started {
			continue
		}
		if a, ok := r.associations[ra.Name]; ok {
			if err := a.Start(); err != nil {
				logger.Warn("恢复关联失败", "association", ra.Name, "error", err)
			}
		}
	}
}

// ============================================================================
//                              快照与持久化
// ============================================================================

// Snapshot 返回可持久化的名册快照，匿名关联不在其中
func (m *Manager) Snapshot() *types.RosterSnapshot {
	r := m.roster.Load()
	snap := &types.RosterSnapshot{
		Servers:      make([]types.ServerConfig, 0, len(r.servers)),
		Associations: make([]types.RosterAssociation, 0, len(r.associations)),
		Settings: types.RosterSettings{
			ConnectDelayMillis: m.ConnectDelay().Milliseconds(),
			WorkerThreads:      m.WorkerThreads(),
			SingleThread:       m.SingleThread(),
			MaxIOErrors:        m.MaxIOErrors(),
		},
	}
	for _, s := range r.sortedServers() {
		sc := s.Config()
		sc.Started = s.IsStarted()
		snap.Servers = append(snap.Servers, sc)
	}
	for _, a := range r.sortedAssociations() {
		snap.Associations = append(snap.Associations, types.RosterAssociation{
			AssociationConfig: a.Config(),
			Started:           a.IsStarted(),
		})
	}
	return snap
}

func (m *Manager) persist() {
	m.save(m.Snapshot())
}

func (m *Manager) save(snap *types.RosterSnapshot) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.Save(ctx, snap); err != nil {
		logger.Warn("保存名册失败", "error", err)
	}
}

// ============================================================================
//                              全局设置
// ============================================================================

// ConnectDelay 重连延迟，实现 association.Settings
func (m *Manager) ConnectDelay() time.Duration {
	return time.Duration(m.connectDelay.Load())
}

// SetConnectDelay 设置重连延迟，对之后安排的重连生效
func (m *Manager) SetConnectDelay(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: connect delay %s", ErrInvalidSetting, d)
	}
	m.connectDelay.Store(int64(d))
	m.persist()
	return nil
}

// MaxIOErrors IO 错误阈值，实现 association.Settings
func (m *Manager) MaxIOErrors() int {
	return int(m.maxIOErrors.Load())
}

// SetMaxIOErrors 设置 IO 错误阈值
func (m *Manager) SetMaxIOErrors(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: max io errors %d", ErrInvalidSetting, n)
	}
	m.maxIOErrors.Store(int64(n))
	m.persist()
	return nil
}

// WorkerThreads worker 数量，0 表示 2×CPU 核数
func (m *Manager) WorkerThreads() int {
	return int(m.workerThreads.Load())
}

// SetWorkerThreads 设置 worker 数量，仅在 Manager 停止时允许
func (m *Manager) SetWorkerThreads(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: worker threads %d", ErrInvalidSetting, n)
	}
	if m.started.Load() {
		return ErrStarted
	}
	m.workerThreads.Store(int64(n))
	m.persist()
	return nil
}

func (m *Manager) effectiveWorkerThreads() int {
	return config.DefaultManagementConfig().WithWorkerThreads(m.WorkerThreads()).EffectiveWorkerThreads()
}

// SingleThread 是否单线程模式
func (m *Manager) SingleThread() bool {
	return m.sw.SingleThread()
}

// SetSingleThread 设置单线程模式，仅在 Manager 停止时允许
func (m *Manager) SetSingleThread(enabled bool) error {
	if m.started.Load() {
		return ErrStarted
	}
	m.sw.SetSingleThread(enabled)
	m.persist()
	return nil
}

// applySettings 应用名册中保存的设置
//
// 配置中显式设置的字段优先；空设置块视为未保存。
func (m *Manager) applySettings(s types.RosterSettings) {
	if s == (types.RosterSettings{}) {
		return
	}
	var kept []string
	if m.pinned&config.SettingConnectDelay == 0 {
		if s.ConnectDelayMillis >= 0 {
			m.connectDelay.Store(int64(time.Duration(s.ConnectDelayMillis) * time.Millisecond))
		}
	} else {
		kept = append(kept, "connectDelay")
	}
	if m.pinned&config.SettingMaxIOErrors == 0 {
		if s.MaxIOErrors >= 0 {
			m.maxIOErrors.Store(int64(s.MaxIOErrors))
		}
	} else {
		kept = append(kept, "maxIOErrors")
	}
	if m.pinned&config.SettingWorkerThreads == 0 {
		if s.WorkerThreads >= 0 {
			m.workerThreads.Store(int64(s.WorkerThreads))
		}
	} else {
		kept = append(kept, "workerThreads")
	}
	if m.pinned&config.SettingSingleThread == 0 {
		m.sw.SetSingleThread(s.SingleThread)
	} else {
		kept = append(kept, "singleThread")
	}
	if len(kept) > 0 {
		logger.Info("名册设置被显式配置覆盖", "settings", kept)
	}
}

// SetServerListener 设置匿名接入闸门，nil 表示拒绝全部匿名连接
func (m *Manager) SetServerListener(l interfaces.ServerListener) {
	if l == nil {
		m.gate.Store(nil)
		return
	}
	m.gate.Store(&gateBox{l: l})
}

func (m *Manager) currentGate() interfaces.ServerListener {
	if b := m.gate.Load(); b != nil {
		return b.l
	}
	return nil
}

func (m *Manager) resolve(name string) (*association.Association, bool) {
	a, ok := m.roster.Load().associations[name]
	return a, ok
}

// Metrics 返回指标收集器，未配置时为 nil
func (m *Manager) Metrics() *metrics.Collector {
	return m.metrics
}
