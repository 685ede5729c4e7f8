package manager

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-assoc/internal/core/association"
	"github.com/dep2p/go-assoc/internal/core/server"
	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/types"
)

// ============================================================================
//                              Server
// ============================================================================

// AddServer 添加 Server
//
// cfg.Started 只用于持久化，这里忽略。
func (m *Manager) AddServer(cfg types.ServerConfig) (interfaces.Server, error) {
	if !m.started.Load() {
		return nil, ErrNotStarted
	}
	cfg.Started = false

	m.writeMu.Lock()
	r := m.roster.Load()
	s, err := m.newServer(r, cfg)
	if err != nil {
		m.writeMu.Unlock()
		return nil, err
	}
	m.roster.Store(r.withServer(s))
	m.writeMu.Unlock()

	m.persist()
	logger.Info("Server 已添加", "server", cfg.Name, "transport", cfg.Transport.String())
	return s, nil
}

// RemoveServer 移除 Server
func (m *Manager) RemoveServer(name string) error {
	if !m.started.Load() {
		return ErrNotStarted
	}

	m.writeMu.Lock()
	r := m.roster.Load()
	s, ok := r.servers[name]
	if !ok {
		m.writeMu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	if s.IsStarted() {
		m.writeMu.Unlock()
		return fmt.Errorf("%w: %s", ErrServerStarted, name)
	}
	if !s.IsEmpty() {
		m.writeMu.Unlock()
		return fmt.Errorf("%w: %s", ErrServerNotEmpty, name)
	}
	m.roster.Store(r.withoutServer(name))
	m.writeMu.Unlock()

	m.persist()
	logger.Info("Server 已移除", "server", name)
	return nil
}

// StartServer 启动 Server，绑定失败同步返回
func (m *Manager) StartServer(name string) error {
	s, err := m.startedServer(name)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	m.persist()
	return nil
}

// StopServer 停止 Server
func (m *Manager) StopServer(name string) error {
	s, err := m.startedServer(name)
	if err != nil {
		return err
	}
	if err := s.Stop(); err != nil {
		return err
	}
	m.persist()
	return nil
}

func (m *Manager) startedServer(name string) (*server.Server, error) {
	if !m.started.Load() {
		return nil, ErrNotStarted
	}
	s, ok := m.roster.Load().servers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	return s, nil
}

// Server 按名称查找 Server
func (m *Manager) Server(name string) (interfaces.Server, error) {
	s, ok := m.roster.Load().servers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	return s, nil
}

// Servers 返回全部 Server，按名称排序
func (m *Manager) Servers() []interfaces.Server {
	list := m.roster.Load().sortedServers()
	out := make([]interfaces.Server, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

// newServer 在写锁内校验并创建 Server
func (m *Manager) newServer(r *roster, cfg types.ServerConfig) (*server.Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, ok := r.servers[cfg.Name]; ok {
		return nil, fmt.Errorf("%w: server %s", ErrDuplicateName, cfg.Name)
	}
	for _, other := range r.servers {
		oc := other.Config()
		if oc.Transport == cfg.Transport && oc.HostPort == cfg.HostPort && overlaps(oc.BindAddresses(), cfg.BindAddresses()) {
			return nil, fmt.Errorf("%w: server %s already binds %s:%d", ErrDuplicateEndpoint, oc.Name, cfg.HostAddress, cfg.HostPort)
		}
	}
	return server.New(cfg, m.env, m.resolve, m.currentGate)
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// ============================================================================
//                              Association
// ============================================================================

// AddServerAssociation 为 Server 添加静态服务端关联
//
// 本地端点与传输取自所属 Server。
func (m *Manager) AddServerAssociation(cfg types.AssociationConfig) (interfaces.Association, error) {
	if !m.started.Load() {
		return nil, ErrNotStarted
	}

	m.writeMu.Lock()
	r := m.roster.Load()
	a, err := m.newServerAssociation(r, cfg)
	if err != nil {
		m.writeMu.Unlock()
		return nil, err
	}
	r.servers[a.ServerName()].AddAssociation(a.Name())
	m.roster.Store(r.withAssociation(a))
	m.writeMu.Unlock()

	m.persist()
	logger.Info("服务端关联已添加", "association", a.Name(), "server", a.ServerName(), "peer", a.Config().PeerEndpoint())
	return a, nil
}

// AddAssociation 添加客户端关联
func (m *Manager) AddAssociation(cfg types.AssociationConfig) (interfaces.Association, error) {
	if !m.started.Load() {
		return nil, ErrNotStarted
	}

	m.writeMu.Lock()
	r := m.roster.Load()
	a, err := m.newClientAssociation(r, cfg)
	if err != nil {
		m.writeMu.Unlock()
		return nil, err
	}
	m.roster.Store(r.withAssociation(a))
	m.writeMu.Unlock()

	m.persist()
	logger.Info("客户端关联已添加", "association", a.Name(), "peer", a.Config().PeerEndpoint(), "multiplexed", a.Multiplexed())
	return a, nil
}

// RemoveAssociation 移除关联，已启动时失败
func (m *Manager) RemoveAssociation(name string) error {
	if !m.started.Load() {
		return ErrNotStarted
	}

	m.writeMu.Lock()
	r := m.roster.Load()
	a, ok := r.associations[name]
	if !ok {
		m.writeMu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAssociation, name)
	}
	if a.IsStarted() {
		m.writeMu.Unlock()
		return fmt.Errorf("%w: %s", ErrAssociationStarted, name)
	}
	if a.Type() == types.AssociationTypeServer {
		if s, ok := r.servers[a.ServerName()]; ok {
			s.RemoveAssociation(name)
		}
	}
	m.roster.Store(r.withoutAssociation(name))
	m.writeMu.Unlock()

	m.persist()
	logger.Info("关联已移除", "association", name)
	return nil
}

// StartAssociation 启动关联
func (m *Manager) StartAssociation(name string) error {
	a, err := m.startedAssociation(name)
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	m.persist()
	return nil
}

// StopAssociation 停止关联
func (m *Manager) StopAssociation(name string) error {
	a, err := m.startedAssociation(name)
	if err != nil {
		return err
	}
	if err := a.Stop(); err != nil {
		return err
	}
	m.persist()
	return nil
}

func (m *Manager) startedAssociation(name string) (*association.Association, error) {
	if !m.started.Load() {
		return nil, ErrNotStarted
	}
	a, ok := m.roster.Load().associations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAssociation, name)
	}
	return a, nil
}

// Association 按名称查找关联
func (m *Manager) Association(name string) (interfaces.Association, error) {
	a, ok := m.roster.Load().associations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAssociation, name)
	}
	return a, nil
}

// Associations 返回当前名册中的静态关联
//
// 返回的 map 是快照副本，之后的名册变更不影响它。
func (m *Manager) Associations() map[string]interfaces.Association {
	r := m.roster.Load()
	out := make(map[string]interfaces.Association, len(r.associations))
	for k, v := range r.associations {
		out[k] = v
	}
	return out
}

func (m *Manager) newServerAssociation(r *roster, cfg types.AssociationConfig) (*association.Association, error) {
	cfg.Type = types.AssociationTypeServer
	s, ok := r.servers[cfg.ServerName]
	if !ok {
		if cfg.ServerName == "" {
			return nil, types.ErrMissingServerName
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, cfg.ServerName)
	}
	sc := s.Config()
	if cfg.Transport != sc.Transport {
		return nil, fmt.Errorf("%w: association %s uses %s, server %s uses %s",
			types.ErrInvalidTransport, cfg.Name, cfg.Transport, sc.Name, sc.Transport)
	}
	if cfg.HostAddress == "" {
		cfg.HostAddress = sc.HostAddress
	}
	if cfg.HostPort == 0 {
		cfg.HostPort = sc.HostPort
	}
	return m.newAssociation(r, cfg)
}

func (m *Manager) newClientAssociation(r *roster, cfg types.AssociationConfig) (*association.Association, error) {
	cfg.Type = types.AssociationTypeClient
	if cfg.Multiplexed && m.muxes == nil {
		return nil, fmt.Errorf("%w: multiplexing unavailable", types.ErrMultiplexRequiresSCTP)
	}
	return m.newAssociation(r, cfg)
}

// newAssociation 校验名称与端点唯一性后创建关联
func (m *Manager) newAssociation(r *roster, cfg types.AssociationConfig) (*association.Association, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, ok := r.associations[cfg.Name]; ok {
		return nil, fmt.Errorf("%w: association %s", ErrDuplicateName, cfg.Name)
	}
	key := endpointKey(cfg)
	for _, other := range r.associations {
		if endpointKey(other.Config()) == key {
			return nil, fmt.Errorf("%w: %s is used by %s", ErrDuplicateEndpoint, key, other.Name())
		}
	}
	return association.New(cfg, m.env)
}

// endpointKey 传输加本地、对端端点组合，名册内唯一
func endpointKey(cfg types.AssociationConfig) string {
	var b strings.Builder
	b.WriteString(cfg.Transport.String())
	b.WriteByte(' ')
	b.WriteString(cfg.HostEndpoint())
	b.WriteString("->")
	b.WriteString(cfg.PeerEndpoint())
	return b.String()
}
