package types

import (
	"net"
	"strconv"
)

// AssociationConfig 关联的静态配置
//
// Manager 的工厂方法用它创建关联，RosterSnapshot 用它持久化关联。
type AssociationConfig struct {
	// Name 关联名称，全局唯一
	Name string `json:"name"`

	// Type 关联类型
	Type AssociationType `json:"type"`

	// Transport 传输类型
	Transport IPChannelType `json:"transport"`

	// HostAddress 本地地址（服务端关联为空，使用所属 Server 的地址）
	HostAddress string `json:"hostAddress,omitempty"`

	// HostPort 本地端口，0 表示由系统分配
	HostPort int `json:"hostPort,omitempty"`

	// ExtraHostAddresses 多宿主附加本地地址
	ExtraHostAddresses []string `json:"extraHostAddresses,omitempty"`

	// PeerAddress 对端地址
	PeerAddress string `json:"peerAddress"`

	// PeerPort 对端端口（服务端关联为 0 时匹配任意源端口）
	PeerPort int `json:"peerPort"`

	// ServerName 所属 Server（仅服务端关联）
	ServerName string `json:"serverName,omitempty"`

	// Multiplexed 是否通过一对多共享通道承载（仅 SCTP 客户端关联）
	Multiplexed bool `json:"multiplexed,omitempty"`
}

// Validate 校验配置
func (c AssociationConfig) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.Transport != IPChannelSCTP && c.Transport != IPChannelTCP {
		return ErrInvalidTransport
	}
	if c.PeerAddress == "" || net.ParseIP(c.PeerAddress) == nil {
		return ErrInvalidAddress
	}
	if !validPort(c.PeerPort) {
		return ErrInvalidPort
	}

	switch c.Type {
	case AssociationTypeClient:
		if c.PeerPort == 0 {
			return ErrInvalidPort
		}
		if c.HostAddress != "" && net.ParseIP(c.HostAddress) == nil {
			return ErrInvalidAddress
		}
		if !validPort(c.HostPort) {
			return ErrInvalidPort
		}
		if c.Multiplexed && (c.Transport != IPChannelSCTP || c.HostPort == 0) {
			return ErrMultiplexRequiresSCTP
		}
	case AssociationTypeServer:
		if c.ServerName == "" {
			return ErrMissingServerName
		}
		if c.Multiplexed {
			return ErrMultiplexRequiresSCTP
		}
	case AssociationTypeAnonymousServer:
		// 匿名关联由 Server 内部创建，不经过工厂方法
	default:
		return ErrInvalidAssociationType
	}

	for _, addr := range c.ExtraHostAddresses {
		if net.ParseIP(addr) == nil {
			return ErrInvalidAddress
		}
	}
	return nil
}

// HostEndpoint 返回本地 "host:port"
func (c AssociationConfig) HostEndpoint() string {
	return net.JoinHostPort(c.HostAddress, strconv.Itoa(c.HostPort))
}

// PeerEndpoint 返回对端 "host:port"
func (c AssociationConfig) PeerEndpoint() string {
	return net.JoinHostPort(c.PeerAddress, strconv.Itoa(c.PeerPort))
}

// ServerConfig Server 的静态配置
type ServerConfig struct {
	// Name Server 名称，全局唯一
	Name string `json:"name"`

	// Transport 传输类型
	Transport IPChannelType `json:"transport"`

	// HostAddress 监听地址
	HostAddress string `json:"hostAddress"`

	// HostPort 监听端口
	HostPort int `json:"hostPort"`

	// ExtraHostAddresses 附加监听地址（多宿主）
	ExtraHostAddresses []string `json:"extraHostAddresses,omitempty"`

	// AcceptAnonymous 是否接受未静态配置的对端
	AcceptAnonymous bool `json:"acceptAnonymous,omitempty"`

	// MaxConcurrentConnections 匿名关联的并发上限，0 表示不限制
	MaxConcurrentConnections int `json:"maxConcurrentConnections,omitempty"`

	// Started 持久化时记录的运行状态
	Started bool `json:"started,omitempty"`
}

// Validate 校验配置
func (c ServerConfig) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.Transport != IPChannelSCTP && c.Transport != IPChannelTCP {
		return ErrInvalidTransport
	}
	if net.ParseIP(c.HostAddress) == nil {
		return ErrInvalidAddress
	}
	if !validPort(c.HostPort) {
		return ErrInvalidPort
	}
	if c.MaxConcurrentConnections < 0 {
		return ErrNegativeLimit
	}
	for _, addr := range c.ExtraHostAddresses {
		if net.ParseIP(addr) == nil {
			return ErrInvalidAddress
		}
	}
	return nil
}

// BindAddresses 返回全部监听地址（主地址在前）
func (c ServerConfig) BindAddresses() []string {
	out := make([]string, 0, 1+len(c.ExtraHostAddresses))
	out = append(out, c.HostAddress)
	return append(out, c.ExtraHostAddresses...)
}

func validPort(p int) bool {
	return p >= 0 && p <= 65535
}
