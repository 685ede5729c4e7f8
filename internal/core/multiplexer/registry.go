package multiplexer

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/multierr"

	"github.com/dep2p/go-assoc/internal/core/association"
	"github.com/dep2p/go-assoc/internal/core/metrics"
	"github.com/dep2p/go-assoc/internal/core/reactor"
	"github.com/dep2p/go-assoc/internal/core/transport/sctp"
	"github.com/dep2p/go-assoc/pkg/types"
)

// Registry 按本地端点索引的多路复用器集合
//
// 多路复用器在首次登记时创建，Close 时全部销毁。
type Registry struct {
	r       *reactor.Reactor
	tr      *sctp.Transport
	metrics *metrics.Collector
	opts    Options

	muxes *xsync.MapOf[netip.AddrPort, *Multiplexer]

	// mu 串行化创建与关闭
	mu     sync.Mutex
	closed bool
}

var _ association.MuxRegistry = (*Registry)(nil)

// NewRegistry 创建注册表
func NewRegistry(r *reactor.Reactor, tr *sctp.Transport, m *metrics.Collector, opts Options) *Registry {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = tr.Config().HandshakeTimeout
	}
	return &Registry{
		r:       r,
		tr:      tr,
		metrics: m,
		opts:    opts,
		muxes:   xsync.NewMapOf[netip.AddrPort, *Multiplexer](),
	}
}

// Register 实现 association.MuxRegistry
func (g *Registry) Register(a *association.Association) (association.MuxBinding, error) {
	local, err := localOf(a)
	if err != nil {
		return nil, err
	}

	mux, ok := g.muxes.Load(local)
	if !ok {
		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			return nil, ErrRegistryClosed
		}
		if mux, ok = g.muxes.Load(local); !ok {
			mux, err = newMultiplexer(local, g.tr, g.r, g.metrics, g.opts)
			if err != nil {
				g.mu.Unlock()
				return nil, err
			}
			g.muxes.Store(local, mux)
		}
		g.mu.Unlock()
	}

	if err := mux.register(a); err != nil {
		return nil, err
	}
	logger.Debug("关联已登记到多路复用器", "association", a.Name(), "local", local)
	return mux, nil
}

// Get 返回本地端点上的多路复用器
func (g *Registry) Get(local netip.AddrPort) (*Multiplexer, bool) {
	return g.muxes.Load(local)
}

// Len 返回多路复用器数量
func (g *Registry) Len() int {
	return g.muxes.Size()
}

// Close 销毁全部多路复用器
func (g *Registry) Close() error {
	g.mu.Lock()
	g.closed = true
	var all []*Multiplexer
	g.muxes.Range(func(_ netip.AddrPort, m *Multiplexer) bool {
		all = append(all, m)
		return true
	})
	g.muxes.Clear()
	g.mu.Unlock()

	var err error
	for _, m := range all {
		err = multierr.Append(err, m.Close())
	}
	return err
}

// Reopen 关闭后重新允许登记，Manager 重启时使用
func (g *Registry) Reopen() {
	g.mu.Lock()
	g.closed = false
	g.mu.Unlock()
}

func localOf(a *association.Association) (netip.AddrPort, error) {
	host := a.HostAddress()
	if host == "" {
		host = "0.0.0.0"
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: %v", types.ErrInvalidAddress, err)
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(a.HostPort())), nil
}
