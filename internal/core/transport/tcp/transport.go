package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/pkg/lib/log"
	"github.com/dep2p/go-assoc/pkg/types"
)

var logger = log.Logger("core/transport/tcp")

// Transport TCP 传输
type Transport struct {
	cfg transport.Config
}

var _ transport.Transport = (*Transport)(nil)

// New 创建 TCP 传输
func New(cfg transport.Config) *Transport {
	return &Transport{cfg: cfg}
}

// Type 实现 transport.Transport
func (t *Transport) Type() types.IPChannelType {
	return types.IPChannelTCP
}

// Dial 实现 transport.Transport
//
// 本地地址或端口非零时绑定到该地址；附加本地地址对 TCP 无效。
func (t *Transport) Dial(ctx context.Context, cfg types.AssociationConfig) (transport.FrameConn, error) {
	d := &net.Dialer{KeepAlive: t.cfg.TCPKeepAlive}
	if cfg.HostAddress != "" || cfg.HostPort != 0 {
		d.LocalAddr = &net.TCPAddr{IP: net.ParseIP(cfg.HostAddress), Port: cfg.HostPort}
	}
	if t.cfg.ReuseAddr {
		d.Control = transport.ReuseControl
	}
	if len(cfg.ExtraHostAddresses) > 0 {
		logger.Debug("TCP 不支持多宿主，忽略附加本地地址", "association", cfg.Name)
	}

	nc, err := d.DialContext(ctx, "tcp", cfg.PeerEndpoint())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.PeerEndpoint(), err)
	}
	return t.upgrade(ctx, nc)
}

// Listen 实现 transport.Transport
func (t *Transport) Listen(host string, port int) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: t.cfg.TCPKeepAlive}
	if t.cfg.ReuseAddr {
		lc.Control = transport.ReuseControl
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	logger.Debug("TCP 监听已建立", "addr", ln.Addr().String())
	return ln, nil
}

// Upgrade 实现 transport.Transport
func (t *Transport) Upgrade(ctx context.Context, raw net.Conn) (transport.FrameConn, error) {
	return t.upgrade(ctx, raw)
}

func (t *Transport) upgrade(ctx context.Context, raw net.Conn) (transport.FrameConn, error) {
	nc, ok := raw.(*net.TCPConn)
	if !ok {
		_ = raw.Close()
		return nil, ErrNotTCP
	}
	_ = nc.SetNoDelay(t.cfg.TCPNoDelay)

	c, err := newConn(ctx, nc, t.cfg)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	return c, nil
}
