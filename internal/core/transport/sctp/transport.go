package sctp

import (
	"context"
	"fmt"
	"net"

	"github.com/pion/sctp"
	"github.com/pion/transport/v3/udp"

	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/pkg/lib/log"
	"github.com/dep2p/go-assoc/pkg/types"
)

var logger = log.Logger("core/transport/sctp")

// chunkTypeInit SCTP INIT 块类型，位于公共头之后的第一个字节
const chunkTypeInit = 1

// Transport SCTP over UDP 传输
type Transport struct {
	cfg     transport.Config
	loggers loggerFactory
}

var _ transport.Transport = (*Transport)(nil)

// New 创建 SCTP 传输
func New(cfg transport.Config) *Transport {
	return &Transport{
		cfg:     cfg,
		loggers: loggerFactory{logger: log.Logger("core/transport/sctp/pion")},
	}
}

// Type 实现 transport.Transport
func (t *Transport) Type() types.IPChannelType {
	return types.IPChannelSCTP
}

// Config 返回传输配置
func (t *Transport) Config() transport.Config {
	return t.cfg
}

// Dial 实现 transport.Transport
//
// 多宿主附加地址在 UDP 承载下不可用，只绑定主地址。
func (t *Transport) Dial(ctx context.Context, cfg types.AssociationConfig) (transport.FrameConn, error) {
	d := &net.Dialer{}
	if cfg.HostAddress != "" || cfg.HostPort != 0 {
		d.LocalAddr = &net.UDPAddr{IP: net.ParseIP(cfg.HostAddress), Port: cfg.HostPort}
	}
	if t.cfg.ReuseAddr {
		d.Control = transport.ReuseControl
	}
	if len(cfg.ExtraHostAddresses) > 0 {
		logger.Debug("UDP 承载不支持多宿主，忽略附加本地地址", "association", cfg.Name)
	}

	nc, err := d.DialContext(ctx, "udp", cfg.PeerEndpoint())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.PeerEndpoint(), err)
	}
	return t.Client(ctx, nc, cfg.Name)
}

// Listen 实现 transport.Transport
//
// 只为携带 INIT 块的首个数据报创建新的原始连接。
func (t *Transport) Listen(host string, port int) (net.Listener, error) {
	lc := udp.ListenConfig{
		AcceptFilter: func(b []byte) bool {
			return len(b) > 12 && b[12] == chunkTypeInit
		},
	}
	laddr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	ln, err := lc.Listen("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", laddr, err)
	}
	logger.Debug("SCTP 监听已建立", "addr", ln.Addr().String())
	return ln, nil
}

// Upgrade 实现 transport.Transport
func (t *Transport) Upgrade(ctx context.Context, raw net.Conn) (transport.FrameConn, error) {
	return t.Server(ctx, raw, raw.RemoteAddr().String())
}

// Client 在 nc 上执行客户端握手
func (t *Transport) Client(ctx context.Context, nc net.Conn, name string) (transport.FrameConn, error) {
	return t.handshake(ctx, nc, name, true)
}

// Server 在 nc 上执行服务端握手
func (t *Transport) Server(ctx context.Context, nc net.Conn, name string) (transport.FrameConn, error) {
	return t.handshake(ctx, nc, name, false)
}

type handshakeResult struct {
	assoc *sctp.Association
	err   error
}

// handshake 超时或取消时关闭 nc，使协议栈的握手立即返回
func (t *Transport) handshake(ctx context.Context, nc net.Conn, name string, client bool) (transport.FrameConn, error) {
	scfg := sctp.Config{
		Name:           name,
		NetConn:        nc,
		MaxMessageSize: uint32(t.cfg.ReceiveBufferSize),
		LoggerFactory:  t.loggers,
	}

	ch := make(chan handshakeResult, 1)
	go func() {
		var r handshakeResult
		if client {
			r.assoc, r.err = sctp.Client(scfg)
		} else {
			r.assoc, r.err = sctp.Server(scfg)
		}
		ch <- r
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			_ = nc.Close()
			return nil, fmt.Errorf("sctp handshake %s: %w", name, r.err)
		}
		return newConn(r.assoc, nc, t.cfg), nil
	case <-ctx.Done():
		_ = nc.Close()
		if r := <-ch; r.assoc != nil {
			_ = r.assoc.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", transport.ErrHandshakeTimeout, name, ctx.Err())
	}
}
