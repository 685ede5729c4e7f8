// Package assoc 提供 SCTP/TCP 关联管理库
//
// go-assoc 在单个 reactor goroutine 上驱动全部非阻塞 I/O，
// 通过按流号亲和的 worker 池回调应用监听器，并在连接失败后按固定延迟重连。
//
// # 核心概念
//
//   - Association: 两个端点之间的长连接，分客户端、服务端与匿名服务端
//   - Server: 监听端点，把入站连接匹配到静态关联或交给匿名闸门
//   - Management: 名册与生命周期 API
//
// # 快速开始
//
//	import "github.com/dep2p/go-assoc"
//
//	stack, err := assoc.Start(ctx,
//	    assoc.WithConnectDelay(2*time.Second),
//	    assoc.WithRosterFile("roster.json"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stack.Close()
//
//	mgmt := stack.Management()
//	a, _ := mgmt.AddAssociation(types.AssociationConfig{
//	    Name:        "hlr",
//	    Transport:   types.IPChannelSCTP,
//	    HostAddress: "127.0.0.1",
//	    HostPort:    2351,
//	    PeerAddress: "127.0.0.1",
//	    PeerPort:    2350,
//	})
//	a.SetListener(myListener)
//	_ = mgmt.StartAssociation("hlr")
//
// # 线程模型
//
// Management 的方法在调用方 goroutine 上同步返回，只修改名册并投递变更请求。
// 生命周期回调在 reactor goroutine 上执行，载荷回调在按流号选定的 worker 上
// 执行；单线程模式下全部回调都在 reactor goroutine 上执行。
package assoc
