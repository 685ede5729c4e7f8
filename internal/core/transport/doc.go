// Package transport 定义帧连接抽象以及注册到 reactor 的通道实现
//
// 传输实现（tcp、sctp 子包）只负责建立连接并以帧为单位阻塞读写；
// 本包把阻塞连接包装成 reactor 可选择的就绪源：
//
//   - StreamChannel：已建立连接，读/写各一个泵 goroutine，配有有界队列
//   - PendingChannel：异步建连，完成后报告 OpConnect 就绪
//   - ListenerChannel：监听器，握手完成的入站连接报告 OpAccept 就绪
//
// 泵 goroutine 只在传输与队列之间搬运数据并唤醒 reactor，
// 从不触碰 selector 状态。通道的关闭总是由 reactor 执行。
//
// # 错误分类
//
//   - ErrTransportIO：非致命读写错误，连接仍可用，计入关联的 IO 错误计数
//   - ErrPeerShutdown：对端正常关闭
//   - ErrConnectionLost：连接异常中断
//   - ErrChannelClosed：本端已关闭
//
// # Fx 模块集成
//
//	app := fx.New(
//	    tcp.Module(),
//	    sctp.Module(),
//	    transport.Module(),
//	    fx.Invoke(func(set *transport.Set) {
//	        t, _ := set.Get(types.IPChannelTCP)
//	    }),
//	)
package transport
