// Package sctp 实现基于 pion/sctp 的帧连接
//
// SCTP 协议栈运行在用户态（github.com/pion/sctp），承载于 UDP：
// 客户端使用已连接的 UDP 套接字，服务端使用
// github.com/pion/transport/v3/udp 的监听器按源地址分流。
// 分片、拥塞控制与重传全部由协议栈完成，这里只把 SCTP 流映射为帧：
//
//   - 帧的 stream 对应 SCTP 流号，protocolID 对应 PPID
//   - unordered 帧通过流的可靠性参数以无序方式发送；pion 读取接口不报告
//     U 位，接收到的帧 Unordered() 总为 false
//   - 本端打开的流与对端打开的流都启动读 goroutine，帧汇入同一队列
//
// 终止原因：收到 ABORT（sctp.ErrChunk）或底层套接字报错映射为
// ErrConnectionLost，SHUTDOWN 序列完成映射为 ErrPeerShutdown。
package sctp
