// Package multiplexer 实现一对多 SCTP 共享通道
//
// 同一本地端点上的多个客户端关联共用一个 UDP 套接字。读循环按远端地址把
// 数据报路由到各对端的虚拟连接，每个虚拟连接上运行一个 SCTP 关联。
//
// 关联在 pending 中只按对端地址关联；握手完成后分配递增的关联 ID，
// 之后的通知先按 connected[id] 解析，未命中时再按对端地址从 pending 提升。
//
// 分支模式下握手完成的连接直接移交给关联，由关联自己的通道注册到 reactor。
package multiplexer
