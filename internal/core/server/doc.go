// Package server 实现监听端点与入站接入
//
// Server 在 {HostAddress} ∪ ExtraHostAddresses 上监听，握手完成的入站连接
// 在 reactor goroutine 上按对端地址与端口匹配到静态关联（对端端口为 0 时
// 匹配任意端口）。未匹配且允许匿名接入时创建匿名关联并询问接入闸门。
//
// Server 只保存静态关联的名称，对象通过 Resolver 从 Manager 的名册解析。
package server
