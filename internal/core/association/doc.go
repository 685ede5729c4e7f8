// Package association 实现关联状态机
//
// 一个关联在任一时刻至多绑定一个活动通道。状态迁移：
//
//	Created ──Start──▶ Started ──comm-up──▶ Up
//	                      ▲                  │
//	                      └──reconnect── Down ◀── lost/shutdown
//	任意状态 ──Stop──▶ Stopped
//
// 线程模型：
//
//   - Start/Stop/Send 在调用方 goroutine 上执行，只修改原子状态并向
//     reactor 投递 ChangeRequest
//   - 其余方法（Handle*、InitiateConnection、CloseChannel 以及服务端、
//     多路复用器的回调）只在 reactor goroutine 上执行，独占通道
//   - 载荷回调按流号投递到固定执行器，同一流保持顺序
//
// 重连：仅客户端关联。通信丢失、正常关闭或建连失败后，若关联仍处于
// Started，则投递到期时间为 now+ConnectDelay 的 ConnectRequest；
// 到期时关联已停止则请求被丢弃。
//
// IO 错误：非致命读写错误累加计数，超过 MaxIOErrors 时强制中断通道并按
// 通信丢失处理。计数在通信建立时清零。
package association
