// Package reactor 实现单 goroutine I/O reactor 与跨 goroutine 变更请求队列
//
// # 模型
//
// 每个 Manager 只有一个 reactor goroutine，它独占 Selector 以及所有
// SelectionKey。其他 goroutine 需要修改注册关系或兴趣集时，只能构造一个
// ChangeRequest 交给 Reactor.Submit，由 reactor 在下一轮循环中应用。
//
// 每轮循环：
//  1. 在队列锁内换出全部待处理请求并依次应用：
//     RegisterRequest / ChangeOpsRequest / ConnectRequest / CloseRequest
//  2. Selector.Select 以有界超时阻塞，等待就绪或唤醒
//  3. 按就绪类型分发：accept → HandleAccept，connect → HandleConnect，
//     read → HandleRead，write → HandleWrite
//
// 每个请求、每个 key 的处理都单独 recover，一个关联的异常不会影响循环。
//
// # 就绪源
//
// Go 没有可移植的非阻塞 selector，通道（Channel）由各自的泵 goroutine
// 完成阻塞 I/O，并把结果放入有界队列；Channel.ReadyOps 报告当前就绪
// 集合，状态变化时调用注册时注入的唤醒函数。Selector 是电平触发的：
// 只要就绪条件仍成立，下一轮仍会报告。
package reactor
