// Package worker 提供流亲和的串行执行器池
//
// 每个执行器是一个 goroutine，消费一个无界无锁 MPSC 队列，
// 投递方（reactor）永不阻塞。关联在通信建立时按流号分配执行器下标，
// 同一流上的回调因此保持到达顺序。
//
// # 下标分配
//
// NextIndex 使用进程内共享的单调递增计数器对执行器数取模，
// 各关联的流表由此在执行器之间轮转分布。
//
// # 单线程模式
//
// Inline 直接在调用方 goroutine 上执行任务，供单线程模式使用。
package worker
