// Package queue 提供无锁多生产者单消费者（MPSC）队列与交换式批量队列
//
// 特性：
//   - 无锁写入：任意数量 goroutine 并发 Push
//   - 无界：容量只受内存限制，生产者永不阻塞
//   - 单消费者：Pop/Wait 只能由一个 goroutine 调用
//   - 同一生产者的写入按顺序出队；不同生产者之间按 CAS 成功的先后排序
//
// SwapQueue 在 MPSC 之上加一把读写锁：生产者持读锁写入，消费者持写锁
// 把整条队列换成空队列后在锁外慢慢处理，生产者不会被慢速消费阻塞。
package queue
