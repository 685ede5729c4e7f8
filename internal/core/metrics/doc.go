// Package metrics 提供监控指标收集
//
// 两部分组成：
//   - BandwidthCounter：按关联统计收发字节与速率（60 秒滑动窗口）
//   - Collector：Prometheus 指标（帧计数、通信事件、重连、IO 错误、
//     reactor 循环），并把 BandwidthCounter 作为自定义 Collector 导出
//
// # 快速开始
//
//	c := metrics.NewCollector(clock.New())
//	c.FrameSent("assoc-1", "SCTP", 128)
//	c.CommEvent(metrics.EventUp)
//
//	http.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
//
// # 空值安全
//
// *Collector 为 nil 时所有记录方法都是空操作，组件可以在没有指标的
// 情况下运行（单元测试常用）。
//
// # 架构定位
//
// Tier: Core Layer Level 1（无内部依赖）
//
// 被依赖：reactor, worker, association, server, multiplexer, manager
package metrics
