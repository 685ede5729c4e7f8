package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "assoc"

// 通信事件标签
const (
	EventUp       = "up"
	EventLost     = "lost"
	EventShutdown = "shutdown"
	EventRestart  = "restart"
)

// Collector Prometheus 指标收集器
type Collector struct {
	registry  *prometheus.Registry
	bandwidth *BandwidthCounter

	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	commEvents     *prometheus.CounterVec
	changeRequests *prometheus.CounterVec
	anonymous      *prometheus.CounterVec

	associationsUp prometheus.Gauge
	reconnects     prometheus.Counter
	ioErrors       prometheus.Counter
	invalidStreams prometheus.Counter
	reactorCycles  prometheus.Counter
	reactorPanics  prometheus.Counter
	listenerPanics prometheus.Counter
	muxDropped     prometheus.Counter
	framesDropped  prometheus.Counter
}

// NewCollector 创建收集器并注册到独立的 Registry
func NewCollector(clk clock.Clock) *Collector {
	c := &Collector{
		registry:  prometheus.NewRegistry(),
		bandwidth: NewBandwidthCounter(clk),

		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_sent_total",
			Help: "已写入传输层的帧数",
		}, []string{"transport"}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_received_total",
			Help: "从传输层收到的帧数",
		}, []string{"transport"}),
		commEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "communication_events_total",
			Help: "通信事件（up/lost/shutdown/restart）",
		}, []string{"event"}),
		changeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "change_requests_total",
			Help: "reactor 已处理的变更请求",
		}, []string{"kind"}),
		anonymous: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server", Name: "anonymous_decisions_total",
			Help: "匿名接入决策",
		}, []string{"decision"}),

		associationsUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "associations_up",
			Help: "当前处于 Up 状态的关联数",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconnects_scheduled_total",
			Help: "已调度的重连次数",
		}),
		ioErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "io_errors_total",
			Help: "传输读写错误次数",
		}),
		invalidStreams: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invalid_stream_frames_total",
			Help: "流号越界被丢弃的帧数",
		}),
		reactorCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "cycles_total",
			Help: "reactor 循环次数",
		}),
		reactorPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "panics_total",
			Help: "reactor 中被隔离的 panic 次数",
		}),
		listenerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "listener_panics_total",
			Help: "监听器回调 panic 次数",
		}),
		muxDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "multiplexer", Name: "dropped_datagrams_total",
			Help: "多路复用通道丢弃的数据报",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_dropped_total",
			Help: "通道关闭时仍在出站队列中被丢弃的帧数",
		}),
	}

	c.registry.MustRegister(
		c.framesSent, c.framesReceived, c.commEvents, c.changeRequests, c.anonymous,
		c.associationsUp, c.reconnects, c.ioErrors, c.invalidStreams,
		c.reactorCycles, c.reactorPanics, c.listenerPanics, c.muxDropped, c.framesDropped,
		newBandwidthCollector(c.bandwidth),
		collectors.NewGoCollector(),
	)
	return c
}

// Registry 返回 Prometheus Registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Bandwidth 返回带宽计数器
func (c *Collector) Bandwidth() *BandwidthCounter {
	if c == nil {
		return nil
	}
	return c.bandwidth
}

// FrameSent 记录一帧写出
func (c *Collector) FrameSent(association, transport string, size int) {
	if c == nil {
		return
	}
	c.framesSent.WithLabelValues(transport).Inc()
	c.bandwidth.LogSent(association, int64(size))
}

// FrameReceived 记录一帧读入
func (c *Collector) FrameReceived(association, transport string, size int) {
	if c == nil {
		return
	}
	c.framesReceived.WithLabelValues(transport).Inc()
	c.bandwidth.LogRecv(association, int64(size))
}

// CommEvent 记录通信事件
func (c *Collector) CommEvent(event string) {
	if c == nil {
		return
	}
	c.commEvents.WithLabelValues(event).Inc()
}

// AssociationUp Up 关联数 +1
func (c *Collector) AssociationUp() {
	if c == nil {
		return
	}
	c.associationsUp.Inc()
}

// AssociationDown Up 关联数 -1
func (c *Collector) AssociationDown() {
	if c == nil {
		return
	}
	c.associationsUp.Dec()
}

// ReconnectScheduled 记录一次重连调度
func (c *Collector) ReconnectScheduled() {
	if c == nil {
		return
	}
	c.reconnects.Inc()
}

// IOError 记录一次 IO 错误
func (c *Collector) IOError() {
	if c == nil {
		return
	}
	c.ioErrors.Inc()
}

// InvalidStream 记录一帧流号越界
func (c *Collector) InvalidStream() {
	if c == nil {
		return
	}
	c.invalidStreams.Inc()
}

// ReactorCycle 记录一次 reactor 循环
func (c *Collector) ReactorCycle() {
	if c == nil {
		return
	}
	c.reactorCycles.Inc()
}

// ReactorPanic 记录一次 reactor panic
func (c *Collector) ReactorPanic() {
	if c == nil {
		return
	}
	c.reactorPanics.Inc()
}

// ListenerPanic 记录一次监听器 panic
func (c *Collector) ListenerPanic() {
	if c == nil {
		return
	}
	c.listenerPanics.Inc()
}

// ChangeRequest 记录一次变更请求
func (c *Collector) ChangeRequest(kind string) {
	if c == nil {
		return
	}
	c.changeRequests.WithLabelValues(kind).Inc()
}

// AnonymousDecision 记录匿名接入决策
func (c *Collector) AnonymousDecision(accepted bool) {
	if c == nil {
		return
	}
	if accepted {
		c.anonymous.WithLabelValues("accepted").Inc()
	} else {
		c.anonymous.WithLabelValues("rejected").Inc()
	}
}

// MuxDropped 记录多路复用通道丢弃一个数据报
func (c *Collector) MuxDropped() {
	if c == nil {
		return
	}
	c.muxDropped.Inc()
}

// FramesDropped 记录通道关闭时丢弃的出站帧
func (c *Collector) FramesDropped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.framesDropped.Add(float64(n))
}

// ============================================================================
// bandwidthCollector - 把 BandwidthCounter 导出为 Prometheus 指标
// ============================================================================

type bandwidthCollector struct {
	bwc      *BandwidthCounter
	bytesIn  *prometheus.Desc
	bytesOut *prometheus.Desc
}

func newBandwidthCollector(bwc *BandwidthCounter) *bandwidthCollector {
	return &bandwidthCollector{
		bwc: bwc,
		bytesIn: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "received_bytes_total"),
			"关联接收字节数", []string{"association"}, nil),
		bytesOut: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sent_bytes_total"),
			"关联发送字节数", []string{"association"}, nil),
	}
}

// Describe 实现 prometheus.Collector
func (b *bandwidthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- b.bytesIn
	ch <- b.bytesOut
}

// Collect 实现 prometheus.Collector
func (b *bandwidthCollector) Collect(ch chan<- prometheus.Metric) {
	for name, s := range b.bwc.ByAssociation() {
		ch <- prometheus.MustNewConstMetric(b.bytesIn, prometheus.CounterValue, float64(s.TotalIn), name)
		ch <- prometheus.MustNewConstMetric(b.bytesOut, prometheus.CounterValue, float64(s.TotalOut), name)
	}
}
