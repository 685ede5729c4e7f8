package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

// BandwidthCounter 带宽计数器
//
// 跟踪全局以及每个关联的收发字节数。
// 全局计数使用原子操作，关联级计数按名称惰性创建。
// nil 计数器上的方法都是空操作，未配置指标时可直接调用。
type BandwidthCounter struct {
	clock clock.Clock

	totalIn  atomic.Int64
	totalOut atomic.Int64

	totalInRate  *RateMeter
	totalOutRate *RateMeter

	mu    sync.RWMutex
	perAs map[string]*assocBandwidth
}

type assocBandwidth struct {
	in, out         atomic.Int64
	inRate, outRate *RateMeter
}

// NewBandwidthCounter 创建新的 BandwidthCounter
func NewBandwidthCounter(clk clock.Clock) *BandwidthCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &BandwidthCounter{
		clock:        clk,
		totalInRate:  NewRateMeter(clk),
		totalOutRate: NewRateMeter(clk),
		perAs:        make(map[string]*assocBandwidth),
	}
}

func (bwc *BandwidthCounter) entry(name string) *assocBandwidth {
	bwc.mu.RLock()
	e := bwc.perAs[name]
	bwc.mu.RUnlock()
	if e != nil {
		return e
	}

	bwc.mu.Lock()
	defer bwc.mu.Unlock()
	if e = bwc.perAs[name]; e == nil {
		e = &assocBandwidth{
			inRate:  NewRateMeter(bwc.clock),
			outRate: NewRateMeter(bwc.clock),
		}
		bwc.perAs[name] = e
	}
	return e
}

// LogSent 记录关联发送的字节数
func (bwc *BandwidthCounter) LogSent(association string, size int64) {
	if bwc == nil {
		return
	}
	bwc.totalOut.Add(size)
	bwc.totalOutRate.Add(size)

	e := bwc.entry(association)
	e.out.Add(size)
	e.outRate.Add(size)
}

// LogRecv 记录关联接收的字节数
func (bwc *BandwidthCounter) LogRecv(association string, size int64) {
	if bwc == nil {
		return
	}
	bwc.totalIn.Add(size)
	bwc.totalInRate.Add(size)

	e := bwc.entry(association)
	e.in.Add(size)
	e.inRate.Add(size)
}

// Totals 返回总带宽统计
func (bwc *BandwidthCounter) Totals() Stats {
	if bwc == nil {
		return Stats{}
	}
	return Stats{
		TotalIn:  bwc.totalIn.Load(),
		TotalOut: bwc.totalOut.Load(),
		RateIn:   bwc.totalInRate.Rate(),
		RateOut:  bwc.totalOutRate.Rate(),
	}
}

// ForAssociation 返回单个关联的带宽统计
func (bwc *BandwidthCounter) ForAssociation(name string) Stats {
	if bwc == nil {
		return Stats{}
	}
	bwc.mu.RLock()
	e := bwc.perAs[name]
	bwc.mu.RUnlock()
	if e == nil {
		return Stats{}
	}
	return e.stats()
}

// ByAssociation 返回所有关联的带宽统计
func (bwc *BandwidthCounter) ByAssociation() map[string]Stats {
	if bwc == nil {
		return nil
	}
	bwc.mu.RLock()
	defer bwc.mu.RUnlock()

	out := make(map[string]Stats, len(bwc.perAs))
	for name, e := range bwc.perAs {
		out[name] = e.stats()
	}
	return out
}

// Remove 删除关联的统计（关联被移除时调用）
func (bwc *BandwidthCounter) Remove(name string) {
	if bwc == nil {
		return
	}
	bwc.mu.Lock()
	delete(bwc.perAs, name)
	bwc.mu.Unlock()
}

// Reset 清除所有统计
func (bwc *BandwidthCounter) Reset() {
	if bwc == nil {
		return
	}
	bwc.totalIn.Store(0)
	bwc.totalOut.Store(0)
	bwc.totalInRate.Reset()
	bwc.totalOutRate.Reset()

	bwc.mu.Lock()
	bwc.perAs = make(map[string]*assocBandwidth)
	bwc.mu.Unlock()
}

func (e *assocBandwidth) stats() Stats {
	return Stats{
		TotalIn:  e.in.Load(),
		TotalOut: e.out.Load(),
		RateIn:   e.inRate.Rate(),
		RateOut:  e.outRate.Rate(),
	}
}
