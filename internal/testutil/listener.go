package testutil

import (
	"sync"

	"github.com/dep2p/go-assoc/pkg/interfaces"
	"github.com/dep2p/go-assoc/pkg/types"
)

// Event 监听器记录的一次回调
type Event struct {
	Kind        string // up/lost/shutdown/restart/payload/invalid
	Association string
	Frame       *types.Frame
	Inbound     int
	Outbound    int
}

// RecordingListener 记录全部回调的 AssociationListener
type RecordingListener struct {
	mu     sync.Mutex
	events []Event

	// OnPayloadHook 可选，收到载荷时额外调用
	OnPayloadHook func(a interfaces.Association, f *types.Frame)
}

var _ interfaces.AssociationListener = (*RecordingListener)(nil)

func (l *RecordingListener) record(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

// OnCommunicationUp 实现 AssociationListener
func (l *RecordingListener) OnCommunicationUp(a interfaces.Association, in, out int) {
	l.record(Event{Kind: "up", Association: a.Name(), Inbound: in, Outbound: out})
}

// OnCommunicationLost 实现 AssociationListener
func (l *RecordingListener) OnCommunicationLost(a interfaces.Association) {
	l.record(Event{Kind: "lost", Association: a.Name()})
}

// OnCommunicationShutdown 实现 AssociationListener
func (l *RecordingListener) OnCommunicationShutdown(a interfaces.Association) {
	l.record(Event{Kind: "shutdown", Association: a.Name()})
}

// OnCommunicationRestart 实现 AssociationListener
func (l *RecordingListener) OnCommunicationRestart(a interfaces.Association) {
	l.record(Event{Kind: "restart", Association: a.Name()})
}

// OnPayload 实现 AssociationListener
func (l *RecordingListener) OnPayload(a interfaces.Association, f *types.Frame) {
	l.record(Event{Kind: "payload", Association: a.Name(), Frame: f})
	if l.OnPayloadHook != nil {
		l.OnPayloadHook(a, f)
	}
}

// OnInvalidStreamID 实现 AssociationListener
func (l *RecordingListener) OnInvalidStreamID(f *types.Frame) {
	l.record(Event{Kind: "invalid", Frame: f})
}

// Events 返回事件副本
func (l *RecordingListener) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Count 返回某类事件的次数
func (l *RecordingListener) Count(kind string) int {
	n := 0
	for _, e := range l.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Payloads 返回收到的载荷帧（按回调顺序）
func (l *RecordingListener) Payloads() []*types.Frame {
	var out []*types.Frame
	for _, e := range l.Events() {
		if e.Kind == "payload" {
			out = append(out, e.Frame)
		}
	}
	return out
}

// Reset 清空记录
func (l *RecordingListener) Reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}
