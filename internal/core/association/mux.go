package association

import (
	"github.com/dep2p/go-assoc/internal/core/transport"
	"github.com/dep2p/go-assoc/pkg/types"
)

// 以下钩子由多路复用器在 reactor goroutine 上调用。

// MuxID 返回多路复用器分配的标识，未连接时为 0
func (a *Association) MuxID() int { return a.muxID }

// SetMuxID 记录多路复用器分配的标识
func (a *Association) SetMuxID(id int) { a.muxID = id }

// MuxUp 经共享通道的对端连接已建立
func (a *Association) MuxUp(inbound, outbound int) {
	if !a.started.Load() {
		return
	}
	a.inbound.Store(int32(inbound))
	a.outbound.Store(int32(outbound))
	a.commUp()
}

// MuxPayload 共享通道上收到属于本关联的帧
func (a *Association) MuxPayload(f *types.Frame) {
	a.deliver(f)
}

// MuxIOError 累加共享通道上的非致命错误，返回 true 时调用方应中断对端连接
// 并随后调用 MuxTerminated
func (a *Association) MuxIOError(n int) bool {
	return a.countIOErrors(n)
}

// MuxTerminated 共享通道上的对端连接已终止
func (a *Association) MuxTerminated(term transport.Termination) {
	a.muxID = 0
	if !a.started.Load() {
		return
	}
	a.terminated(term)
}

// AdoptConnection 分支模式下，多路复用器把握手完成的连接移交给关联独占
func (a *Association) AdoptConnection(conn transport.FrameConn) {
	if !a.started.Load() {
		_ = conn.Abort()
		return
	}
	a.muxID = 0
	a.adopt(conn)
	a.commUp()
}

// MuxFailed 经共享通道的建连失败
func (a *Association) MuxFailed(err error) {
	a.muxID = 0
	a.cantStart(err)
}
