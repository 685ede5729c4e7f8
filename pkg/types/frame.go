package types

import "fmt"

// Frame 载荷单元
//
// 不可变：构造后字节内容与路由元数据都不再修改。
// 跨 goroutine 传递无需额外同步。
type Frame struct {
	data       []byte
	stream     uint16
	protocolID uint32
	complete   bool
	unordered  bool
}

// NewFrame 创建有序、完整的载荷帧
//
// data 会被复制，调用方之后修改原切片不影响帧内容。
func NewFrame(data []byte, stream uint16, protocolID uint32) *Frame {
	return NewFrameWithFlags(data, stream, protocolID, true, false)
}

// NewFrameWithFlags 创建载荷帧并指定 complete/unordered 标志
func NewFrameWithFlags(data []byte, stream uint16, protocolID uint32, complete, unordered bool) *Frame {
	buf := make([]byte, len(data))
	copy(buf, data)
	return WrapFrame(buf, stream, protocolID, complete, unordered)
}

// WrapFrame 以零拷贝方式创建帧
//
// 调用方转移 data 的所有权，之后不得再修改。传输层读路径使用。
func WrapFrame(data []byte, stream uint16, protocolID uint32, complete, unordered bool) *Frame {
	return &Frame{
		data:       data,
		stream:     stream,
		protocolID: protocolID,
		complete:   complete,
		unordered:  unordered,
	}
}

// Data 返回载荷字节（只读，不得修改）
func (f *Frame) Data() []byte {
	return f.data
}

// Length 返回载荷长度
func (f *Frame) Length() int {
	return len(f.data)
}

// Stream 返回流号
func (f *Frame) Stream() uint16 {
	return f.stream
}

// ProtocolID 返回载荷协议标识（SCTP PPID）
func (f *Frame) ProtocolID() uint32 {
	return f.protocolID
}

// Complete 是否为完整消息
func (f *Frame) Complete() bool {
	return f.complete
}

// Unordered 是否为无序投递
func (f *Frame) Unordered() bool {
	return f.unordered
}

// String 返回帧的摘要，不包含载荷内容
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{len=%d stream=%d ppid=%d complete=%t unordered=%t}",
		len(f.data), f.stream, f.protocolID, f.complete, f.unordered)
}
