package reactor

import "strings"

// Ops 兴趣/就绪操作集合
type Ops uint8

const (
	// OpRead 可读
	OpRead Ops = 1 << iota
	// OpWrite 可写
	OpWrite
	// OpConnect 建连完成（成功或失败）
	OpConnect
	// OpAccept 有待接受的入站连接
	OpAccept
)

// Has 是否包含 o 中任一操作
func (ops Ops) Has(o Ops) bool {
	return ops&o != 0
}

// String 返回可读表示，如 "read|write"
func (ops Ops) String() string {
	if ops == 0 {
		return "none"
	}
	var parts []string
	if ops.Has(OpRead) {
		parts = append(parts, "read")
	}
	if ops.Has(OpWrite) {
		parts = append(parts, "write")
	}
	if ops.Has(OpConnect) {
		parts = append(parts, "connect")
	}
	if ops.Has(OpAccept) {
		parts = append(parts, "accept")
	}
	return strings.Join(parts, "|")
}
