//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReuseControl 设置 SO_REUSEADDR，客户端重连时可以立即重新绑定固定本地端口
//
// 用作 net.Dialer.Control 与 net.ListenConfig.Control。
func ReuseControl(_, _ string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			opErr = fmt.Errorf("set SO_REUSEADDR: %w", err)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}
