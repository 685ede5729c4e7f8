//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package transport

import "syscall"

// ReuseControl 在不支持的平台上不做任何设置
func ReuseControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
