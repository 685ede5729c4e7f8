package testutil

import (
	"net"
	"testing"
)

// FreeTCPPort 返回一个当前空闲的本地 TCP 端口
func FreeTCPPort(t testing.TB) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("分配 TCP 端口失败: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// FreeUDPPort 返回一个当前空闲的本地 UDP 端口
func FreeUDPPort(t testing.TB) int {
	t.Helper()
	c, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("分配 UDP 端口失败: %v", err)
	}
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).Port
}

// FreePorts 返回 n 个互不相同的空闲端口，udp 为 true 时按 UDP 分配
func FreePorts(t testing.TB, n int, udp bool) []int {
	t.Helper()
	seen := make(map[int]bool, n)
	out := make([]int, 0, n)
	for len(out) < n {
		var p int
		if udp {
			p = FreeUDPPort(t)
		} else {
			p = FreeTCPPort(t)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
