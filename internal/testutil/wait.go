package testutil

import (
	"context"
	"testing"
	"time"
)

// WaitForCondition 等待条件满足或超时
//
// 参数：
//   - t: 测试对象
//   - timeout: 超时时间
//   - interval: 检查间隔
//   - condition: 条件函数，返回 true 表示条件满足
//
// 返回：条件是否满足（超时返回 false）
func WaitForCondition(t testing.TB, timeout time.Duration, interval time.Duration, condition func() bool) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if condition() {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return condition()
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// WaitForConditionOrFail 等待条件满足，超时则 fail 测试
func WaitForConditionOrFail(t testing.TB, timeout time.Duration, interval time.Duration, condition func() bool, msg string) {
	t.Helper()

	if !WaitForCondition(t, timeout, interval, condition) {
		t.Fatalf("等待超时: %s", msg)
	}
}

// Eventually 在指定时间内重试条件检查，间隔 20ms
//
// 示例:
//
//	testutil.Eventually(t, 5*time.Second, func() bool {
//	    return a.IsUp()
//	}, "关联应建立")
func Eventually(t testing.TB, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	WaitForConditionOrFail(t, timeout, 20*time.Millisecond, condition, msg)
}

// Never 在 d 时间内条件始终不成立
func Never(t testing.TB, d time.Duration, condition func() bool, msg string) {
	t.Helper()
	if WaitForCondition(t, d, 20*time.Millisecond, condition) {
		t.Fatalf("条件不应成立: %s", msg)
	}
}
