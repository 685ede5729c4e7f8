package reactor

import "errors"

// ============================================================================
//                              Reactor 错误
// ============================================================================

var (
	// ErrNotRunning reactor 未运行
	ErrNotRunning = errors.New("reactor not running")

	// ErrAlreadyRunning reactor 已在运行
	ErrAlreadyRunning = errors.New("reactor already running")

	// ErrStopTimeout 停止超时
	ErrStopTimeout = errors.New("reactor stop timeout")

	// ErrStillStopping 上一次停止尚未完成
	ErrStillStopping = errors.New("reactor still stopping")
)
