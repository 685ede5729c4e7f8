package worker

import "errors"

var (
	// ErrPoolRunning 执行器池运行中，不允许修改大小
	ErrPoolRunning = errors.New("worker pool is running")

	// ErrPoolNotRunning 执行器池未运行
	ErrPoolNotRunning = errors.New("worker pool is not running")

	// ErrInvalidSize 执行器数量非法
	ErrInvalidSize = errors.New("worker pool size must be positive")
)
