// Package testutil 提供测试辅助：条件等待、空闲端口分配、事件记录监听器
package testutil
