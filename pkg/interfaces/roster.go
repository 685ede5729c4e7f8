// Package interfaces 定义 go-assoc 公共接口
//
// 本文件定义名册持久化接口，对应 internal/core/roster/ 实现。
package interfaces

import (
	"context"

	"github.com/dep2p/go-assoc/pkg/types"
)

// RosterStore 名册持久化
//
// Manager 在启动时 Load，在名册变更后与停止时 Save。
// 持久化格式对核心不透明。
type RosterStore interface {
	// Load 读取名册，不存在时返回 (nil, nil)
	Load(ctx context.Context) (*types.RosterSnapshot, error)

	// Save 保存名册
	Save(ctx context.Context, snapshot *types.RosterSnapshot) error
}
