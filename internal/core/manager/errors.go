package manager

import (
	"fmt"

	"github.com/dep2p/go-assoc/pkg/types"
)

// ============================================================================
//                              名册错误
// ============================================================================

var (
	// ErrNotStarted Manager 未启动
	ErrNotStarted = fmt.Errorf("%w: manager not started", types.ErrValidation)

	// ErrStarted 只能在 Manager 停止时修改的设置
	ErrStarted = fmt.Errorf("%w: manager is running", types.ErrValidation)

	// ErrDuplicateName 名称已存在
	ErrDuplicateName = fmt.Errorf("%w: duplicate name", types.ErrValidation)

	// ErrDuplicateEndpoint 本地/对端端点组合已被占用
	ErrDuplicateEndpoint = fmt.Errorf("%w: duplicate endpoint", types.ErrValidation)

	// ErrUnknownAssociation 关联不存在
	ErrUnknownAssociation = fmt.Errorf("%w: unknown association", types.ErrValidation)

	// ErrUnknownServer Server 不存在
	ErrUnknownServer = fmt.Errorf("%w: unknown server", types.ErrValidation)

	// ErrAssociationStarted 关联仍在运行
	ErrAssociationStarted = fmt.Errorf("%w: association is started", types.ErrValidation)

	// ErrServerStarted Server 仍在运行
	ErrServerStarted = fmt.Errorf("%w: server is started", types.ErrValidation)

	// ErrServerNotEmpty Server 仍有关联
	ErrServerNotEmpty = fmt.Errorf("%w: server has associations", types.ErrValidation)
)

// ============================================================================
//                              设置错误
// ============================================================================

var (
	// ErrInvalidSetting 设置值非法
	ErrInvalidSetting = fmt.Errorf("%w: invalid setting", types.ErrValidation)
)
