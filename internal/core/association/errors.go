package association

import (
	"fmt"

	"github.com/dep2p/go-assoc/pkg/types"
)

// ============================================================================
//                              关联错误
// ============================================================================

var (
	// ErrNoListener 未设置监听器
	ErrNoListener = fmt.Errorf("%w: association listener not set", types.ErrValidation)

	// ErrAlreadyStarted 关联已启动
	ErrAlreadyStarted = fmt.Errorf("%w: association already started", types.ErrValidation)

	// ErrNotStarted 关联未启动
	ErrNotStarted = fmt.Errorf("%w: association not started", types.ErrValidation)

	// ErrNotUp 通信未建立
	ErrNotUp = fmt.Errorf("%w: association not up", types.ErrValidation)

	// ErrNotAnonymous 不是匿名关联
	ErrNotAnonymous = fmt.Errorf("%w: not an anonymous association", types.ErrValidation)

	// ErrAnonymousDecided 匿名关联已被接受或拒绝
	ErrAnonymousDecided = fmt.Errorf("%w: anonymous association already decided", types.ErrValidation)
)
