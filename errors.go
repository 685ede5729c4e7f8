package assoc

import (
	"errors"

	"github.com/dep2p/go-assoc/pkg/types"
)

// 公共错误定义
var (
	// ErrNotStarted Stack 未启动
	ErrNotStarted = errors.New("stack not started")

	// ErrAlreadyStarted Stack 已启动
	ErrAlreadyStarted = errors.New("stack already started")

	// ErrClosed Stack 已关闭
	ErrClosed = errors.New("stack closed")

	// ErrValidation 参数校验错误的根
	//
	// Management 返回的所有参数错误都满足 errors.Is(err, ErrValidation)。
	ErrValidation = types.ErrValidation
)

// IsValidation 判断是否参数校验错误
func IsValidation(err error) bool {
	return types.IsValidation(err)
}
