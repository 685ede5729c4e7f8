// Package types 定义 go-assoc 的公共数据结构
//
// 本文件定义所有公共错误类型。
package types

import (
	"errors"
	"fmt"
)

// ErrValidation 参数校验错误的根错误
//
// 所有同步返回给调用方、且不改变任何状态的错误都包装它，
// 调用方可以用 errors.Is(err, types.ErrValidation) 归类。
var ErrValidation = errors.New("validation error")

// ============================================================================
//                              参数错误
// ============================================================================

var (
	// ErrEmptyName 名称为空
	ErrEmptyName = fmt.Errorf("%w: empty name", ErrValidation)

	// ErrInvalidPort 端口非法
	ErrInvalidPort = fmt.Errorf("%w: invalid port", ErrValidation)

	// ErrInvalidAddress 地址非法
	ErrInvalidAddress = fmt.Errorf("%w: invalid address", ErrValidation)

	// ErrInvalidAssociationType 关联类型非法
	ErrInvalidAssociationType = fmt.Errorf("%w: invalid association type", ErrValidation)

	// ErrInvalidTransport 传输类型非法
	ErrInvalidTransport = fmt.Errorf("%w: invalid transport", ErrValidation)

	// ErrMissingServerName 服务端关联缺少所属 Server
	ErrMissingServerName = fmt.Errorf("%w: server association requires server name", ErrValidation)

	// ErrMultiplexRequiresSCTP 多路复用只支持 SCTP 客户端关联
	ErrMultiplexRequiresSCTP = fmt.Errorf("%w: multiplexing requires an SCTP client association", ErrValidation)

	// ErrEmptyPayload 空载荷
	ErrEmptyPayload = fmt.Errorf("%w: empty payload", ErrValidation)

	// ErrNegativeLimit 上限为负数
	ErrNegativeLimit = fmt.Errorf("%w: negative limit", ErrValidation)
)

// IsValidation 判断错误是否属于参数校验错误
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
