package multiplexer

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-assoc/pkg/types"
)

var (
	// ErrPeerAddressInUse 同一本地端点上已有指向该对端的关联
	ErrPeerAddressInUse = fmt.Errorf("%w: peer address already in use", types.ErrValidation)

	// ErrRegistryClosed 注册表已关闭
	ErrRegistryClosed = errors.New("multiplexer registry closed")

	// ErrMuxClosed 多路复用器已关闭
	ErrMuxClosed = errors.New("multiplexer closed")
)
