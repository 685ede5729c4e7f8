package server

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-assoc/pkg/types"
)

var (
	// ErrAlreadyStarted Server 已启动
	ErrAlreadyStarted = fmt.Errorf("%w: server already started", types.ErrValidation)

	// ErrServerHasStartedAssociations 仍有已启动的静态关联
	ErrServerHasStartedAssociations = fmt.Errorf("%w: server has started associations", types.ErrValidation)

	// ErrBind 监听地址绑定失败
	ErrBind = errors.New("bind failed")
)
