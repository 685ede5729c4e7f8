package tcp

import "errors"

var (
	// ErrBadHello hello 控制帧格式错误
	ErrBadHello = errors.New("tcp: malformed hello")

	// ErrNotTCP 原始连接不是 TCP 连接
	ErrNotTCP = errors.New("tcp: not a tcp connection")
)
