package labkit

import "errors"

var (
	// ErrUnknownCommand 未知功能码
	ErrUnknownCommand = errors.New("unknown command code")

	// ErrBadPayload 指令负载格式错误
	ErrBadPayload = errors.New("bad command payload")

	// ErrPipeClosed 指令管道已关闭
	ErrPipeClosed = errors.New("command pipe closed")
)
