package flightbus

import "errors"

// 公共错误定义
var (
	// ErrClosed 执行体已关闭
	ErrClosed = errors.New("executive closed")

	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("config is nil")
)
