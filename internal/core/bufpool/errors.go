package bufpool

import "errors"

var (
	// ErrPoolExhausted 没有空闲槽位（背压信号，不是致命错误）
	ErrPoolExhausted = errors.New("buffer pool exhausted")

	// ErrBufferTooLarge 请求大小超过槽位大小
	ErrBufferTooLarge = errors.New("requested size exceeds buffer size")

	// ErrInvalidSize 请求大小非法
	ErrInvalidSize = errors.New("invalid buffer size")

	// ErrInvalidHandle 句柄无效、过期或已释放
	ErrInvalidHandle = errors.New("invalid buffer handle")
)
