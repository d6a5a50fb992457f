package msg

import "errors"

var (
	// ErrShortMessage 消息短于固定头
	ErrShortMessage = errors.New("message shorter than header")

	// ErrLengthMismatch 头部长度与实际长度不一致
	ErrLengthMismatch = errors.New("header length mismatch")

	// ErrTooLarge 消息总长度超出 uint32
	ErrTooLarge = errors.New("message too large")
)
