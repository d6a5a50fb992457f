package pipe

import "errors"

var (
	// ErrNoMessage Poll 模式下队列为空
	ErrNoMessage = errors.New("no message")

	// ErrTimeout 定时等待到期时队列仍为空
	ErrTimeout = errors.New("receive timed out")

	// ErrPipeDeleted 管道已进入删除流程
	ErrPipeDeleted = errors.New("pipe deleted")
)
