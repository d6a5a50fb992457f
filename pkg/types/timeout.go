package types

import "time"

// Timeout 接收超时
//
// Poll 立即返回，PendForever 一直阻塞直到有消息，
// 其他正值表示最长等待时长。
type Timeout time.Duration

const (
	// Poll 非阻塞接收
	Poll Timeout = 0
	// PendForever 阻塞接收
	PendForever Timeout = -1
)

// WaitFor 构造定时阻塞超时
func WaitFor(d time.Duration) Timeout {
	if d <= 0 {
		return Poll
	}
	return Timeout(d)
}

// IsValid 检查超时取值：Poll、PendForever 或正时长
func (t Timeout) IsValid() bool {
	return t >= 0 || t == PendForever
}

// Duration 返回底层时长
func (t Timeout) Duration() time.Duration {
	return time.Duration(t)
}

// String 返回超时的字符串表示
func (t Timeout) String() string {
	switch {
	case t == Poll:
		return "poll"
	case t == PendForever:
		return "pend-forever"
	case t < 0:
		return "invalid(" + time.Duration(t).String() + ")"
	default:
		return time.Duration(t).String()
	}
}
