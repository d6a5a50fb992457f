// Package testutil 提供测试共用的总线构造和等待工具
package testutil

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

// PollInterval 等待工具的检查间隔
const PollInterval = 5 * time.Millisecond

// WaitFor 在 timeout 内按 PollInterval 检查 cond，满足返回 true
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(PollInterval)
	}
	return true
}

// Eventually 等待 cond 成立，超时则终止测试
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	if !WaitFor(timeout, cond) {
		t.Fatalf("%v 内条件未满足: %s", timeout, msg)
	}
}

// AdvanceUntil 每次检查前推进 Mock 时钟 step，直到 cond 成立
//
// 被测 goroutine 何时创建 Ticker 不确定，只推进一次可能落在 Ticker
// 创建之前。
func AdvanceUntil(t *testing.T, mock *clock.Mock, step, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	Eventually(t, timeout, func() bool {
		mock.Add(step)
		return cond()
	}, msg)
}
