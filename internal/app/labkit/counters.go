package labkit

import "sync/atomic"

// Counters 指令计数
type Counters struct {
	cmd    atomic.Uint64
	cmdErr atomic.Uint64
}

// Accept 记录一条成功的指令
func (c *Counters) Accept() { c.cmd.Add(1) }

// Reject 记录一条失败的指令
func (c *Counters) Reject() { c.cmdErr.Add(1) }

// Reset 清零
func (c *Counters) Reset() {
	c.cmd.Store(0)
	c.cmdErr.Store(0)
}

// Load 返回指令计数和指令错误计数
func (c *Counters) Load() (cmd, cmdErr uint64) {
	return c.cmd.Load(), c.cmdErr.Load()
}
