package labkit

import (
	"fmt"

	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/pkg/lib/log"
)

// Command 指令定义
type Command struct {
	// Code 功能码
	Code uint16

	// Name 日志中使用的名称
	Name string

	// Run 处理负载，返回错误时计入指令错误计数
	Run func(payload []byte) error

	// Uncounted 成功时不计入指令计数（例如清零计数的指令）
	Uncounted bool
}

// Dispatcher 按功能码分派指令
type Dispatcher struct {
	logger   *log.LazyLogger
	counters *Counters
	commands map[uint16]Command
}

// NewDispatcher 创建分派器
func NewDispatcher(logger *log.LazyLogger, counters *Counters, cmds ...Command) *Dispatcher {
	d := &Dispatcher{
		logger:   logger,
		counters: counters,
		commands: make(map[uint16]Command, len(cmds)),
	}
	for _, c := range cmds {
		d.commands[c.Code] = c
	}
	return d
}

// Dispatch 校验消息并执行对应指令
func (d *Dispatcher) Dispatch(data []byte) error {
	if err := msg.Validate(data); err != nil {
		d.counters.Reject()
		d.logger.Warn("指令长度错误", "msgID", msg.MsgID(data), "err", err)
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}

	code := msg.FcnCode(data)
	cmd, ok := d.commands[code]
	if !ok {
		d.counters.Reject()
		d.logger.Warn("未知指令功能码", "msgID", msg.MsgID(data), "fcnCode", code)
		return fmt.Errorf("%w: %d", ErrUnknownCommand, code)
	}

	if err := cmd.Run(msg.Payload(data)); err != nil {
		d.counters.Reject()
		d.logger.Warn("指令执行失败", "cmd", cmd.Name, "err", err)
		return err
	}
	if !cmd.Uncounted {
		d.counters.Accept()
	}
	d.logger.Debug("指令已执行", "cmd", cmd.Name)
	return nil
}
