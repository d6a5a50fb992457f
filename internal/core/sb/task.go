package sb

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// 总线任务的消息标识
const (
	CmdMID      types.MsgID = 0x1803
	SendHKMID   types.MsgID = 0x180B
	HKTlmMID    types.MsgID = 0x0803
	StatsTlmMID types.MsgID = 0x080A
)

// 总线指令功能码
const (
	FcnNoop          uint16 = 0
	FcnResetCounters uint16 = 1
	FcnSendStats     uint16 = 2
	FcnEnableRoute   uint16 = 4
	FcnDisableRoute  uint16 = 5
)

const (
	// CmdPipeName 指令管道名称
	CmdPipeName = "SB_CMD_PIPE"
	// CmdPipeDepth 指令管道深度
	CmdPipeDepth = 8
)

// Task 总线自身的指令处理任务
//
// 处理 SB 指令并按 HK 请求发送 HK 遥测。它和其他应用一样只使用
// 总线的公开操作。
type Task struct {
	bus    *Bus
	pipeID types.PipeID

	cmdCount    atomic.Uint64
	cmdErrCount atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTask 创建总线任务
func NewTask(bus *Bus) *Task {
	return &Task{bus: bus, pipeID: types.InvalidPipeID}
}

// Start 创建指令管道、订阅并启动处理循环
func (t *Task) Start(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}

	pid, err := t.bus.CreatePipe(CmdPipeDepth, CmdPipeName)
	if err != nil {
		return err
	}
	for _, id := range []types.MsgID{CmdMID, SendHKMID} {
		if err := t.bus.SubscribeEx(id, pid, types.DefaultQos, CmdPipeDepth); err != nil {
			_ = t.bus.DeletePipe(pid)
			return err
		}
	}
	t.pipeID = pid

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx)

	logger.Info("总线指令任务已启动", "pipe", pid)
	return nil
}

// Stop 停止处理循环并删除指令管道
func (t *Task) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel, done, pid := t.cancel, t.done, t.pipeID
	t.cancel = nil
	t.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := t.bus.DeletePipe(pid); err != nil && !errors.Is(err, ErrInvalidPipe) {
		return err
	}
	return nil
}

// PipeID 返回指令管道标识
func (t *Task) PipeID() types.PipeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pipeID
}

// Counters 返回指令计数和指令错误计数
func (t *Task) Counters() (cmd, cmdErr uint64) {
	return t.cmdCount.Load(), t.cmdErrCount.Load()
}

func (t *Task) run(ctx context.Context) {
	defer close(t.done)

	for {
		buf, err := t.bus.ReceiveBuffer(ctx, t.pipeID, types.PendForever)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrPipeDeleted) || errors.Is(err, ErrInvalidPipe) {
				return
			}
			logger.Warn("指令管道接收失败", "err", err)
			continue
		}
		t.handle(buf.MsgID(), buf.Bytes())
		_ = buf.Release()
	}
}

// handle 按 MsgID 和功能码分派
func (t *Task) handle(id types.MsgID, data []byte) {
	switch id {
	case SendHKMID:
		t.sendHK()
	case CmdMID:
		t.command(data)
	default:
		logger.Warn("指令管道收到未知消息", "msgID", id)
	}
}

func (t *Task) command(data []byte) {
	if err := msg.Validate(data); err != nil {
		t.cmdErrCount.Add(1)
		logger.Warn("指令长度错误", "err", err)
		return
	}

	switch code := msg.FcnCode(data); code {
	case FcnNoop:
		t.cmdCount.Add(1)
		logger.Info("收到 NOOP 指令")
	case FcnResetCounters:
		t.cmdCount.Store(0)
		t.cmdErrCount.Store(0)
		t.bus.ResetCounters()
		logger.Debug("计数器已清零")
	case FcnSendStats:
		t.cmdCount.Add(1)
		t.sendStats()
	case FcnEnableRoute, FcnDisableRoute:
		id, pid, err := decodeRouteCmd(msg.Payload(data))
		if err == nil {
			if code == FcnEnableRoute {
				err = t.bus.EnableRoute(id, pid)
			} else {
				err = t.bus.DisableRoute(id, pid)
			}
		}
		if err != nil {
			t.cmdErrCount.Add(1)
			logger.Warn("路由指令失败", "fcnCode", code, "err", err)
			return
		}
		t.cmdCount.Add(1)
	default:
		t.cmdErrCount.Add(1)
		logger.Warn("未知指令功能码", "fcnCode", code)
	}
}

func (t *Task) sendHK() {
	cmd, cmdErr := t.Counters()
	payload := EncodeHK(cmd, cmdErr, t.bus.Stats())
	if err := t.bus.TransmitMsg(msg.Build(HKTlmMID, 0, payload), true); err != nil {
		logger.Warn("发送 HK 遥测失败", "err", err)
	}
}

func (t *Task) sendStats() {
	payload := EncodeStats(t.bus.Stats(), t.bus.cfg.Pool.BufferSize, t.bus.Pipes())
	if err := t.bus.TransmitMsg(msg.Build(StatsTlmMID, 0, payload), true); err != nil {
		logger.Warn("发送统计遥测失败", "err", err)
	}
}
