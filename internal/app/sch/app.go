package sch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flightbus/go-flightbus/internal/app/labkit"
	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
	"github.com/flightbus/go-flightbus/pkg/lib/log"
	"github.com/flightbus/go-flightbus/pkg/types"
)

var logger = log.Logger("app/sch")

// 调度应用消息标识
const (
	CmdMID    types.MsgID = 0x1895
	SendHKMID types.MsgID = 0x1896
	HKTlmMID  types.MsgID = 0x0896
)

// 指令功能码
const (
	FcnNoop          uint16 = 0
	FcnResetCounters uint16 = 1
)

// HK 负载字段
const (
	HKTicks      protowire.Number = labkit.FirstAppField
	HKSyncs      protowire.Number = labkit.FirstAppField + 1
	HKMsgsSent   protowire.Number = labkit.FirstAppField + 2
	HKSendErrors protowire.Number = labkit.FirstAppField + 3
	HKEntries    protowire.Number = labkit.FirstAppField + 4
)

const (
	// CmdPipeName 指令管道名称
	CmdPipeName = "SCH_LAB_CMD_PIPE"
	// CmdPipeDepth 指令管道深度
	CmdPipeDepth = 8
)

type slot struct {
	msg     []byte
	rate    int
	counter int
}

// App 调度应用
type App struct {
	bus interfaces.SoftwareBus
	clk clock.Clock
	cfg Config

	mu    sync.Mutex // 保护 slots 计数
	slots []*slot

	pipe     *labkit.CommandPipe
	counters labkit.Counters
	dispatch *labkit.Dispatcher
	runner   labkit.Runner

	ticks      atomic.Uint64
	syncs      atomic.Uint64
	sent       atomic.Uint64
	sendErrors atomic.Uint64
}

// New 创建调度应用
func New(bus interfaces.SoftwareBus, clk clock.Clock, cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	a := &App{bus: bus, clk: clk, cfg: cfg}
	for _, e := range cfg.Entries {
		if e.PacketRate == 0 {
			continue
		}
		a.slots = append(a.slots, &slot{msg: msg.Build(e.MsgID, e.FcnCode, nil), rate: e.PacketRate})
	}
	a.dispatch = labkit.NewDispatcher(logger, &a.counters,
		labkit.Command{Code: FcnNoop, Name: "NOOP", Run: func([]byte) error {
			logger.Info("收到 NOOP 指令")
			return nil
		}},
		labkit.Command{Code: FcnResetCounters, Name: "RESET_COUNTERS", Uncounted: true, Run: func([]byte) error {
			a.resetCounters()
			return nil
		}},
	)
	return a, nil
}

// Start 创建指令管道并启动节拍循环
func (a *App) Start(_ context.Context) error {
	ids := []types.MsgID{CmdMID, SendHKMID}
	if a.cfg.SyncMsgID != types.InvalidMsgID {
		ids = append(ids, a.cfg.SyncMsgID)
	}
	pipe, err := labkit.OpenCommandPipe(a.bus, CmdPipeName, CmdPipeDepth, ids...)
	if err != nil {
		return err
	}
	a.pipe = pipe

	if !a.runner.Start() {
		return nil
	}
	a.runner.Go(a.loop)
	logger.Info("调度应用已启动", "tickRate", a.cfg.TickRate, "entries", len(a.slots), "sync", a.cfg.SyncMsgID)
	return nil
}

// Stop 停止节拍循环并删除指令管道
func (a *App) Stop(ctx context.Context) error {
	err := a.runner.Stop(ctx)
	if a.pipe != nil {
		if cerr := a.pipe.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (a *App) loop(ctx context.Context) error {
	ticker := a.clk.Ticker(a.cfg.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.tick(ctx); err != nil {
				logger.Warn("调度循环退出", "err", err)
				return nil
			}
		}
	}
}

// tick 处理一个节拍：先处理指令管道，再运行调度表
func (a *App) tick(ctx context.Context) error {
	a.ticks.Add(1)
	if _, err := a.pipe.Drain(ctx, a.handle); err != nil {
		return err
	}

	if a.cfg.SyncMsgID != types.InvalidMsgID && a.syncs.Load() == 0 {
		return nil
	}

	a.mu.Lock()
	var due [][]byte
	for _, s := range a.slots {
		s.counter++
		if s.counter >= s.rate {
			s.counter = 0
			due = append(due, s.msg)
		}
	}
	a.mu.Unlock()

	for _, m := range due {
		if err := a.bus.TransmitMsg(m, true); err != nil {
			a.sendErrors.Add(1)
			logger.Warn("调度消息发送失败", "msgID", msg.MsgID(m), "err", err)
			continue
		}
		a.sent.Add(1)
	}
	return nil
}

func (a *App) handle(buf interfaces.MessageBuffer) {
	defer buf.Release()

	switch id := buf.MsgID(); {
	case id == a.cfg.SyncMsgID:
		a.syncs.Add(1)
	case id == SendHKMID:
		a.sendHK()
	case id == CmdMID:
		_ = a.dispatch.Dispatch(buf.Bytes())
	default:
		logger.Warn("指令管道收到未知消息", "msgID", id)
	}
}

func (a *App) sendHK() {
	m := labkit.BuildHK(HKTlmMID, &a.counters,
		labkit.Field{Num: HKTicks, Value: a.ticks.Load()},
		labkit.Field{Num: HKSyncs, Value: a.syncs.Load()},
		labkit.Field{Num: HKMsgsSent, Value: a.sent.Load()},
		labkit.Field{Num: HKSendErrors, Value: a.sendErrors.Load()},
		labkit.Field{Num: HKEntries, Value: uint64(len(a.slots))},
	)
	if err := a.bus.TransmitMsg(m, true); err != nil {
		logger.Warn("发送 HK 遥测失败", "err", err)
	}
}

func (a *App) resetCounters() {
	a.counters.Reset()
	a.sent.Store(0)
	a.sendErrors.Store(0)
}

// Counters 返回指令计数和指令错误计数
func (a *App) Counters() (cmd, cmdErr uint64) {
	return a.counters.Load()
}

// Sent 返回已发送的调度消息数
func (a *App) Sent() uint64 {
	return a.sent.Load()
}
