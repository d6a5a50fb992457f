package to

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flightbus/go-flightbus/internal/app/labkit"
	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
	"github.com/flightbus/go-flightbus/pkg/lib/log"
	"github.com/flightbus/go-flightbus/pkg/types"
)

var logger = log.Logger("app/to")

// 遥测输出应用消息标识
const (
	CmdMID       types.MsgID = 0x1880
	SendHKMID    types.MsgID = 0x1881
	HKTlmMID     types.MsgID = 0x0880
	DataTypesMID types.MsgID = 0x0881
)

// 指令功能码
const (
	FcnNoop          uint16 = 0
	FcnResetCounters uint16 = 1
	FcnAddPkt        uint16 = 2
	FcnSendDataTypes uint16 = 3
	FcnRemovePkt     uint16 = 4
	FcnRemoveAll     uint16 = 5
	FcnOutputEnable  uint16 = 6
	FcnOutputDisable uint16 = 7
)

// 指令负载字段
//
// ADD_PKT 使用全部四个字段，REMOVE_PKT 只使用 PktMsgID，
// OUTPUT_ENABLE 可选携带 PktAddr 字符串。
const (
	PktMsgID       protowire.Number = 1
	PktPriority    protowire.Number = 2
	PktReliability protowire.Number = 3
	PktBufLimit    protowire.Number = 4
	PktAddr        protowire.Number = 1
)

// HK 负载字段
const (
	HKOutputEnabled protowire.Number = labkit.FirstAppField
	HKSuppressed    protowire.Number = labkit.FirstAppField + 1
	HKForwarded     protowire.Number = labkit.FirstAppField + 2
	HKDiscarded     protowire.Number = labkit.FirstAppField + 3
	HKWriteErrors   protowire.Number = labkit.FirstAppField + 4
	HKSubscriptions protowire.Number = labkit.FirstAppField + 5
)

const (
	// CmdPipeName 指令管道名称
	CmdPipeName = "TO_LAB_CMD_PIPE"
	// CmdPipeDepth 指令管道深度
	CmdPipeDepth = 8
	// TlmPipeName 遥测管道名称
	TlmPipeName = "TO_LAB_TLM_PIPE"
)

// Option 应用选项
type Option func(*App)

// WithDialer 替换下行输出的打开方式
func WithDialer(d Dialer) Option {
	return func(a *App) { a.dial = d }
}

// App 遥测输出应用
type App struct {
	bus  interfaces.SoftwareBus
	clk  clock.Clock
	cfg  Config
	dial Dialer

	cmd *labkit.CommandPipe
	tlm *labkit.CommandPipe

	mu         sync.Mutex
	sink       io.WriteCloser
	enabled    bool
	suppressed bool
	table      map[types.MsgID]Subscription

	counters labkit.Counters
	dispatch *labkit.Dispatcher
	runner   labkit.Runner

	forwarded   atomic.Uint64
	discarded   atomic.Uint64
	writeErrors atomic.Uint64
}

// New 创建遥测输出应用
func New(bus interfaces.SoftwareBus, clk clock.Clock, cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	a := &App{
		bus:   bus,
		clk:   clk,
		cfg:   cfg,
		dial:  DialUDP,
		table: make(map[types.MsgID]Subscription, len(cfg.Subscriptions)),
	}
	for _, opt := range opts {
		opt(a)
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
		labkit.Command{Code: FcnAddPkt, Name: "ADD_PKT", Run: a.addPkt},
		labkit.Command{Code: FcnSendDataTypes, Name: "SEND_DATA_TYPES", Run: a.sendDataTypes},
		labkit.Command{Code: FcnRemovePkt, Name: "REMOVE_PKT", Run: a.removePkt},
		labkit.Command{Code: FcnRemoveAll, Name: "REMOVE_ALL", Run: a.removeAll},
		labkit.Command{Code: FcnOutputEnable, Name: "OUTPUT_ENABLE", Run: a.outputEnable},
		labkit.Command{Code: FcnOutputDisable, Name: "OUTPUT_DISABLE", Run: func([]byte) error {
			a.setOutput(false)
			return nil
		}},
	)
	return a, nil
}

// ============================================================================
// 生命周期
// ============================================================================

// Start 创建管道、订阅遥测并启动转发循环
func (a *App) Start(_ context.Context) error {
	cmd, err := labkit.OpenCommandPipe(a.bus, CmdPipeName, CmdPipeDepth, CmdMID, SendHKMID)
	if err != nil {
		return err
	}
	tlm, err := labkit.OpenCommandPipe(a.bus, TlmPipeName, a.cfg.TlmPipeDepth)
	if err != nil {
		_ = cmd.Close()
		return err
	}
	a.cmd, a.tlm = cmd, tlm

	for _, s := range a.cfg.Subscriptions {
		if err := a.subscribe(s); err != nil {
			a.closePipes()
			return err
		}
	}

	if a.cfg.OutputEnabled {
		if err := a.openSink(a.cfg.SinkAddr); err != nil {
			a.closePipes()
			return err
		}
		a.setOutput(true)
	}

	if !a.runner.Start() {
		return nil
	}
	a.runner.Go(a.loop)
	logger.Info("遥测输出应用已启动", "subscriptions", len(a.cfg.Subscriptions), "output", a.cfg.OutputEnabled)
	return nil
}

// Stop 停止转发循环、删除管道并关闭下行输出
func (a *App) Stop(ctx context.Context) error {
	err := a.runner.Stop(ctx)
	if cerr := a.closePipes(); err == nil {
		err = cerr
	}

	a.mu.Lock()
	sink := a.sink
	a.sink, a.enabled = nil, false
	a.mu.Unlock()
	if sink != nil {
		if cerr := sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (a *App) closePipes() error {
	var err error
	for _, p := range []*labkit.CommandPipe{a.tlm, a.cmd} {
		if p == nil {
			continue
		}
		if cerr := p.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (a *App) loop(ctx context.Context) error {
	ticker := a.clk.Ticker(a.cfg.ForwardInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.cycle(ctx); err != nil {
				logger.Warn("转发循环退出", "err", err)
				return nil
			}
		}
	}
}

// cycle 一个转发周期：先转发遥测，再处理指令
func (a *App) cycle(ctx context.Context) error {
	if err := a.forward(ctx); err != nil {
		return err
	}
	_, err := a.cmd.Drain(ctx, a.handle)
	return err
}

// ============================================================================
// 转发
// ============================================================================

// forward 最多取出 MaxForwardPerCycle 条遥测并写入下行输出
func (a *App) forward(ctx context.Context) error {
	for i := 0; i < a.cfg.MaxForwardPerCycle; i++ {
		buf, err := a.tlm.Poll(ctx)
		if buf == nil {
			return err
		}
		a.write(buf)
	}
	return nil
}

// write 写出一条遥测，写入失败时进入抑制状态
func (a *App) write(buf interfaces.MessageBuffer) {
	defer buf.Release()

	a.mu.Lock()
	sink := a.sink
	active := a.enabled && !a.suppressed && sink != nil
	a.mu.Unlock()

	if !active {
		a.discarded.Add(1)
		return
	}
	if _, err := sink.Write(buf.Bytes()); err != nil {
		a.writeErrors.Add(1)
		a.mu.Lock()
		a.suppressed = true
		a.mu.Unlock()
		logger.Warn("下行输出写入失败，输出已抑制", "msgID", buf.MsgID(), "err", err)
		return
	}
	a.forwarded.Add(1)
}

func (a *App) openSink(addr string) error {
	var (
		sink io.WriteCloser = discard{}
		err  error
	)
	if addr != "" {
		if sink, err = a.dial(addr); err != nil {
			return fmt.Errorf("open downlink %s: %w", addr, err)
		}
	}

	a.mu.Lock()
	old := a.sink
	a.sink = sink
	a.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	logger.Info("下行输出已打开", "addr", addr)
	return nil
}

func (a *App) setOutput(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = on
	if on {
		a.suppressed = false
	}
}

// ============================================================================
// 指令
// ============================================================================

func (a *App) handle(buf interfaces.MessageBuffer) {
	defer buf.Release()

	switch id := buf.MsgID(); id {
	case SendHKMID:
		a.sendHK()
	case CmdMID:
		_ = a.dispatch.Dispatch(buf.Bytes())
	default:
		logger.Warn("指令管道收到未知消息", "msgID", id)
	}
}

func (a *App) subscribe(s Subscription) error {
	if err := a.bus.SubscribeEx(s.MsgID, a.tlm.ID(), s.Qos, s.BufLimit); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.MsgID, err)
	}
	a.mu.Lock()
	a.table[s.MsgID] = s
	a.mu.Unlock()
	return nil
}

func (a *App) addPkt(payload []byte) error {
	f, err := msg.ParseUints(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", labkit.ErrBadPayload, err)
	}
	id, ok := f[PktMsgID]
	if !ok {
		return fmt.Errorf("%w: missing msg id", labkit.ErrBadPayload)
	}
	s := Subscription{
		MsgID: types.MsgID(id),
		Qos: types.Qos{
			Priority:    types.Priority(f[PktPriority]),
			Reliability: types.Reliability(f[PktReliability]),
		},
		BufLimit: int(f[PktBufLimit]),
	}
	if err := a.subscribe(s); err != nil {
		return err
	}
	logger.Info("已添加遥测订阅", "msgID", s.MsgID, "qos", s.Qos, "bufLimit", s.BufLimit)
	return nil
}

func (a *App) removePkt(payload []byte) error {
	f, err := msg.ParseUints(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", labkit.ErrBadPayload, err)
	}
	v, ok := f[PktMsgID]
	if !ok {
		return fmt.Errorf("%w: missing msg id", labkit.ErrBadPayload)
	}
	id := types.MsgID(v)
	if err := a.bus.Unsubscribe(id, a.tlm.ID()); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", id, err)
	}
	a.mu.Lock()
	delete(a.table, id)
	a.mu.Unlock()
	logger.Info("已移除遥测订阅", "msgID", id)
	return nil
}

func (a *App) removeAll([]byte) error {
	var err error
	for _, id := range a.Subscriptions() {
		if uerr := a.bus.Unsubscribe(id, a.tlm.ID()); uerr != nil {
			err = multierr.Append(err, fmt.Errorf("unsubscribe %s: %w", id, uerr))
			continue
		}
		a.mu.Lock()
		delete(a.table, id)
		a.mu.Unlock()
	}
	logger.Info("已移除全部遥测订阅")
	return err
}

func (a *App) outputEnable(payload []byte) error {
	addr, ok, err := msg.ParseString(payload, PktAddr)
	if err != nil {
		return fmt.Errorf("%w: %w", labkit.ErrBadPayload, err)
	}
	a.mu.Lock()
	haveSink := a.sink != nil
	a.mu.Unlock()

	if ok || !haveSink {
		if !ok {
			addr = a.cfg.SinkAddr
		}
		if err := a.openSink(addr); err != nil {
			return err
		}
	}
	a.setOutput(true)
	return nil
}

// sendDataTypes 发送覆盖各字段类型的固定测试遥测，供地面端验证解码
func (a *App) sendDataTypes([]byte) error {
	var b []byte
	b = msg.AppendUint(b, 1, 0x12)
	b = msg.AppendUint(b, 2, 0x1234)
	b = msg.AppendUint(b, 3, 0x12345678)
	b = msg.AppendUint(b, 4, 0x123456789ABCDEF0)
	b = protowire.AppendTag(b, 5, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 0x89ABCDEF)
	b = protowire.AppendTag(b, 6, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 0x0123456789ABCDEF)
	b = msg.AppendString(b, 7, "ABCDE")
	return a.bus.TransmitMsg(msg.Build(DataTypesMID, 0, b), true)
}

func (a *App) sendHK() {
	a.mu.Lock()
	enabled, suppressed, subs := a.enabled, a.suppressed, len(a.table)
	a.mu.Unlock()

	m := labkit.BuildHK(HKTlmMID, &a.counters,
		labkit.BoolField(HKOutputEnabled, enabled),
		labkit.BoolField(HKSuppressed, suppressed),
		labkit.Field{Num: HKForwarded, Value: a.forwarded.Load()},
		labkit.Field{Num: HKDiscarded, Value: a.discarded.Load()},
		labkit.Field{Num: HKWriteErrors, Value: a.writeErrors.Load()},
		labkit.Field{Num: HKSubscriptions, Value: uint64(subs)},
	)
	if err := a.bus.TransmitMsg(m, true); err != nil {
		logger.Warn("发送 HK 遥测失败", "err", err)
	}
}

func (a *App) resetCounters() {
	a.counters.Reset()
	a.forwarded.Store(0)
	a.discarded.Store(0)
	a.writeErrors.Store(0)
}

// ============================================================================
// 查询
// ============================================================================

// Subscriptions 返回当前订阅的 MsgID，按升序排列
func (a *App) Subscriptions() []types.MsgID {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]types.MsgID, 0, len(a.table))
	for id := range a.table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Output 返回输出是否启用以及是否被抑制
func (a *App) Output() (enabled, suppressed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled, a.suppressed
}

// Counters 返回指令计数和指令错误计数
func (a *App) Counters() (cmd, cmdErr uint64) {
	return a.counters.Load()
}

// Forwarded 返回已写出和已丢弃的遥测数
func (a *App) Forwarded() (forwarded, discarded uint64) {
	return a.forwarded.Load(), a.discarded.Load()
}
