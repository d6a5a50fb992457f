package ci

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flightbus/go-flightbus/internal/app/labkit"
	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
	"github.com/flightbus/go-flightbus/pkg/lib/log"
	"github.com/flightbus/go-flightbus/pkg/types"
)

var logger = log.Logger("app/ci")

// 指令注入应用消息标识
const (
	CmdMID    types.MsgID = 0x1884
	SendHKMID types.MsgID = 0x1885
	HKTlmMID  types.MsgID = 0x0884
)

// 指令功能码
const (
	FcnNoop          uint16 = 0
	FcnResetCounters uint16 = 1
)

// HK 负载字段
const (
	HKSocketConnected protowire.Number = labkit.FirstAppField
	HKIngestPackets   protowire.Number = labkit.FirstAppField + 1
	HKIngestErrors    protowire.Number = labkit.FirstAppField + 2
)

const (
	// CmdPipeName 指令管道名称
	CmdPipeName = "CI_LAB_CMD_PIPE"
	// CmdPipeDepth 指令管道深度
	CmdPipeDepth = 32
)

// Option 应用选项
type Option func(*App)

// WithListener 替换上行数据源的打开方式
func WithListener(l Listener) Option {
	return func(a *App) { a.listen = l }
}

// App 指令注入应用
type App struct {
	bus    interfaces.SoftwareBus
	clk    clock.Clock
	cfg    Config
	listen Listener

	mu  sync.Mutex
	src Source
	cmd *labkit.CommandPipe

	counters labkit.Counters
	dispatch *labkit.Dispatcher
	runner   labkit.Runner

	connected     atomic.Bool
	ingestPackets atomic.Uint64
	ingestErrors  atomic.Uint64
}

// New 创建指令注入应用
func New(bus interfaces.SoftwareBus, clk clock.Clock, cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	a := &App{bus: bus, clk: clk, cfg: cfg, listen: ListenUDP}
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
	)
	return a, nil
}

// Start 创建指令管道、打开上行套接字并启动接收循环
//
// 套接字打开失败不影响指令处理，HK 中 SocketConnected 为 0。
func (a *App) Start(_ context.Context) error {
	cmd, err := labkit.OpenCommandPipe(a.bus, CmdPipeName, CmdPipeDepth, CmdMID, SendHKMID)
	if err != nil {
		return err
	}

	src, lerr := a.listen(a.cfg.ListenAddr)
	if lerr != nil {
		logger.Error("上行套接字打开失败", "addr", a.cfg.ListenAddr, "err", lerr)
	}

	a.mu.Lock()
	a.cmd, a.src = cmd, src
	a.mu.Unlock()

	if !a.runner.Start() {
		return nil
	}
	a.runner.Go(a.serve)
	if src != nil {
		a.connected.Store(true)
		a.runner.Go(func(ctx context.Context) error { return a.ingest(ctx, src) })
		logger.Info("指令注入应用已启动", "addr", src.LocalAddr())
	}
	return nil
}

// Stop 关闭套接字、停止接收循环并删除指令管道
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	src, cmd := a.src, a.cmd
	a.src = nil
	a.mu.Unlock()

	var err error
	if src != nil {
		err = src.Close()
		a.connected.Store(false)
	}
	if rerr := a.runner.Stop(ctx); err == nil {
		err = rerr
	}
	if cmd != nil {
		if cerr := cmd.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Addr 返回上行套接字地址，未连接时返回 nil
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.src == nil {
		return nil
	}
	return a.src.LocalAddr()
}

// ============================================================================
// 上行接收
// ============================================================================

// ingest 接收循环
//
// 下一个接收缓冲区跨迭代保留：只有成功发布后才重新分配。
func (a *App) ingest(ctx context.Context, src Source) error {
	var next interfaces.MessageBuffer
	defer func() {
		if next != nil {
			_ = next.Release()
		}
	}()

	for ctx.Err() == nil {
		if next == nil {
			buf, err := a.bus.AllocateMessageBuffer(a.cfg.MaxIngest)
			if err != nil {
				logger.Warn("分配接收缓冲区失败", "err", err)
				select {
				case <-ctx.Done():
					return nil
				case <-a.clk.After(a.cfg.ReadTimeout):
				}
				continue
			}
			next = buf
		}

		_ = src.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
		n, from, err := src.ReadFrom(next.Bytes())
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			logger.Warn("上行读取失败", "err", err)
			continue
		}

		if !a.accept(next.Bytes(), n) {
			a.ingestErrors.Add(1)
			logger.Warn("上行数据报长度错误", "from", from, "len", n)
			continue
		}
		if err := a.publish(next, n); err != nil {
			a.ingestErrors.Add(1)
			logger.Warn("上行消息发布失败", "from", from, "err", err)
		}
		next = nil
	}
	return nil
}

// accept 检查数据报长度和消息头长度字段
func (a *App) accept(b []byte, n int) bool {
	if n < msg.HeaderSize || n > a.cfg.MaxIngest {
		return false
	}
	return msg.Validate(b[:n]) == nil
}

// publish 截短到数据报长度后零拷贝发布；失败时释放缓冲区
func (a *App) publish(buf interfaces.MessageBuffer, n int) error {
	if err := buf.Truncate(n); err != nil {
		_ = a.bus.ReleaseMessageBuffer(buf)
		return err
	}
	if err := a.bus.TransmitBuffer(buf, msg.MsgID(buf.Bytes()), false); err != nil {
		_ = a.bus.ReleaseMessageBuffer(buf)
		return err
	}
	a.ingestPackets.Add(1)
	return nil
}

// ============================================================================
// 指令
// ============================================================================

func (a *App) serve(ctx context.Context) error {
	err := a.cmd.Serve(ctx, a.handle)
	if errors.Is(err, labkit.ErrPipeClosed) {
		return nil
	}
	return err
}

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

func (a *App) sendHK() {
	m := labkit.BuildHK(HKTlmMID, &a.counters,
		labkit.BoolField(HKSocketConnected, a.connected.Load()),
		labkit.Field{Num: HKIngestPackets, Value: a.ingestPackets.Load()},
		labkit.Field{Num: HKIngestErrors, Value: a.ingestErrors.Load()},
	)
	if err := a.bus.TransmitMsg(m, true); err != nil {
		logger.Warn("发送 HK 遥测失败", "err", err)
	}
}

func (a *App) resetCounters() {
	a.counters.Reset()
	a.ingestPackets.Store(0)
	a.ingestErrors.Store(0)
}

// Counters 返回指令计数和指令错误计数
func (a *App) Counters() (cmd, cmdErr uint64) {
	return a.counters.Load()
}

// Ingested 返回已发布的数据报数和长度错误数
func (a *App) Ingested() (packets, errs uint64) {
	return a.ingestPackets.Load(), a.ingestErrors.Load()
}
