package sb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/flightbus/go-flightbus/internal/core/bufpool"
	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/internal/core/pipe"
	"github.com/flightbus/go-flightbus/internal/core/routing"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
	"github.com/flightbus/go-flightbus/pkg/lib/log"
	"github.com/flightbus/go-flightbus/pkg/types"
)

var logger = log.Logger("core/sb")

// ============================================================================
// 管道注册表
// ============================================================================

// pipeEntry 注册表中的一个管道
type pipeEntry struct {
	p *pipe.Pipe

	mu     sync.Mutex
	last   *Buffer // 上一次接收、尚未隐式释放的缓冲区
	closed bool
}

// takeLast 取出上一次接收的缓冲区
func (e *pipeEntry) takeLast() *Buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	last := e.last
	e.last = nil
	return last
}

// setLast 记录本次接收的缓冲区，管道已关闭时返回 false
func (e *pipeEntry) setLast(b *Buffer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.last = b
	return true
}

// close 标记关闭并取出尚未释放的缓冲区
func (e *pipeEntry) close() *Buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	last := e.last
	e.last = nil
	return last
}

// maxPipeGeneration 槽位可用的最大代数
//
// PipeID 的代数只有 16 位，达到该值的槽位在删除后永久停用，
// 过期的 PipeID 因此不会与新管道重合，也不会等于 InvalidPipeID。
const maxPipeGeneration = 0xFFFE

type regSlot struct {
	gen     uint16
	retired bool
	entry   *pipeEntry
}

// counters HK 计数器
type counters struct {
	noSubscribers          atomic.Uint64
	msgSendErrors          atomic.Uint64
	msgReceiveErrors       atomic.Uint64
	pipeOverflowErrors     atomic.Uint64
	msgLimitErrors         atomic.Uint64
	createPipeErrors       atomic.Uint64
	subscribeErrors        atomic.Uint64
	duplicateSubscriptions atomic.Uint64
	internalErrors         atomic.Uint64
	getPipeIDByNameErrors  atomic.Uint64
	doubleReleases         atomic.Uint64
	msgsSent               atomic.Uint64
	msgsDelivered          atomic.Uint64
	msgsReceived           atomic.Uint64
}

func (c *counters) reset() {
	for _, v := range []*atomic.Uint64{
		&c.noSubscribers, &c.msgSendErrors, &c.msgReceiveErrors,
		&c.pipeOverflowErrors, &c.msgLimitErrors, &c.createPipeErrors,
		&c.subscribeErrors, &c.duplicateSubscriptions, &c.internalErrors,
		&c.getPipeIDByNameErrors, &c.doubleReleases, &c.msgsSent, &c.msgsDelivered, &c.msgsReceived,
	} {
		v.Store(0)
	}
}

// ============================================================================
// Bus
// ============================================================================

// Option 总线选项
type Option func(*Bus)

// WithClock 设置管道定时接收使用的时钟
func WithClock(clk clock.Clock) Option {
	return func(b *Bus) {
		if clk != nil {
			b.clk = clk
		}
	}
}

// Bus 软件总线
type Bus struct {
	cfg    Config
	clk    clock.Clock
	pool   *bufpool.Pool
	routes *routing.Table

	regMu      sync.RWMutex
	slots      []regSlot
	pipesInUse int
	peakPipes  int

	ctr      counters
	dropWarn *rate.Sometimes
	closed   atomic.Bool
}

var _ interfaces.SoftwareBus = (*Bus)(nil)

// New 创建软件总线
func New(cfg Config, opts ...Option) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sb config: %w", err)
	}
	pool, err := bufpool.New(cfg.Pool)
	if err != nil {
		return nil, err
	}
	routes, err := routing.New(cfg.Routing)
	if err != nil {
		return nil, err
	}

	interval := cfg.SlowConsumerWarnInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	b := &Bus{
		cfg:      cfg,
		clk:      clock.New(),
		pool:     pool,
		routes:   routes,
		slots:    make([]regSlot, cfg.MaxPipes),
		dropWarn: &rate.Sometimes{First: 1, Interval: interval},
	}
	for i := range b.slots {
		b.slots[i].gen = 1
	}
	for _, opt := range opts {
		opt(b)
	}

	logger.Info("软件总线已创建",
		"maxPipes", cfg.MaxPipes,
		"buffers", cfg.Pool.BufferCount,
		"bufferSize", cfg.Pool.BufferSize,
		"maxRoutes", cfg.Routing.MaxRoutes,
		"dropPolicy", cfg.DropPolicy)
	return b, nil
}

// Config 返回总线配置
func (b *Bus) Config() Config { return b.cfg }

// lookupLocked 校验管道标识，调用方持有 regMu
func (b *Bus) lookupLocked(pipeID types.PipeID) (*pipeEntry, error) {
	if pipeID == types.InvalidPipeID {
		return nil, ErrInvalidPipe
	}
	idx := int(pipeID.Index())
	if idx >= len(b.slots) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPipe, pipeID)
	}
	s := b.slots[idx]
	if s.entry == nil || s.gen != pipeID.Generation() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPipe, pipeID)
	}
	return s.entry, nil
}

func (b *Bus) lookup(pipeID types.PipeID) (*pipeEntry, error) {
	b.regMu.RLock()
	defer b.regMu.RUnlock()
	return b.lookupLocked(pipeID)
}

// releaseHandle 释放一个缓冲区引用；失败说明引用计数已被破坏
func (b *Bus) releaseHandle(h bufpool.Handle) {
	if _, err := b.pool.Release(h); err != nil {
		b.ctr.internalErrors.Add(1)
		logger.Error("释放缓冲区失败", "handle", h, "err", err)
	}
}

// ============================================================================
// 管道
// ============================================================================

// CreatePipe 创建管道
func (b *Bus) CreatePipe(depth int, name string, opts ...interfaces.PipeOpt) (types.PipeID, error) {
	if b.closed.Load() {
		return types.InvalidPipeID, ErrBusClosed
	}
	if depth <= 0 || depth > b.cfg.MaxPipeDepth {
		b.ctr.createPipeErrors.Add(1)
		return types.InvalidPipeID, fmt.Errorf("%w: depth %d not in [1, %d]", ErrBadArgument, depth, b.cfg.MaxPipeDepth)
	}
	if len(name) > b.cfg.MaxPipeNameLen {
		b.ctr.createPipeErrors.Add(1)
		return types.InvalidPipeID, fmt.Errorf("%w: pipe name %q longer than %d", ErrBadArgument, name, b.cfg.MaxPipeNameLen)
	}

	settings := interfaces.PipeSettings{Policy: b.cfg.DropPolicy}
	for _, opt := range opts {
		opt(&settings)
	}

	b.regMu.Lock()
	defer b.regMu.Unlock()

	idx := -1
	for i := range b.slots {
		if b.slots[i].entry == nil && !b.slots[i].retired {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.ctr.createPipeErrors.Add(1)
		return types.InvalidPipeID, fmt.Errorf("%w: %d", ErrMaxPipes, len(b.slots))
	}

	s := &b.slots[idx]
	id := types.NewPipeID(uint16(idx), s.gen)
	p, err := pipe.New(pipe.Config{
		ID:       id,
		Name:     name,
		Depth:    depth,
		Policy:   settings.Policy,
		Clock:    b.clk,
		Releaser: b.pool,
	})
	if err != nil {
		b.ctr.createPipeErrors.Add(1)
		return types.InvalidPipeID, fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	s.entry = &pipeEntry{p: p}
	b.pipesInUse++
	if b.pipesInUse > b.peakPipes {
		b.peakPipes = b.pipesInUse
	}

	logger.Debug("管道已创建", "pipe", id, "name", name, "depth", depth, "policy", settings.Policy)
	return id, nil
}

// DeletePipe 删除管道
//
// 顺序：管道进入 Deleting（拒绝入队、唤醒等待者）→ 在路由表写锁内
// 注销管道并移除其全部目的地 → 释放所有排队引用和消费者持有的引用。
func (b *Bus) DeletePipe(pipeID types.PipeID) error {
	e, err := b.lookup(pipeID)
	if err != nil {
		return err
	}
	e.p.BeginDelete()

	stale := false
	removed := b.routes.RemovePipe(pipeID, func() {
		b.regMu.Lock()
		defer b.regMu.Unlock()

		s := &b.slots[pipeID.Index()]
		if s.entry != e {
			stale = true
			return
		}
		s.entry = nil
		if s.gen >= maxPipeGeneration {
			s.retired = true
			logger.Warn("管道槽位代数耗尽，槽位停用", "slot", pipeID.Index())
		} else {
			s.gen++
		}
		b.pipesInUse--
	})
	if stale {
		return fmt.Errorf("%w: %s already deleted", ErrInvalidPipe, pipeID)
	}

	released := e.p.Destroy()
	if last := e.close(); last != nil {
		last.reclaim()
	}

	logger.Debug("管道已删除", "pipe", pipeID, "name", e.p.Name(), "routes", removed, "released", released)
	return nil
}

// GetPipeIDByName 按名称查找管道，重名时返回索引最小的一个
func (b *Bus) GetPipeIDByName(name string) (types.PipeID, error) {
	b.regMu.RLock()
	defer b.regMu.RUnlock()

	for i, s := range b.slots {
		if s.entry != nil && s.entry.p.Name() == name {
			return types.NewPipeID(uint16(i), s.gen), nil
		}
	}
	b.ctr.getPipeIDByNameErrors.Add(1)
	return types.InvalidPipeID, fmt.Errorf("%w: %q", ErrPipeNotFound, name)
}

// PipeInfo 返回管道状态快照
func (b *Bus) PipeInfo(pipeID types.PipeID) (types.PipeInfo, error) {
	e, err := b.lookup(pipeID)
	if err != nil {
		return types.PipeInfo{}, err
	}
	return e.p.Info(), nil
}

// Pipes 返回所有管道状态快照（按索引顺序）
func (b *Bus) Pipes() []types.PipeInfo {
	b.regMu.RLock()
	entries := make([]*pipeEntry, 0, b.pipesInUse)
	for _, s := range b.slots {
		if s.entry != nil {
			entries = append(entries, s.entry)
		}
	}
	b.regMu.RUnlock()

	out := make([]types.PipeInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.p.Info())
	}
	return out
}

// ============================================================================
// 订阅
// ============================================================================

// Subscribe 以默认策略和默认限额订阅
func (b *Bus) Subscribe(msgID types.MsgID, pipeID types.PipeID) error {
	return b.SubscribeEx(msgID, pipeID, types.DefaultQos, 0)
}

// SubscribeLocal 以默认策略和指定限额订阅
//
// 总线只在单处理器内路由，本地订阅与普通订阅行为相同。
func (b *Bus) SubscribeLocal(msgID types.MsgID, pipeID types.PipeID, msgLimit int) error {
	return b.SubscribeEx(msgID, pipeID, types.DefaultQos, msgLimit)
}

// SubscribeEx 以指定策略和限额订阅
//
// 同一 (msgID, pipeID) 重复订阅只更新策略，计入 DuplicateSubscriptions。
func (b *Bus) SubscribeEx(msgID types.MsgID, pipeID types.PipeID, qos types.Qos, msgLimit int) error {
	if !msgID.IsValid(b.cfg.HighestValidMsgID) {
		b.ctr.subscribeErrors.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidMsgID, msgID)
	}
	if msgLimit <= 0 {
		msgLimit = b.cfg.DefaultMsgLimit
	}

	res, err := b.routes.Subscribe(msgID, pipeID, qos, msgLimit, func() error {
		e, err := b.lookup(pipeID)
		if err != nil {
			return err
		}
		if e.p.State() >= types.PipeDeleting {
			return fmt.Errorf("%w: %s is being deleted", ErrInvalidPipe, pipeID)
		}
		return nil
	})
	if err != nil {
		b.ctr.subscribeErrors.Add(1)
		logger.Debug("订阅失败", "msgID", msgID, "pipe", pipeID, "err", err)
		return err
	}
	if res.Duplicate {
		b.ctr.duplicateSubscriptions.Add(1)
		logger.Debug("重复订阅，已更新策略", "msgID", msgID, "pipe", pipeID, "qos", qos, "limit", msgLimit)
	}
	return nil
}

// Unsubscribe 取消订阅
//
// 订阅不存在时为成功的空操作；管道标识无效时返回 ErrInvalidPipe。
func (b *Bus) Unsubscribe(msgID types.MsgID, pipeID types.PipeID) error {
	if !msgID.IsValid(b.cfg.HighestValidMsgID) {
		return fmt.Errorf("%w: %s", ErrInvalidMsgID, msgID)
	}
	if _, err := b.lookup(pipeID); err != nil {
		return err
	}
	if !b.routes.Unsubscribe(msgID, pipeID) {
		logger.Debug("取消不存在的订阅", "msgID", msgID, "pipe", pipeID)
	}
	return nil
}

// EnableRoute 恢复向 (msgID, pipeID) 投递
func (b *Bus) EnableRoute(msgID types.MsgID, pipeID types.PipeID) error {
	return b.setRouteActive(msgID, pipeID, true)
}

// DisableRoute 暂停向 (msgID, pipeID) 投递，保留订阅
func (b *Bus) DisableRoute(msgID types.MsgID, pipeID types.PipeID) error {
	return b.setRouteActive(msgID, pipeID, false)
}

func (b *Bus) setRouteActive(msgID types.MsgID, pipeID types.PipeID, active bool) error {
	if !msgID.IsValid(b.cfg.HighestValidMsgID) {
		return fmt.Errorf("%w: %s", ErrInvalidMsgID, msgID)
	}
	if _, err := b.lookup(pipeID); err != nil {
		return err
	}
	if err := b.routes.SetActive(msgID, pipeID, active); err != nil {
		return err
	}
	logger.Info("路由状态已更新", "msgID", msgID, "pipe", pipeID, "active", active)
	return nil
}

// Routes 返回路由表快照
func (b *Bus) Routes() []types.RouteInfo {
	return b.routes.Routes()
}

// ============================================================================
// 缓冲区与传输
// ============================================================================

// AllocateMessageBuffer 分配可写缓冲区
//
// 缓冲池耗尽时立即返回 ErrPoolExhausted，不阻塞。
func (b *Bus) AllocateMessageBuffer(size int) (interfaces.MessageBuffer, error) {
	h, err := b.pool.Allocate(size)
	if err != nil {
		return nil, err
	}
	data, err := b.pool.Bytes(h)
	if err != nil {
		b.ctr.internalErrors.Add(1)
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return newBuffer(b, h, data, bufAllocated), nil
}

// ownBuffer 校验缓冲区属于本总线
func (b *Bus) ownBuffer(mb interfaces.MessageBuffer) (*Buffer, error) {
	buf, ok := mb.(*Buffer)
	if !ok || buf == nil || buf.bus != b {
		return nil, ErrInvalidBuffer
	}
	return buf, nil
}

// ReleaseMessageBuffer 释放未传输的缓冲区或已接收的缓冲区
//
// 对已传输的缓冲区调用返回 ErrBufferConsumed，重复释放返回
// ErrBufferReleased 并计入 InvalidHandles。
func (b *Bus) ReleaseMessageBuffer(mb interfaces.MessageBuffer) error {
	buf, err := b.ownBuffer(mb)
	if err != nil {
		return err
	}
	return buf.Release()
}

// TransmitBuffer 零拷贝传输
//
// 参数校验失败时缓冲区仍归调用方所有；否则无论投递了多少个目的地，
// 返回后缓冲区都已被消费。没有订阅者不是错误。
func (b *Bus) TransmitBuffer(mb interfaces.MessageBuffer, msgID types.MsgID, isOrigination bool) error {
	buf, err := b.ownBuffer(mb)
	if err != nil {
		b.ctr.msgSendErrors.Add(1)
		return err
	}
	if !msgID.IsValid(b.cfg.HighestValidMsgID) {
		b.ctr.msgSendErrors.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidMsgID, msgID)
	}
	if bufState(buf.state.Load()) == bufReceived {
		b.ctr.msgSendErrors.Add(1)
		return fmt.Errorf("%w: received buffers are read-only", ErrInvalidBuffer)
	}
	if !buf.consume() {
		b.ctr.msgSendErrors.Add(1)
		return ErrBufferConsumed
	}
	buf.msgID = msgID

	b.transmit(buf.h, buf.data, msgID, isOrigination)
	return nil
}

// TransmitMsg 复制调用方持有的完整消息后传输
//
// 消息标识取自消息头。
func (b *Bus) TransmitMsg(data []byte, isOrigination bool) error {
	if err := msg.Validate(data); err != nil {
		b.ctr.msgSendErrors.Add(1)
		return fmt.Errorf("%w: %w", ErrBadArgument, err)
	}
	msgID := msg.MsgID(data)
	if !msgID.IsValid(b.cfg.HighestValidMsgID) {
		b.ctr.msgSendErrors.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidMsgID, msgID)
	}

	h, err := b.pool.Allocate(len(data))
	if err != nil {
		b.ctr.msgSendErrors.Add(1)
		return err
	}
	buf, err := b.pool.Bytes(h)
	if err != nil {
		b.ctr.internalErrors.Add(1)
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	copy(buf, data)

	b.transmit(h, buf, msgID, isOrigination)
	return nil
}

// transmit 按路由表顺序投递到每个启用的目的地，最后释放分配引用
func (b *Bus) transmit(h bufpool.Handle, data []byte, msgID types.MsgID, isOrigination bool) {
	if len(data) >= msg.HeaderSize {
		msg.SetMsgID(data, msgID)
		if isOrigination {
			if seq, ok := b.routes.NextSequence(msgID); ok {
				msg.SetSequence(data, seq)
			}
		}
	}

	b.ctr.msgsSent.Add(1)
	n := b.routes.Deliver(msgID, func(d routing.Destination) {
		b.deliver(d, h, msgID)
	})
	if n == 0 {
		b.ctr.noSubscribers.Add(1)
		logger.Debug("消息无订阅者", "msgID", msgID)
	}

	b.releaseHandle(h)
}

// deliver 向单个目的地入队，在路由表读锁内执行
func (b *Bus) deliver(d routing.Destination, h bufpool.Handle, msgID types.MsgID) {
	e, err := b.lookup(d.PipeID)
	if err != nil {
		b.ctr.internalErrors.Add(1)
		logger.Error("路由指向无效管道", "msgID", msgID, "pipe", d.PipeID, "err", err)
		return
	}
	if err := b.pool.Retain(h); err != nil {
		b.ctr.internalErrors.Add(1)
		logger.Error("增加缓冲区引用失败", "handle", h, "err", err)
		return
	}

	out := e.p.Enqueue(pipe.Entry{Handle: h, MsgID: msgID, Reliability: d.Qos.Reliability}, d.MsgLimit)
	switch out {
	case pipe.Delivered:
		b.ctr.msgsDelivered.Add(1)
		return
	case pipe.DroppedMsgLimit:
		b.ctr.msgLimitErrors.Add(1)
	case pipe.DroppedPipeFull:
		b.ctr.pipeOverflowErrors.Add(1)
	}
	b.releaseHandle(h)

	if out != pipe.DroppedDeleting {
		b.dropWarn.Do(func() {
			logger.Warn("管道消费缓慢，消息已丢弃",
				"pipe", d.PipeID,
				"name", e.p.Name(),
				"msgID", msgID,
				"reason", out,
				"limit", d.MsgLimit)
		})
	}
}

// ReceiveBuffer 从管道接收一条消息
//
//   - types.Poll：队列为空返回 ErrNoMessage
//   - types.PendForever：阻塞直到有消息、ctx 取消或管道删除
//   - 正超时：到期返回 ErrTimeout
//
// 上一次从该管道接收的缓冲区在本次调用开始时被释放。管道在等待期间
// 被删除时返回的错误同时满足 ErrInvalidPipe 和 ErrPipeDeleted。
func (b *Bus) ReceiveBuffer(ctx context.Context, pipeID types.PipeID, timeout types.Timeout) (interfaces.MessageBuffer, error) {
	if !timeout.IsValid() {
		b.ctr.msgReceiveErrors.Add(1)
		return nil, fmt.Errorf("%w: timeout %s", ErrBadArgument, timeout.Duration())
	}
	e, err := b.lookup(pipeID)
	if err != nil {
		b.ctr.msgReceiveErrors.Add(1)
		return nil, err
	}
	if last := e.takeLast(); last != nil {
		last.reclaim()
	}

	ent, err := e.p.Dequeue(ctx, timeout)
	if err != nil {
		switch {
		case errors.Is(err, pipe.ErrNoMessage), errors.Is(err, pipe.ErrTimeout):
			return nil, err
		case errors.Is(err, pipe.ErrPipeDeleted):
			b.ctr.msgReceiveErrors.Add(1)
			return nil, fmt.Errorf("%w: %w", ErrInvalidPipe, ErrPipeDeleted)
		default:
			return nil, err
		}
	}

	data, err := b.pool.Bytes(ent.Handle)
	if err != nil {
		b.ctr.internalErrors.Add(1)
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	buf := newBuffer(b, ent.Handle, data, bufReceived)
	buf.msgID = ent.MsgID
	buf.pipeID = pipeID

	if !e.setLast(buf) {
		buf.reclaim()
		b.ctr.msgReceiveErrors.Add(1)
		return nil, fmt.Errorf("%w: %w", ErrInvalidPipe, ErrPipeDeleted)
	}
	b.ctr.msgsReceived.Add(1)
	return buf, nil
}

// ============================================================================
// 统计与关闭
// ============================================================================

// Stats 返回总线统计
func (b *Bus) Stats() types.BusStats {
	ps := b.pool.Stats()
	rs := b.routes.Stats()

	b.regMu.RLock()
	pipesInUse, peakPipes := b.pipesInUse, b.peakPipes
	b.regMu.RUnlock()

	return types.BusStats{
		NoSubscribers:          b.ctr.noSubscribers.Load(),
		MsgSendErrors:          b.ctr.msgSendErrors.Load(),
		MsgReceiveErrors:       b.ctr.msgReceiveErrors.Load(),
		PipeOverflowErrors:     b.ctr.pipeOverflowErrors.Load(),
		MsgLimitErrors:         b.ctr.msgLimitErrors.Load(),
		CreatePipeErrors:       b.ctr.createPipeErrors.Load(),
		SubscribeErrors:        b.ctr.subscribeErrors.Load(),
		DuplicateSubscriptions: b.ctr.duplicateSubscriptions.Load(),
		InternalErrors:         b.ctr.internalErrors.Load(),
		GetPipeIDByNameErrors:  b.ctr.getPipeIDByNameErrors.Load(),

		MsgsSent:      b.ctr.msgsSent.Load(),
		MsgsDelivered: b.ctr.msgsDelivered.Load(),
		MsgsReceived:  b.ctr.msgsReceived.Load(),

		PipesInUse:     pipesInUse,
		PeakPipesInUse: peakPipes,
		MaxPipes:       b.cfg.MaxPipes,

		RoutesInUse:        rs.RoutesInUse,
		PeakRoutesInUse:    rs.PeakRoutesInUse,
		MaxRoutes:          rs.MaxRoutes,
		SubscriptionsInUse: rs.SubscriptionsInUse,
		PeakSubscriptions:  rs.PeakSubscriptions,

		BuffersInUse:     ps.InUse,
		PeakBuffersInUse: ps.PeakInUse,
		BufferCount:      ps.BufferCount,
		MemInUse:         ps.MemInUse,
		PeakMemInUse:     ps.PeakMemInUse,
		PoolExhausted:    ps.Exhausted,
		InvalidHandles:   ps.InvalidHandles + b.ctr.doubleReleases.Load(),
	}
}

// ResetCounters 清零 HK 计数器，峰值重置为当前值
func (b *Bus) ResetCounters() {
	b.ctr.reset()
	b.pool.ResetCounters()
	b.routes.ResetPeaks()

	b.regMu.Lock()
	b.peakPipes = b.pipesInUse
	entries := make([]*pipeEntry, 0, b.pipesInUse)
	for _, s := range b.slots {
		if s.entry != nil {
			entries = append(entries, s.entry)
		}
	}
	b.regMu.Unlock()

	for _, e := range entries {
		e.p.ResetCounters()
	}
}

// pipeIDs 返回当前所有管道标识
func (b *Bus) pipeIDs() []types.PipeID {
	b.regMu.RLock()
	defer b.regMu.RUnlock()

	ids := make([]types.PipeID, 0, b.pipesInUse)
	for i, s := range b.slots {
		if s.entry != nil {
			ids = append(ids, types.NewPipeID(uint16(i), s.gen))
		}
	}
	return ids
}

// Close 删除所有管道并拒绝新建管道
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	for _, id := range b.pipeIDs() {
		if e := b.DeletePipe(id); e != nil && !errors.Is(e, ErrInvalidPipe) {
			err = multierr.Append(err, e)
		}
	}

	if ps := b.pool.Stats(); ps.InUse > 0 {
		logger.Warn("总线关闭时仍有缓冲区未释放", "inUse", ps.InUse)
	}
	logger.Info("软件总线已关闭")
	return err
}
