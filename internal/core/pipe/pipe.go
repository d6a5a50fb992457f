package pipe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/flightbus/go-flightbus/internal/core/bufpool"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// Releaser 释放缓冲区引用
//
// *bufpool.Pool 实现该接口。
type Releaser interface {
	Release(h bufpool.Handle) (bool, error)
}

// Entry 队列条目
type Entry struct {
	Handle      bufpool.Handle
	MsgID       types.MsgID
	Reliability types.Reliability
}

// Outcome 入队结果
type Outcome int

const (
	// Delivered 已入队
	Delivered Outcome = iota
	// DroppedMsgLimit 目的地限额已满，新消息被丢弃
	DroppedMsgLimit
	// DroppedPipeFull 管道深度已满，新消息被丢弃
	DroppedPipeFull
	// DroppedDeleting 管道正在删除
	DroppedDeleting
)

// String 返回入队结果的字符串表示
func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case DroppedMsgLimit:
		return "dropped-msg-limit"
	case DroppedPipeFull:
		return "dropped-pipe-full"
	case DroppedDeleting:
		return "dropped-deleting"
	default:
		return "unknown"
	}
}

// Config 管道配置
type Config struct {
	ID       types.PipeID
	Name     string
	Depth    int
	Policy   types.DropPolicy
	Clock    clock.Clock
	Releaser Releaser
}

// Info 管道状态快照
type Info = types.PipeInfo

// Pipe 单消费者有界 FIFO
type Pipe struct {
	id     types.PipeID
	name   string
	policy types.DropPolicy
	clk    clock.Clock
	rel    Releaser

	mu          sync.Mutex
	ring        []Entry
	head        int
	n           int
	outstanding map[types.MsgID]int
	state       types.PipeState

	peak          int
	received      uint64
	dequeued      uint64
	msgLimitDrops uint64
	overflowDrops uint64
	evicted       uint64

	notify  chan struct{}
	closing chan struct{}
}

// New 创建管道
func New(cfg Config) (*Pipe, error) {
	if cfg.Depth <= 0 {
		return nil, fmt.Errorf("pipe depth must be positive, got %d", cfg.Depth)
	}
	if cfg.Releaser == nil {
		return nil, fmt.Errorf("pipe %q: nil releaser", cfg.Name)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Pipe{
		id:          cfg.ID,
		name:        cfg.Name,
		policy:      cfg.Policy,
		clk:         cfg.Clock,
		rel:         cfg.Releaser,
		ring:        make([]Entry, cfg.Depth),
		outstanding: make(map[types.MsgID]int),
		state:       types.PipeCreated,
		notify:      make(chan struct{}, 1),
		closing:     make(chan struct{}),
	}, nil
}

// ID 返回管道标识
func (p *Pipe) ID() types.PipeID { return p.id }

// Name 返回管道名称
func (p *Pipe) Name() string { return p.name }

// ============================================================================
// 环形队列（调用方持有 p.mu）
// ============================================================================

func (p *Pipe) at(i int) Entry {
	return p.ring[(p.head+i)%len(p.ring)]
}

func (p *Pipe) push(e Entry) {
	p.ring[(p.head+p.n)%len(p.ring)] = e
	p.n++
	p.outstanding[e.MsgID]++
	if p.n > p.peak {
		p.peak = p.n
	}
}

// removeAt 删除第 i 个条目，后续条目前移
func (p *Pipe) removeAt(i int) Entry {
	e := p.at(i)
	for j := i; j < p.n-1; j++ {
		p.ring[(p.head+j)%len(p.ring)] = p.at(j + 1)
	}
	p.ring[(p.head+p.n-1)%len(p.ring)] = Entry{}
	p.n--
	p.forget(e.MsgID)
	return e
}

func (p *Pipe) pop() Entry {
	e := p.ring[p.head]
	p.ring[p.head] = Entry{}
	p.head = (p.head + 1) % len(p.ring)
	p.n--
	p.forget(e.MsgID)
	return e
}

func (p *Pipe) forget(m types.MsgID) {
	if c := p.outstanding[m]; c <= 1 {
		delete(p.outstanding, m)
	} else {
		p.outstanding[m] = c - 1
	}
}

// oldestEvictable 找到最旧的可淘汰条目，match 为 nil 表示任意 MsgID
func (p *Pipe) oldestEvictable(match func(Entry) bool) int {
	for i := 0; i < p.n; i++ {
		e := p.at(i)
		if e.Reliability == types.ReliabilityMustDeliver {
			continue
		}
		if match == nil || match(e) {
			return i
		}
	}
	return -1
}

// ============================================================================
// 入队 / 出队
// ============================================================================

// Enqueue 追加一个引用，调用方已为本次入队 Retain
//
// 返回 Delivered 以外的结果时引用未被管道接收，调用方负责释放。
// DropOldest 策略下被淘汰的旧条目由管道自己释放。
func (p *Pipe) Enqueue(e Entry, limit int) Outcome {
	var victim bufpool.Handle

	p.mu.Lock()
	if p.state >= types.PipeDeleting {
		p.mu.Unlock()
		return DroppedDeleting
	}

	if limit > 0 && p.outstanding[e.MsgID] >= limit {
		i := -1
		if p.policy == types.DropOldest {
			i = p.oldestEvictable(func(x Entry) bool { return x.MsgID == e.MsgID })
		}
		if i < 0 {
			p.msgLimitDrops++
			p.mu.Unlock()
			return DroppedMsgLimit
		}
		victim = p.removeAt(i).Handle
		p.evicted++
	} else if p.n >= len(p.ring) {
		i := -1
		if p.policy == types.DropOldest {
			i = p.oldestEvictable(nil)
		}
		if i < 0 {
			p.overflowDrops++
			p.mu.Unlock()
			return DroppedPipeFull
		}
		victim = p.removeAt(i).Handle
		p.evicted++
	}

	p.push(e)
	p.received++
	p.mu.Unlock()

	if victim != bufpool.InvalidHandle {
		_, _ = p.rel.Release(victim)
	}
	p.signal()
	return Delivered
}

func (p *Pipe) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// tryDequeue 非阻塞出队
func (p *Pipe) tryDequeue() (Entry, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state >= types.PipeDeleting {
		return Entry{}, false, ErrPipeDeleted
	}
	if p.n == 0 {
		return Entry{}, false, nil
	}
	e := p.pop()
	p.dequeued++
	p.state = types.PipeActive
	if p.n > 0 {
		p.signal()
	}
	return e, true, nil
}

// Dequeue 按 FIFO 取出一个条目
//
//   - types.Poll：队列为空立即返回 ErrNoMessage
//   - types.PendForever：阻塞直到有条目、ctx 取消或管道删除
//   - 正超时：最多等待该时长，到期返回 ErrTimeout，不会提前返回
func (p *Pipe) Dequeue(ctx context.Context, timeout types.Timeout) (Entry, error) {
	var deadline time.Time
	timed := timeout > 0
	if timed {
		deadline = p.clk.Now().Add(timeout.Duration())
	}

	for {
		e, ok, err := p.tryDequeue()
		if err != nil {
			return Entry{}, err
		}
		if ok {
			return e, nil
		}
		if timeout == types.Poll {
			return Entry{}, ErrNoMessage
		}

		var (
			timer  *clock.Timer
			expire <-chan time.Time
		)
		if timed {
			remaining := deadline.Sub(p.clk.Now())
			if remaining <= 0 {
				return Entry{}, ErrTimeout
			}
			timer = p.clk.Timer(remaining)
			expire = timer.C
		}

		select {
		case <-p.notify:
		case <-expire:
		case <-p.closing:
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return Entry{}, ctx.Err()
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// ============================================================================
// 生命周期
// ============================================================================

// BeginDelete 进入 Deleting 状态：拒绝后续入队并唤醒等待者
func (p *Pipe) BeginDelete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state >= types.PipeDeleting {
		return
	}
	p.state = types.PipeDeleting
	close(p.closing)
}

// Destroy 释放所有排队引用并进入 Destroyed 状态，返回释放数量
func (p *Pipe) Destroy() int {
	p.mu.Lock()
	if p.state < types.PipeDeleting {
		p.state = types.PipeDeleting
		close(p.closing)
	}
	if p.state == types.PipeDestroyed {
		p.mu.Unlock()
		return 0
	}
	pending := make([]bufpool.Handle, 0, p.n)
	for p.n > 0 {
		pending = append(pending, p.pop().Handle)
	}
	p.state = types.PipeDestroyed
	p.mu.Unlock()

	for _, h := range pending {
		_, _ = p.rel.Release(h)
	}
	return len(pending)
}

// State 返回当前状态
func (p *Pipe) State() types.PipeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Len 返回当前队列长度
func (p *Pipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// Info 返回状态快照
func (p *Pipe) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Info{
		ID:            p.id,
		Name:          p.name,
		State:         p.state,
		Policy:        p.policy,
		Depth:         len(p.ring),
		CurrentDepth:  p.n,
		PeakDepth:     p.peak,
		Received:      p.received,
		Dequeued:      p.dequeued,
		Dropped:       p.msgLimitDrops + p.overflowDrops + p.evicted,
		MsgLimitDrops: p.msgLimitDrops,
		OverflowDrops: p.overflowDrops,
		Evicted:       p.evicted,
	}
}

// ResetCounters 清零累计计数
func (p *Pipe) ResetCounters() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.received = 0
	p.dequeued = 0
	p.msgLimitDrops = 0
	p.overflowDrops = 0
	p.evicted = 0
	p.peak = p.n
}
