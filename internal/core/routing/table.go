package routing

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/flightbus/go-flightbus/pkg/lib/log"
	"github.com/flightbus/go-flightbus/pkg/types"
)

var logger = log.Logger("core/routing")

// SequenceMask 序列计数器位宽（14 位，与 CCSDS 主头一致）
const SequenceMask = 0x3FFF

// Config 路由表配置
type Config struct {
	// MaxRoutes 最多可路由的不同 MsgID 数量
	MaxRoutes int

	// MaxDestsPerMsg 单个 MsgID 最多目的地数量
	MaxDestsPerMsg int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxRoutes:      256,
		MaxDestsPerMsg: 16,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxRoutes <= 0 {
		return fmt.Errorf("max routes must be positive, got %d", c.MaxRoutes)
	}
	if c.MaxDestsPerMsg <= 0 {
		return fmt.Errorf("max destinations per msg must be positive, got %d", c.MaxDestsPerMsg)
	}
	return nil
}

// Destination 一个 MsgID 的订阅目的地
type Destination = types.Destination

// route 单个 MsgID 的路由
type route struct {
	dests []Destination
	seq   atomic.Uint32
}

// insert 按优先级分区插入，同一优先级内追加到末尾
func (r *route) insert(d Destination) {
	if d.Qos.Priority != types.PriorityHigh {
		r.dests = append(r.dests, d)
		return
	}
	pos := 0
	for pos < len(r.dests) && r.dests[pos].Qos.Priority == types.PriorityHigh {
		pos++
	}
	r.dests = slices.Insert(r.dests, pos, d)
}

func (r *route) find(pipeID types.PipeID) int {
	for i := range r.dests {
		if r.dests[i].PipeID == pipeID {
			return i
		}
	}
	return -1
}

// SubscribeResult 订阅结果
type SubscribeResult struct {
	// Duplicate 该 (MsgID, PipeID) 已存在，本次只更新了策略
	Duplicate bool

	// NewRoute 本次订阅创建了新的 MsgID 路由
	NewRoute bool
}

// Stats 路由表统计
type Stats struct {
	RoutesInUse        int `json:"routes_in_use"`
	PeakRoutesInUse    int `json:"peak_routes_in_use"`
	MaxRoutes          int `json:"max_routes"`
	SubscriptionsInUse int `json:"subscriptions_in_use"`
	PeakSubscriptions  int `json:"peak_subscriptions"`
	MaxDestsPerMsg     int `json:"max_dests_per_msg"`
}

// RouteInfo 路由快照
type RouteInfo = types.RouteInfo

// Table 路由表
type Table struct {
	mu     sync.RWMutex
	cfg    Config
	routes map[types.MsgID]*route

	subs      int
	peakSubs  int
	peakRoute int
}

// New 创建路由表
func New(cfg Config) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Table{
		cfg:    cfg,
		routes: make(map[types.MsgID]*route, cfg.MaxRoutes),
	}, nil
}

// Subscribe 插入或更新 (msgID, pipeID) 目的地
//
// check 在写锁内执行，用于校验管道仍然有效；返回错误时不做任何修改。
// 同一 (msgID, pipeID) 再次订阅只更新 Qos 和 MsgLimit，不会重复插入。
func (t *Table) Subscribe(msgID types.MsgID, pipeID types.PipeID, qos types.Qos, limit int, check func() error) (SubscribeResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if check != nil {
		if err := check(); err != nil {
			return SubscribeResult{}, err
		}
	}

	r, ok := t.routes[msgID]
	if ok {
		if i := r.find(pipeID); i >= 0 {
			d := r.dests[i]
			priorityChanged := d.Qos.Priority != qos.Priority
			d.Qos = qos
			d.MsgLimit = limit
			if priorityChanged {
				r.dests = slices.Delete(r.dests, i, i+1)
				r.insert(d)
			} else {
				r.dests[i] = d
			}
			logger.Debug("订阅已存在，更新策略", "msgID", msgID, "pipe", pipeID, "qos", qos, "limit", limit)
			return SubscribeResult{Duplicate: true}, nil
		}
		if len(r.dests) >= t.cfg.MaxDestsPerMsg {
			return SubscribeResult{}, fmt.Errorf("%w: msg %s has %d", ErrMaxDestinations, msgID, len(r.dests))
		}
	} else {
		if len(t.routes) >= t.cfg.MaxRoutes {
			return SubscribeResult{}, fmt.Errorf("%w: %d routes", ErrRouteTableFull, len(t.routes))
		}
		r = &route{dests: make([]Destination, 0, 4)}
		t.routes[msgID] = r
		if len(t.routes) > t.peakRoute {
			t.peakRoute = len(t.routes)
		}
	}

	r.insert(Destination{PipeID: pipeID, Qos: qos, MsgLimit: limit, Active: true})
	t.subs++
	if t.subs > t.peakSubs {
		t.peakSubs = t.subs
	}
	return SubscribeResult{NewRoute: !ok}, nil
}

// Unsubscribe 删除 (msgID, pipeID) 目的地
//
// 目的地不存在时是空操作，返回 false。
func (t *Table) Unsubscribe(msgID types.MsgID, pipeID types.PipeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.routes[msgID]
	if !ok {
		return false
	}
	i := r.find(pipeID)
	if i < 0 {
		return false
	}
	r.dests = slices.Delete(r.dests, i, i+1)
	t.subs--
	if len(r.dests) == 0 {
		delete(t.routes, msgID)
	}
	return true
}

// RemovePipe 删除所有指向 pipeID 的目的地，返回删除数量
//
// during 在同一写锁内、删除之前执行（用于注销管道），
// 保证并发的 Deliver 不会看到半销毁的管道。
func (t *Table) RemovePipe(pipeID types.PipeID, during func()) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if during != nil {
		during()
	}

	removed := 0
	for msgID, r := range t.routes {
		i := r.find(pipeID)
		if i < 0 {
			continue
		}
		r.dests = slices.Delete(r.dests, i, i+1)
		removed++
		if len(r.dests) == 0 {
			delete(t.routes, msgID)
		}
	}
	t.subs -= removed
	return removed
}

// Lookup 返回 msgID 当前的目的地列表副本（可能为空）
func (t *Table) Lookup(msgID types.MsgID) []Destination {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.routes[msgID]
	if !ok {
		return nil
	}
	return slices.Clone(r.dests)
}

// Deliver 在读锁内按顺序对每个启用的目的地调用 fn，返回调用次数
//
// fn 不得回调路由表的写操作。
func (t *Table) Deliver(msgID types.MsgID, fn func(Destination)) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.routes[msgID]
	if !ok {
		return 0
	}
	n := 0
	for _, d := range r.dests {
		if !d.Active {
			continue
		}
		fn(d)
		n++
	}
	return n
}

// NextSequence 递增并返回 msgID 的序列计数器
//
// 路由不存在时返回 false。
func (t *Table) NextSequence(msgID types.MsgID) (uint16, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.routes[msgID]
	if !ok {
		return 0, false
	}
	return uint16(r.seq.Add(1) & SequenceMask), true
}

// SetActive 启用或禁用某个目的地，禁用的目的地保留订阅但不投递
func (t *Table) SetActive(msgID types.MsgID, pipeID types.PipeID, active bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.routes[msgID]
	if !ok {
		return fmt.Errorf("%w: msg %s", ErrNoSuchRoute, msgID)
	}
	i := r.find(pipeID)
	if i < 0 {
		return fmt.Errorf("%w: msg %s pipe %s", ErrNoSuchRoute, msgID, pipeID)
	}
	r.dests[i].Active = active
	return nil
}

// PipeSubscriptions 返回 pipeID 订阅的所有 MsgID（升序）
func (t *Table) PipeSubscriptions(pipeID types.PipeID) []types.MsgID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []types.MsgID
	for msgID, r := range t.routes {
		if r.find(pipeID) >= 0 {
			out = append(out, msgID)
		}
	}
	slices.Sort(out)
	return out
}

// Routes 返回全部路由的快照（按 MsgID 升序）
func (t *Table) Routes() []RouteInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RouteInfo, 0, len(t.routes))
	for msgID, r := range t.routes {
		out = append(out, RouteInfo{
			MsgID:        msgID,
			Sequence:     uint16(r.seq.Load() & SequenceMask),
			Destinations: slices.Clone(r.dests),
		})
	}
	slices.SortFunc(out, func(a, b RouteInfo) int {
		return cmp.Compare(a.MsgID, b.MsgID)
	})
	return out
}

// Stats 返回统计快照
func (t *Table) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Stats{
		RoutesInUse:        len(t.routes),
		PeakRoutesInUse:    t.peakRoute,
		MaxRoutes:          t.cfg.MaxRoutes,
		SubscriptionsInUse: t.subs,
		PeakSubscriptions:  t.peakSubs,
		MaxDestsPerMsg:     t.cfg.MaxDestsPerMsg,
	}
}

// ResetPeaks 把峰值重置为当前值
func (t *Table) ResetPeaks() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.peakRoute = len(t.routes)
	t.peakSubs = t.subs
}
