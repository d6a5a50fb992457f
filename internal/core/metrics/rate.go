package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ============================================================================
// RateMeter - 速率计算器
// ============================================================================

// rateWindow 滑动窗口桶数
const rateWindow = 60

// RateMeter 速率计算器（基于滑动窗口）
//
// 使用 60 个 1 秒桶记录累计计数器的增量，Rate 返回窗口内的平均速率。
// 输入是单调计数器的采样值，计数器被清零时从新值重新计算。
type RateMeter struct {
	clk clock.Clock

	mu       sync.Mutex
	buckets  [rateWindow]uint64
	lastIdx  int
	lastTime time.Time
	lastVal  uint64
	started  time.Time
	sampled  bool
}

// NewRateMeter 创建速率计算器
func NewRateMeter(clk clock.Clock) *RateMeter {
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &RateMeter{clk: clk, lastTime: now, started: now}
}

// advance 将当前桶推进到 now（调用方持有 r.mu）
func (r *RateMeter) advance(now time.Time) {
	elapsed := now.Sub(r.lastTime)
	if elapsed < time.Second {
		return
	}
	seconds := int(elapsed / time.Second)
	if seconds >= rateWindow {
		r.buckets = [rateWindow]uint64{}
		r.lastIdx = 0
	} else {
		for i := 0; i < seconds; i++ {
			r.lastIdx = (r.lastIdx + 1) % rateWindow
			r.buckets[r.lastIdx] = 0
		}
	}
	r.lastTime = r.lastTime.Add(time.Duration(seconds) * time.Second)
}

// Observe 记录计数器当前值
func (r *RateMeter) Observe(total uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance(r.clk.Now())
	if !r.sampled {
		r.sampled = true
		r.lastVal = total
		return
	}
	delta := total
	if total >= r.lastVal {
		delta = total - r.lastVal
	}
	r.lastVal = total
	r.buckets[r.lastIdx] += delta
}

// Rate 返回窗口内的平均速率（次/秒）
//
// 运行不足一个窗口时按已运行时长平均。
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	r.advance(now)

	var total uint64
	for _, v := range r.buckets {
		total += v
	}
	span := now.Sub(r.started).Seconds()
	if span > rateWindow {
		span = rateWindow
	}
	if span < 1 {
		span = 1
	}
	return float64(total) / span
}

// Reset 重置速率计算器
func (r *RateMeter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	r.buckets = [rateWindow]uint64{}
	r.lastIdx = 0
	r.lastTime = now
	r.started = now
	r.sampled = false
}
