package bufpool

import (
	"fmt"
	"sync"

	"github.com/flightbus/go-flightbus/pkg/lib/log"
)

var logger = log.Logger("core/bufpool")

// Handle 缓冲区句柄
//
// 高 32 位是槽位代数，低 32 位是槽位索引 + 1，零值表示无效句柄。
type Handle uint64

// InvalidHandle 无效句柄
const InvalidHandle Handle = 0

func makeHandle(index int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func (h Handle) index() int {
	return int(uint32(h)) - 1
}

func (h Handle) gen() uint32 {
	return uint32(h >> 32)
}

// String 返回 "index.gen" 形式
func (h Handle) String() string {
	if h == InvalidHandle {
		return "invalid"
	}
	return fmt.Sprintf("%d.%d", h.index(), h.gen())
}

// Config 缓冲池配置
type Config struct {
	// BufferCount 槽位数量
	BufferCount int

	// BufferSize 每个槽位的字节数，应不小于最大消息长度
	BufferSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		BufferCount: 256,
		BufferSize:  32 * 1024,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.BufferCount <= 0 {
		return fmt.Errorf("buffer count must be positive, got %d", c.BufferCount)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.BufferSize)
	}
	return nil
}

// slot 缓冲槽位
type slot struct {
	data  []byte // 固定容量，指向 arena
	used  int    // 本次分配的有效长度
	refs  int32  // 引用计数，0 表示空闲
	gen   uint32 // 槽位代数
	inUse bool
}

// Stats 缓冲池统计
type Stats struct {
	BufferCount    int    `json:"buffer_count"`
	BufferSize     int    `json:"buffer_size"`
	InUse          int    `json:"in_use"`
	PeakInUse      int    `json:"peak_in_use"`
	MemInUse       int    `json:"mem_in_use"`
	PeakMemInUse   int    `json:"peak_mem_in_use"`
	Allocs         uint64 `json:"allocs"`
	Frees          uint64 `json:"frees"`
	Exhausted      uint64 `json:"exhausted"`
	InvalidHandles uint64 `json:"invalid_handles"`
}

// Pool 固定槽位的引用计数缓冲池
type Pool struct {
	mu    sync.Mutex
	cfg   Config
	slots []slot
	free  []int // 空闲槽位栈

	stats Stats
}

// New 创建缓冲池
func New(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	arena := make([]byte, cfg.BufferCount*cfg.BufferSize)
	p := &Pool{
		cfg:   cfg,
		slots: make([]slot, cfg.BufferCount),
		free:  make([]int, 0, cfg.BufferCount),
	}
	for i := range p.slots {
		off := i * cfg.BufferSize
		p.slots[i].data = arena[off : off+cfg.BufferSize : off+cfg.BufferSize]
		p.slots[i].gen = 1
	}
	// 逆序入栈，使低索引先被分配
	for i := cfg.BufferCount - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	p.stats.BufferCount = cfg.BufferCount
	p.stats.BufferSize = cfg.BufferSize

	logger.Debug("缓冲池已创建", "count", cfg.BufferCount, "size", cfg.BufferSize)
	return p, nil
}

// Allocate 分配至少 size 字节的缓冲区，引用计数初始为 1
//
// 没有空闲槽位时立即返回 ErrPoolExhausted，不阻塞。
func (p *Pool) Allocate(size int) (Handle, error) {
	if size <= 0 {
		return InvalidHandle, ErrInvalidSize
	}
	if size > p.cfg.BufferSize {
		return InvalidHandle, fmt.Errorf("%w: %d > %d", ErrBufferTooLarge, size, p.cfg.BufferSize)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		p.stats.Exhausted++
		return InvalidHandle, ErrPoolExhausted
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]

	s := &p.slots[idx]
	s.inUse = true
	s.refs = 1
	s.used = size
	clear(s.data[:size])

	p.stats.Allocs++
	p.stats.InUse++
	p.stats.MemInUse += size
	if p.stats.InUse > p.stats.PeakInUse {
		p.stats.PeakInUse = p.stats.InUse
	}
	if p.stats.MemInUse > p.stats.PeakMemInUse {
		p.stats.PeakMemInUse = p.stats.MemInUse
	}
	return makeHandle(idx, s.gen), nil
}

// lookup 校验句柄，调用方必须持有 p.mu
func (p *Pool) lookup(h Handle) (*slot, error) {
	idx := h.index()
	if h == InvalidHandle || idx < 0 || idx >= len(p.slots) {
		p.stats.InvalidHandles++
		return nil, ErrInvalidHandle
	}
	s := &p.slots[idx]
	if !s.inUse || s.gen != h.gen() || s.refs <= 0 {
		p.stats.InvalidHandles++
		return nil, ErrInvalidHandle
	}
	return s, nil
}

// Retain 引用计数 +1
func (p *Pool) Retain(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.lookup(h)
	if err != nil {
		return err
	}
	s.refs++
	return nil
}

// Release 引用计数 -1，归零时回收槽位
//
// 返回值 freed 表示本次调用是否回收了槽位。对已回收的句柄再次
// 调用返回 ErrInvalidHandle。
func (p *Pool) Release(h Handle) (freed bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.lookup(h)
	if err != nil {
		return false, err
	}
	s.refs--
	if s.refs > 0 {
		return false, nil
	}

	p.stats.Frees++
	p.stats.InUse--
	p.stats.MemInUse -= s.used
	s.inUse = false
	s.used = 0
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	p.free = append(p.free, h.index())
	return true, nil
}

// Bytes 返回缓冲区的有效字节
//
// 返回的切片直接指向池内存储，释放后不得再访问。
func (p *Pool) Bytes(h Handle) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.data[:s.used], nil
}

// RefCount 返回当前引用计数
func (p *Pool) RefCount(h Handle) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.lookup(h)
	if err != nil {
		return 0, err
	}
	return int(s.refs), nil
}

// Valid 检查句柄当前是否有效，不计入无效句柄统计
func (p *Pool) Valid(h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := h.index()
	if h == InvalidHandle || idx < 0 || idx >= len(p.slots) {
		return false
	}
	s := &p.slots[idx]
	return s.inUse && s.gen == h.gen()
}

// BufferSize 返回槽位大小
func (p *Pool) BufferSize() int {
	return p.cfg.BufferSize
}

// Stats 返回统计快照
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// ResetCounters 清零累计计数，保留容量和在用数
func (p *Pool) ResetCounters() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Allocs = 0
	p.stats.Frees = 0
	p.stats.Exhausted = 0
	p.stats.InvalidHandles = 0
	p.stats.PeakInUse = p.stats.InUse
	p.stats.PeakMemInUse = p.stats.MemInUse
}
