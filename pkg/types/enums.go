package types

// ============================================================================
//                              Priority - 投递优先级
// ============================================================================

// Priority 投递优先级
//
// 同一 MsgID 的目的地中，PriorityHigh 的目的地先于 PriorityLow 投递；
// 同一优先级内按订阅顺序投递。
type Priority uint8

const (
	// PriorityLow 普通优先级（默认）
	PriorityLow Priority = iota
	// PriorityHigh 高优先级
	PriorityHigh
)

// String 返回优先级的字符串表示
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Reliability - 可靠性
// ============================================================================

// Reliability 投递可靠性
type Reliability uint8

const (
	// ReliabilityBestEffort 尽力投递（默认），可被丢弃最旧策略淘汰
	ReliabilityBestEffort Reliability = iota
	// ReliabilityMustDeliver 必须投递，已入队的条目不会被淘汰
	ReliabilityMustDeliver
)

// String 返回可靠性的字符串表示
func (r Reliability) String() string {
	switch r {
	case ReliabilityBestEffort:
		return "best-effort"
	case ReliabilityMustDeliver:
		return "must-deliver"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              DropPolicy - 丢弃策略
// ============================================================================

// DropPolicy 目的地队列满时的丢弃策略
type DropPolicy int

const (
	// DropNewest 拒绝新到达的消息（默认）
	DropNewest DropPolicy = iota
	// DropOldest 淘汰最旧的可淘汰消息，接收新消息
	DropOldest
)

// String 返回丢弃策略的字符串表示
func (d DropPolicy) String() string {
	switch d {
	case DropNewest:
		return "drop-newest"
	case DropOldest:
		return "drop-oldest"
	default:
		return "unknown"
	}
}

// ParseDropPolicy 解析丢弃策略名称，未知名称返回 false
func ParseDropPolicy(s string) (DropPolicy, bool) {
	switch s {
	case "", "drop-newest", "newest":
		return DropNewest, true
	case "drop-oldest", "oldest":
		return DropOldest, true
	default:
		return DropNewest, false
	}
}

// ============================================================================
//                              PipeState - 管道状态
// ============================================================================

// PipeState 管道生命周期状态
//
// Created → Active → Deleting → Destroyed
type PipeState int32

const (
	// PipeCreated 已创建，尚未接收过消息
	PipeCreated PipeState = iota
	// PipeActive 已开始接收
	PipeActive
	// PipeDeleting 删除中，不再接受入队
	PipeDeleting
	// PipeDestroyed 已销毁
	PipeDestroyed
)

// String 返回管道状态的字符串表示
func (s PipeState) String() string {
	switch s {
	case PipeCreated:
		return "created"
	case PipeActive:
		return "active"
	case PipeDeleting:
		return "deleting"
	case PipeDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
