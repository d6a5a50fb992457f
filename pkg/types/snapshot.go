package types

// ============================================================================
//                              诊断快照
// ============================================================================

// PipeInfo 管道状态快照
type PipeInfo struct {
	ID            PipeID     `json:"id"`
	Name          string     `json:"name"`
	State         PipeState  `json:"state"`
	Policy        DropPolicy `json:"policy"`
	Depth         int        `json:"depth"`
	CurrentDepth  int        `json:"current_depth"`
	PeakDepth     int        `json:"peak_depth"`
	Received      uint64     `json:"received"`
	Dequeued      uint64     `json:"dequeued"`
	Dropped       uint64     `json:"dropped"`
	MsgLimitDrops uint64     `json:"msg_limit_drops"`
	OverflowDrops uint64     `json:"overflow_drops"`
	Evicted       uint64     `json:"evicted"`
}

// Destination 一个 MsgID 的订阅目的地
type Destination struct {
	PipeID   PipeID `json:"pipe_id"`
	Qos      Qos    `json:"qos"`
	MsgLimit int    `json:"msg_limit"`
	Active   bool   `json:"active"`
}

// RouteInfo 路由快照
type RouteInfo struct {
	MsgID        MsgID         `json:"msg_id"`
	Sequence     uint16        `json:"sequence"`
	Destinations []Destination `json:"destinations"`
}

// BusStats 软件总线统计
//
// 错误计数对应 HK 遥测中的计数器，容量字段对应统计遥测。
type BusStats struct {
	// 错误计数
	NoSubscribers          uint64 `json:"no_subscribers"`
	MsgSendErrors          uint64 `json:"msg_send_errors"`
	MsgReceiveErrors       uint64 `json:"msg_receive_errors"`
	PipeOverflowErrors     uint64 `json:"pipe_overflow_errors"`
	MsgLimitErrors         uint64 `json:"msg_limit_errors"`
	CreatePipeErrors       uint64 `json:"create_pipe_errors"`
	SubscribeErrors        uint64 `json:"subscribe_errors"`
	DuplicateSubscriptions uint64 `json:"duplicate_subscriptions"`
	InternalErrors         uint64 `json:"internal_errors"`
	GetPipeIDByNameErrors  uint64 `json:"get_pipe_id_by_name_errors"`

	// 吞吐
	MsgsSent      uint64 `json:"msgs_sent"`
	MsgsDelivered uint64 `json:"msgs_delivered"`
	MsgsReceived  uint64 `json:"msgs_received"`

	// 管道
	PipesInUse     int `json:"pipes_in_use"`
	PeakPipesInUse int `json:"peak_pipes_in_use"`
	MaxPipes       int `json:"max_pipes"`

	// 路由
	RoutesInUse        int `json:"routes_in_use"`
	PeakRoutesInUse    int `json:"peak_routes_in_use"`
	MaxRoutes          int `json:"max_routes"`
	SubscriptionsInUse int `json:"subscriptions_in_use"`
	PeakSubscriptions  int `json:"peak_subscriptions"`

	// 缓冲池
	BuffersInUse     int    `json:"buffers_in_use"`
	PeakBuffersInUse int    `json:"peak_buffers_in_use"`
	BufferCount      int    `json:"buffer_count"`
	MemInUse         int    `json:"mem_in_use"`
	PeakMemInUse     int    `json:"peak_mem_in_use"`
	PoolExhausted    uint64 `json:"pool_exhausted"`
	InvalidHandles   uint64 `json:"invalid_handles"`
}
