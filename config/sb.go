package config

import (
	"errors"
	"fmt"
	"time"
)

// SBConfig 软件总线配置
type SBConfig struct {
	// MaxPipes 最多同时存在的管道数量
	MaxPipes int `json:"max_pipes"`

	// MaxPipeDepth 单个管道允许的最大深度
	MaxPipeDepth int `json:"max_pipe_depth"`

	// MaxPipeNameLen 管道名称最大长度
	MaxPipeNameLen int `json:"max_pipe_name_len"`

	// DefaultMsgLimit 未指定限额时每个订阅的默认消息限额
	DefaultMsgLimit int `json:"default_msg_limit"`

	// HighestValidMsgID 最大有效消息标识
	HighestValidMsgID uint32 `json:"highest_valid_msg_id"`

	// DropPolicy 管道满时的丢弃策略："drop-newest" 或 "drop-oldest"
	DropPolicy string `json:"drop_policy"`

	// MaxRoutes 路由表最多 MsgID 数量
	MaxRoutes int `json:"max_routes"`

	// MaxDestsPerMsg 单个 MsgID 最多目的地数量
	MaxDestsPerMsg int `json:"max_dests_per_msg"`

	// BufferCount 缓冲池槽位数量
	BufferCount int `json:"buffer_count"`

	// BufferSize 单个缓冲区字节数，即最大消息长度
	BufferSize int `json:"buffer_size"`

	// EnableCommandTask 启用总线自身的指令/遥测任务
	EnableCommandTask bool `json:"enable_command_task"`

	// SlowConsumerWarnInterval 慢消费者告警的最小间隔
	SlowConsumerWarnInterval Duration `json:"slow_consumer_warn_interval"`
}

// DefaultSBConfig 返回默认软件总线配置
func DefaultSBConfig() SBConfig {
	return SBConfig{
		MaxPipes:                 64,
		MaxPipeDepth:             256,
		MaxPipeNameLen:           20,
		DefaultMsgLimit:          4,
		HighestValidMsgID:        0x1FFF,
		DropPolicy:               "drop-newest",
		MaxRoutes:                256,
		MaxDestsPerMsg:           16,
		BufferCount:              256,
		BufferSize:               32 * 1024,
		EnableCommandTask:        true,
		SlowConsumerWarnInterval: Duration(10 * time.Second),
	}
}

// Validate 验证软件总线配置
func (c SBConfig) Validate() error {
	if c.MaxPipes <= 0 || c.MaxPipes >= 0xFFFF {
		return fmt.Errorf("sb: max pipes must be in [1, 65534], got %d", c.MaxPipes)
	}
	if c.MaxPipeDepth <= 0 {
		return errors.New("sb: max pipe depth must be positive")
	}
	if c.DefaultMsgLimit <= 0 {
		return errors.New("sb: default msg limit must be positive")
	}
	if c.HighestValidMsgID == 0xFFFFFFFF {
		return errors.New("sb: highest valid msg id collides with the invalid id")
	}
	switch c.DropPolicy {
	case "", "drop-newest", "drop-oldest":
	default:
		return fmt.Errorf("sb: unknown drop policy %q", c.DropPolicy)
	}
	if c.MaxRoutes <= 0 || c.MaxDestsPerMsg <= 0 {
		return errors.New("sb: routing limits must be positive")
	}
	if c.BufferCount <= 0 || c.BufferSize <= 0 {
		return errors.New("sb: buffer pool dimensions must be positive")
	}
	if c.SlowConsumerWarnInterval < 0 {
		return errors.New("sb: slow consumer warn interval must not be negative")
	}
	return nil
}
