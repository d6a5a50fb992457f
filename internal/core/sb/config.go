package sb

import (
	"fmt"
	"time"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/internal/core/bufpool"
	"github.com/flightbus/go-flightbus/internal/core/routing"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// Config 软件总线配置
type Config struct {
	MaxPipes          int
	MaxPipeDepth      int
	MaxPipeNameLen    int
	DefaultMsgLimit   int
	HighestValidMsgID types.MsgID
	DropPolicy        types.DropPolicy

	Pool    bufpool.Config
	Routing routing.Config

	// SlowConsumerWarnInterval 丢弃告警的最小间隔
	SlowConsumerWarnInterval time.Duration

	// EnableCommandTask 启用总线指令/遥测任务
	EnableCommandTask bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxPipes:                 64,
		MaxPipeDepth:             256,
		MaxPipeNameLen:           20,
		DefaultMsgLimit:          4,
		HighestValidMsgID:        types.DefaultHighestValidMsgID,
		DropPolicy:               types.DropNewest,
		Pool:                     bufpool.DefaultConfig(),
		Routing:                  routing.DefaultConfig(),
		SlowConsumerWarnInterval: 10 * time.Second,
		EnableCommandTask:        true,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxPipes <= 0 || c.MaxPipes >= 0xFFFF {
		return fmt.Errorf("max pipes must be in [1, 65534], got %d", c.MaxPipes)
	}
	if c.MaxPipeDepth <= 0 {
		return fmt.Errorf("max pipe depth must be positive, got %d", c.MaxPipeDepth)
	}
	if c.MaxPipeNameLen <= 0 {
		return fmt.Errorf("max pipe name length must be positive, got %d", c.MaxPipeNameLen)
	}
	if c.DefaultMsgLimit <= 0 {
		return fmt.Errorf("default msg limit must be positive, got %d", c.DefaultMsgLimit)
	}
	if c.HighestValidMsgID == types.InvalidMsgID {
		return fmt.Errorf("highest valid msg id collides with %s", types.InvalidMsgID)
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	return c.Routing.Validate()
}

// ConfigFromUnified 从统一配置创建总线配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	s := cfg.SB
	policy, ok := types.ParseDropPolicy(s.DropPolicy)
	if !ok {
		logger.Warn("未知丢弃策略，使用默认值", "policy", s.DropPolicy)
	}
	return Config{
		MaxPipes:          s.MaxPipes,
		MaxPipeDepth:      s.MaxPipeDepth,
		MaxPipeNameLen:    s.MaxPipeNameLen,
		DefaultMsgLimit:   s.DefaultMsgLimit,
		HighestValidMsgID: types.MsgID(s.HighestValidMsgID),
		DropPolicy:        policy,
		Pool: bufpool.Config{
			BufferCount: s.BufferCount,
			BufferSize:  s.BufferSize,
		},
		Routing: routing.Config{
			MaxRoutes:      s.MaxRoutes,
			MaxDestsPerMsg: s.MaxDestsPerMsg,
		},
		SlowConsumerWarnInterval: s.SlowConsumerWarnInterval.Duration(),
		EnableCommandTask:        s.EnableCommandTask,
	}
}
