package to

import (
	"errors"
	"fmt"
	"time"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// MaxSubscriptions 订阅表最大条目数
const MaxSubscriptions = 64

// Subscription 遥测订阅条目
type Subscription struct {
	MsgID    types.MsgID
	Qos      types.Qos
	BufLimit int
}

// Config 遥测输出应用配置
type Config struct {
	Enable             bool
	SinkAddr           string
	OutputEnabled      bool
	ForwardInterval    time.Duration
	TlmPipeDepth       int
	MaxForwardPerCycle int
	Subscriptions      []Subscription
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.ForwardInterval <= 0 {
		return errors.New("to: forward interval must be positive")
	}
	if c.TlmPipeDepth <= 0 {
		return fmt.Errorf("to: tlm pipe depth must be positive, got %d", c.TlmPipeDepth)
	}
	if c.MaxForwardPerCycle <= 0 {
		return fmt.Errorf("to: max forward per cycle must be positive, got %d", c.MaxForwardPerCycle)
	}
	if len(c.Subscriptions) > MaxSubscriptions {
		return fmt.Errorf("to: %d subscriptions exceeds %d", len(c.Subscriptions), MaxSubscriptions)
	}
	return nil
}

// ConfigFromUnified 从统一配置创建遥测输出配置
func ConfigFromUnified(cfg *config.Config) Config {
	tc := config.DefaultTelemetryOutputConfig()
	if cfg != nil {
		tc = cfg.TelemetryOutput
	}
	out := Config{
		Enable:             tc.Enable,
		SinkAddr:           tc.SinkAddr,
		OutputEnabled:      tc.OutputEnabled,
		ForwardInterval:    tc.ForwardInterval.Duration(),
		TlmPipeDepth:       tc.TlmPipeDepth,
		MaxForwardPerCycle: tc.MaxForwardPerCycle,
		Subscriptions:      make([]Subscription, 0, len(tc.Subscriptions)),
	}
	for _, s := range tc.Subscriptions {
		qos := types.DefaultQos
		if s.Priority == "high" {
			qos.Priority = types.PriorityHigh
		}
		out.Subscriptions = append(out.Subscriptions, Subscription{
			MsgID:    types.MsgID(s.MsgID),
			Qos:      qos,
			BufLimit: s.BufLimit,
		})
	}
	return out
}
