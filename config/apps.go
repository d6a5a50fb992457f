package config

import (
	"errors"
	"fmt"
	"time"
)

// ════════════════════════════════════════════════════════════════════════════
// 调度应用
// ════════════════════════════════════════════════════════════════════════════

// ScheduleEntry 调度表条目
type ScheduleEntry struct {
	// MsgID 要发送的消息标识
	MsgID uint32 `json:"msg_id"`

	// PacketRate 每多少个节拍发送一次，0 表示禁用
	PacketRate int `json:"packet_rate"`

	// FcnCode 消息功能码
	FcnCode uint16 `json:"fcn_code"`
}

// SchedulerConfig 调度应用配置
type SchedulerConfig struct {
	// Enable 启用调度应用
	Enable bool `json:"enable"`

	// TickRate 每秒节拍数
	TickRate int `json:"tick_rate"`

	// SyncMsgID 外部同步消息（1Hz），为 0 时不等待同步
	SyncMsgID uint32 `json:"sync_msg_id,omitempty"`

	// Entries 调度表
	Entries []ScheduleEntry `json:"entries"`
}

// DefaultSchedulerConfig 返回默认调度配置
//
// 默认调度表按 1Hz 向各应用发送 HK 请求。
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enable:   true,
		TickRate: 10,
		Entries: []ScheduleEntry{
			{MsgID: 0x180B, PacketRate: 10}, // SB HK
			{MsgID: 0x1881, PacketRate: 10}, // TO HK
			{MsgID: 0x1885, PacketRate: 10}, // CI HK
			{MsgID: 0x1896, PacketRate: 10}, // SCH HK
		},
	}
}

// Validate 验证调度配置
func (c SchedulerConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.TickRate <= 0 || c.TickRate > 1000 {
		return fmt.Errorf("scheduler: tick rate must be in [1, 1000], got %d", c.TickRate)
	}
	for i, e := range c.Entries {
		if e.PacketRate < 0 {
			return fmt.Errorf("scheduler: entry %d has negative packet rate", i)
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
// 遥测输出应用
// ════════════════════════════════════════════════════════════════════════════

// TlmSubscription 遥测订阅条目
type TlmSubscription struct {
	MsgID    uint32 `json:"msg_id"`
	Priority string `json:"priority,omitempty"`
	BufLimit int    `json:"buf_limit"`
}

// TelemetryOutputConfig 遥测输出应用配置
type TelemetryOutputConfig struct {
	// Enable 启用遥测输出应用
	Enable bool `json:"enable"`

	// SinkAddr UDP 下行地址，为空时丢弃输出
	SinkAddr string `json:"sink_addr"`

	// OutputEnabled 启动时是否立即开始输出
	OutputEnabled bool `json:"output_enabled"`

	// ForwardInterval 转发循环周期
	ForwardInterval Duration `json:"forward_interval"`

	// TlmPipeDepth 遥测管道深度
	TlmPipeDepth int `json:"tlm_pipe_depth"`

	// MaxForwardPerCycle 每个周期最多转发的消息数
	MaxForwardPerCycle int `json:"max_forward_per_cycle"`

	// Subscriptions 遥测订阅表
	Subscriptions []TlmSubscription `json:"subscriptions"`
}

// DefaultTelemetryOutputConfig 返回默认遥测输出配置
func DefaultTelemetryOutputConfig() TelemetryOutputConfig {
	return TelemetryOutputConfig{
		Enable:             true,
		SinkAddr:           "",
		OutputEnabled:      false,
		ForwardInterval:    Duration(500 * time.Millisecond),
		TlmPipeDepth:       64,
		MaxForwardPerCycle: 32,
		Subscriptions: []TlmSubscription{
			{MsgID: 0x0803, BufLimit: 4}, // SB HK
			{MsgID: 0x080A, BufLimit: 4}, // SB 统计
			{MsgID: 0x0880, BufLimit: 4}, // TO HK
			{MsgID: 0x0884, BufLimit: 4}, // CI HK
			{MsgID: 0x0896, BufLimit: 4}, // SCH HK
		},
	}
}

// Validate 验证遥测输出配置
func (c TelemetryOutputConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.ForwardInterval <= 0 {
		return errors.New("telemetry output: forward interval must be positive")
	}
	if c.TlmPipeDepth <= 0 || c.MaxForwardPerCycle <= 0 {
		return errors.New("telemetry output: pipe depth and forward limit must be positive")
	}
	for i, s := range c.Subscriptions {
		switch s.Priority {
		case "", "low", "high":
		default:
			return fmt.Errorf("telemetry output: subscription %d has unknown priority %q", i, s.Priority)
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
// 指令注入应用
// ════════════════════════════════════════════════════════════════════════════

// CommandIngestConfig 指令注入应用配置
type CommandIngestConfig struct {
	// Enable 启用指令注入应用
	Enable bool `json:"enable"`

	// ListenAddr UDP 监听地址
	ListenAddr string `json:"listen_addr"`

	// MaxIngest 单个数据报最大长度
	MaxIngest int `json:"max_ingest"`

	// ReadTimeout 单次读取超时，超时后检查指令管道
	ReadTimeout Duration `json:"read_timeout"`
}

// DefaultCommandIngestConfig 返回默认指令注入配置
func DefaultCommandIngestConfig() CommandIngestConfig {
	return CommandIngestConfig{
		Enable:      false,
		ListenAddr:  "127.0.0.1:1234",
		MaxIngest:   768,
		ReadTimeout: Duration(500 * time.Millisecond),
	}
}

// Validate 验证指令注入配置
func (c CommandIngestConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.ListenAddr == "" {
		return errors.New("command ingest: listen addr is required")
	}
	if c.MaxIngest <= 0 {
		return errors.New("command ingest: max ingest must be positive")
	}
	if c.ReadTimeout <= 0 {
		return errors.New("command ingest: read timeout must be positive")
	}
	return nil
}
