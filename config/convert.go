package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "sb": {"max_pipes": 32, "drop_policy": "drop-oldest"},
//	  "scheduler": {"tick_rate": 100},
//	  "introspect": {"enable": true}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置并验证
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "minimal": 小缓冲池，仅软件总线，适合测试
//   - "default": 默认配置
//   - "large": 大缓冲池和路由表，适合地面测试台
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch presetName {
	case "minimal":
		return applyMinimalPreset(cfg)
	case "default":
		*cfg = *NewConfig()
		return nil
	case "large":
		return applyLargePreset(cfg)
	case "":
		return nil
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
}

// applyMinimalPreset 应用最小预设
//
//   - 最低内存占用
//   - 关闭所有实验应用
func applyMinimalPreset(cfg *Config) error {
	cfg.SB.MaxPipes = 8
	cfg.SB.MaxPipeDepth = 16
	cfg.SB.MaxRoutes = 32
	cfg.SB.MaxDestsPerMsg = 4
	cfg.SB.BufferCount = 32
	cfg.SB.BufferSize = 1024

	cfg.Scheduler.Enable = false
	cfg.TelemetryOutput.Enable = false
	cfg.CommandIngest.Enable = false
	cfg.Introspect.Enable = false
	return nil
}

// applyLargePreset 应用大容量预设
func applyLargePreset(cfg *Config) error {
	cfg.SB.MaxPipes = 256
	cfg.SB.MaxPipeDepth = 1024
	cfg.SB.MaxRoutes = 1024
	cfg.SB.MaxDestsPerMsg = 32
	cfg.SB.BufferCount = 1024
	cfg.SB.BufferSize = 64 * 1024
	cfg.SB.SlowConsumerWarnInterval = Duration(30 * time.Second)

	cfg.TelemetryOutput.TlmPipeDepth = 256
	cfg.TelemetryOutput.MaxForwardPerCycle = 128
	return nil
}

// CloneConfig 深拷贝配置
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	cloned.Scheduler.Entries = slices.Clone(cfg.Scheduler.Entries)
	cloned.TelemetryOutput.Subscriptions = slices.Clone(cfg.TelemetryOutput.Subscriptions)
	return &cloned
}
