package config

import (
	"errors"
	"fmt"
)

// ValidateAll 验证整个配置，包括子配置之间的兼容性
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return ValidateCompatibility(c)
}

// ValidateCompatibility 验证子配置之间的兼容性
//
// 检查：
//   - 应用管道深度不超过总线允许的最大深度
//   - 指令注入的最大长度不超过缓冲区大小
//   - 调度表与遥测订阅的 MsgID 在有效范围内
func ValidateCompatibility(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.TelemetryOutput.Enable && c.TelemetryOutput.TlmPipeDepth > c.SB.MaxPipeDepth {
		return fmt.Errorf("telemetry output pipe depth %d exceeds sb max pipe depth %d",
			c.TelemetryOutput.TlmPipeDepth, c.SB.MaxPipeDepth)
	}
	if c.CommandIngest.Enable && c.CommandIngest.MaxIngest > c.SB.BufferSize {
		return fmt.Errorf("command ingest max %d exceeds sb buffer size %d",
			c.CommandIngest.MaxIngest, c.SB.BufferSize)
	}
	if c.Scheduler.Enable {
		for i, e := range c.Scheduler.Entries {
			if e.MsgID > c.SB.HighestValidMsgID {
				return fmt.Errorf("scheduler entry %d: msg id 0x%04X out of range", i, e.MsgID)
			}
		}
	}
	if c.TelemetryOutput.Enable {
		for i, s := range c.TelemetryOutput.Subscriptions {
			if s.MsgID > c.SB.HighestValidMsgID {
				return fmt.Errorf("telemetry subscription %d: msg id 0x%04X out of range", i, s.MsgID)
			}
		}
	}
	return nil
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := ValidateAll(c); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}
