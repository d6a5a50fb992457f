// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载配置
//   - 支持预设配置（minimal/default/large）
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.SB.MaxPipes = 32
//
//	// 应用预设
//	config.ApplyPreset(cfg, "minimal")
//
//	// 从 JSON 文件加载
//	cfg, err := config.LoadFile("flightbus.json")
package config

// Config 是 flightbus 的完整配置结构
//
// 配置按照功能模块组织：
//   - SB: 软件总线（管道、路由表、缓冲池）
//   - Scheduler: 调度实验应用
//   - TelemetryOutput: 遥测输出实验应用
//   - CommandIngest: 指令注入实验应用
//   - Introspect: 诊断 HTTP 服务
//   - Log: 日志
type Config struct {
	// SB 软件总线配置
	SB SBConfig `json:"sb"`

	// Scheduler 调度应用配置
	Scheduler SchedulerConfig `json:"scheduler"`

	// TelemetryOutput 遥测输出应用配置
	TelemetryOutput TelemetryOutputConfig `json:"telemetry_output"`

	// CommandIngest 指令注入应用配置
	CommandIngest CommandIngestConfig `json:"command_ingest"`

	// Introspect 诊断服务配置
	Introspect IntrospectConfig `json:"introspect"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		SB:              DefaultSBConfig(),
		Scheduler:       DefaultSchedulerConfig(),
		TelemetryOutput: DefaultTelemetryOutputConfig(),
		CommandIngest:   DefaultCommandIngestConfig(),
		Introspect:      DefaultIntrospectConfig(),
		Log:             DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
//
// 依次检查所有子配置，返回第一个错误。
func (c *Config) Validate() error {
	if err := c.SB.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if err := c.TelemetryOutput.Validate(); err != nil {
		return err
	}
	if err := c.CommandIngest.Validate(); err != nil {
		return err
	}
	if err := c.Introspect.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
