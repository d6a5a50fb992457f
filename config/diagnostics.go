package config

import "errors"

// IntrospectConfig 诊断服务配置
type IntrospectConfig struct {
	// Enable 启用自省服务
	Enable bool `json:"enable"`

	// Addr 自省服务监听地址
	// 默认 "127.0.0.1:6060"
	Addr string `json:"addr"`
}

// DefaultIntrospectConfig 返回默认诊断配置
func DefaultIntrospectConfig() IntrospectConfig {
	return IntrospectConfig{
		Enable: false, // 默认禁用
		Addr:   "127.0.0.1:6060",
	}
}

// Validate 验证诊断配置
func (c IntrospectConfig) Validate() error {
	if c.Enable && c.Addr == "" {
		return errors.New("introspect: addr is required when enabled")
	}
	return nil
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别规格，例如 "info" 或 "warn,core/sb=debug"
	Level string `json:"level"`

	// Format 输出格式："text" 或 "json"
	Format string `json:"format"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	switch c.Format {
	case "", "text", "json":
		return nil
	default:
		return errors.New("log: format must be text or json")
	}
}
