package main

import (
	"os"
	"strings"

	"github.com/flightbus/go-flightbus/config"
)

// 环境变量
const (
	// EnvPreset 预设名称
	EnvPreset = "FLIGHTBUS_PRESET"
	// EnvIntrospectAddr 自省服务地址，设置后启用自省服务
	EnvIntrospectAddr = "FLIGHTBUS_INTROSPECT_ADDR"
	// EnvSinkAddr 遥测下行地址
	EnvSinkAddr = "FLIGHTBUS_TO_SINK"
	// EnvCIListen 指令上行监听地址
	EnvCIListen = "FLIGHTBUS_CI_LISTEN"
	// EnvDropPolicy 总线默认丢弃策略
	EnvDropPolicy = "FLIGHTBUS_DROP_POLICY"
)

// applyEnvOverrides 应用环境变量覆盖
func applyEnvOverrides(cfg *config.Config) {
	if v := env(EnvIntrospectAddr); v != "" {
		cfg.Introspect.Enable = true
		cfg.Introspect.Addr = v
	}
	if v := env(EnvSinkAddr); v != "" {
		cfg.TelemetryOutput.Enable = true
		cfg.TelemetryOutput.SinkAddr = v
		cfg.TelemetryOutput.OutputEnabled = true
	}
	if v := env(EnvCIListen); v != "" {
		cfg.CommandIngest.Enable = true
		cfg.CommandIngest.ListenAddr = v
	}
	if v := env(EnvDropPolicy); v != "" {
		cfg.SB.DropPolicy = v
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
