// Package main 提供 flightbus 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/flightbus/go-flightbus"
	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/internal/app"
	"github.com/flightbus/go-flightbus/pkg/lib/log"
)

var logger = log.Logger("cmd/flightbus")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//	命令行参数：运行时覆盖（「这次运行」想怎么跑）
//	JSON 配置文件：持久化配置（管道容量、调度表、遥测订阅）
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "配置文件路径")
	preset     = flag.String("preset", "", "预设配置 (minimal/default/large)")
	logLevel   = flag.String("log-level", "", "日志级别规格，例如 info 或 warn,core/sb=debug")
	introspect = flag.String("introspect", "", "自省服务监听地址，为空时按配置")
	sinkAddr   = flag.String("sink", "", "遥测下行 UDP 地址，设置后立即开始输出")
	ciListen   = flag.String("ci-listen", "", "指令上行 UDP 监听地址，设置后启用指令注入")
	fxLog      = flag.Bool("fx-log", false, "输出 fx 依赖注入事件")

	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(flightbus.VersionInfo())
		return nil
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	logger.Info("启动 flightbus 执行体", "version", flightbus.Version, "commit", flightbus.GitCommit)
	exec, err := flightbus.Start(context.Background(), opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = exec.Close() }()

	printInfo(exec)
	fmt.Println("执行体已启动，按 Ctrl+C 退出")
	app.WaitForSignal(context.Background())

	fmt.Println("\n正在关闭执行体...")
	return nil
}

// buildOptions 构建选项
//
// 配置优先级（从高到低）：
//  1. 命令行参数
//  2. 环境变量（FLIGHTBUS_* 前缀）
//  3. 配置文件
//  4. 预设默认值
func buildOptions() ([]flightbus.Option, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadFile(*configFile); err != nil {
			return nil, err
		}
	}

	presetName := *preset
	if presetName == "" {
		presetName = os.Getenv(EnvPreset)
	}
	if err := config.ApplyPreset(cfg, presetName); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if *introspect != "" {
		cfg.Introspect.Enable = true
		cfg.Introspect.Addr = *introspect
	}
	if *sinkAddr != "" {
		cfg.TelemetryOutput.Enable = true
		cfg.TelemetryOutput.SinkAddr = *sinkAddr
		cfg.TelemetryOutput.OutputEnabled = true
	}
	if *ciListen != "" {
		cfg.CommandIngest.Enable = true
		cfg.CommandIngest.ListenAddr = *ciListen
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	opts := []flightbus.Option{flightbus.WithConfig(cfg)}
	if *fxLog {
		zl, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		opts = append(opts, flightbus.WithFxLogger(zl))
	}
	return opts, nil
}

// printInfo 显示执行体信息
func printInfo(exec *flightbus.Executive) {
	stats := exec.Stats()
	fmt.Printf("📦 %s\n", flightbus.VersionInfo())
	fmt.Printf("   实例:   %s\n", exec.InstanceID())
	fmt.Printf("   管道:   %d/%d\n", stats.PipesInUse, stats.MaxPipes)
	fmt.Printf("   缓冲区: %d\n", stats.BufferCount)
	if addr := exec.IntrospectAddr(); addr != "" {
		fmt.Printf("   自省:   http://%s/debug/sb\n", addr)
	}
}
