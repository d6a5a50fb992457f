// Package app 提供 flightbus 应用编排层
//
// app 包负责：
// - fx 模块组装
// - 依赖注入协调
// - 生命周期管理
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/internal/core/sb"
	"github.com/flightbus/go-flightbus/internal/debug/introspect"
	"github.com/flightbus/go-flightbus/pkg/lib/log"
	"github.com/flightbus/go-flightbus/pkg/types"
)

var logger = log.Logger("app")

// Bootstrap 应用引导程序
//
// Bootstrap 负责：
// - 验证配置
// - 组装 fx 模块
// - 管理应用生命周期
type Bootstrap struct {
	config     *config.Config
	clock      clock.Clock
	instanceID types.InstanceID
	fxLogger   *zap.Logger
	extra      []fx.Option
	opts       BuildOptions

	fxApp      *fx.App
	bus        *sb.Bus
	registry   *prometheus.Registry
	introspect *introspect.Server
}

// NewBootstrap 创建引导程序
func NewBootstrap(cfg *config.Config, opts ...BootstrapOption) *Bootstrap {
	b := &Bootstrap{
		config: cfg,
		opts:   DefaultBuildOptions(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.config == nil {
		b.config = config.NewConfig()
	}
	if b.clock == nil {
		b.clock = clock.New()
	}
	if b.instanceID == "" {
		b.instanceID = types.NewInstanceID()
	}
	if b.fxLogger == nil {
		b.fxLogger = zap.NewNop()
	}
	return b
}

// Build 构建并启动执行体
//
// 所有模块的 OnStart 在返回前完成；返回的 Runtime 用于访问总线和停止。
func (b *Bootstrap) Build() (*Runtime, error) {
	if err := config.ValidateAll(b.config); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	// 应用日志配置（必须在所有模块初始化之前）
	b.setupLogging()

	b.fxApp = fx.New(
		fx.Options(b.setupModules()...),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: b.fxLogger}
		}),
		fx.Populate(&b.bus, &b.registry, &b.introspect),
	)
	if err := b.fxApp.Err(); err != nil {
		return nil, fmt.Errorf("组装模块失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.opts.StartTimeout)
	defer cancel()
	if err := b.fxApp.Start(ctx); err != nil {
		return nil, fmt.Errorf("启动应用失败: %w", err)
	}

	logger.Info("执行体已启动", "instance", b.instanceID, "pipes", b.bus.Stats().PipesInUse)
	return &Runtime{
		Bus:        b.bus,
		InstanceID: b.instanceID,
		Registry:   b.registry,
		Introspect: b.introspect,
		stop:       b.Stop,
	}, nil
}

// Stop 停止应用
func (b *Bootstrap) Stop(ctx context.Context) error {
	if b.fxApp == nil {
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, b.opts.StopTimeout)
	defer cancel()

	if err := b.fxApp.Stop(stopCtx); err != nil {
		return err
	}
	logger.Info("执行体已停止", "instance", b.instanceID)
	return nil
}

// setupModules 组装所有 fx 模块
func (b *Bootstrap) setupModules() []fx.Option {
	modules := []fx.Option{
		// 配置与运行期标识（Tier 0）
		fx.Supply(b.config, b.instanceID),
		fx.Provide(func() clock.Clock { return b.clock }),

		// 软件总线与指标（Tier 1）
		CoreModules(),

		// 实验应用（Tier 2）
		AppModules(),

		// 诊断（Tier 3）
		DiagnosticsModules(),
	}
	return append(modules, b.extra...)
}

// setupLogging 按统一配置重建日志
//
// 环境变量 FLIGHTBUS_LOG_LEVEL 中的子系统级别保留，配置中的级别规格覆盖默认级别。
func (b *Bootstrap) setupLogging() {
	opts := log.OptionsFromEnv()
	if spec := b.config.Log.Level; spec != "" && os.Getenv("FLIGHTBUS_LOG_LEVEL") == "" {
		log.ParseLevelSpec(&opts, spec)
	}
	if strings.EqualFold(b.config.Log.Format, "json") {
		opts.Format = log.FormatJSON
	}
	log.Setup(opts)
}
