package app

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/flightbus/go-flightbus/pkg/types"
)

// BootstrapOption Bootstrap 配置选项
type BootstrapOption func(*Bootstrap)

// WithClock 设置时钟，测试中可传入 clock.Mock
func WithClock(clk clock.Clock) BootstrapOption {
	return func(b *Bootstrap) {
		b.clock = clk
	}
}

// WithInstanceID 使用固定的实例标识
func WithInstanceID(id types.InstanceID) BootstrapOption {
	return func(b *Bootstrap) {
		b.instanceID = id
	}
}

// WithFxLogger 设置 fx 事件日志，默认丢弃
func WithFxLogger(l *zap.Logger) BootstrapOption {
	return func(b *Bootstrap) {
		b.fxLogger = l
	}
}

// WithFxOptions 追加 fx 选项
func WithFxOptions(opts ...fx.Option) BootstrapOption {
	return func(b *Bootstrap) {
		b.extra = append(b.extra, opts...)
	}
}

// WithBuildOptions 设置构建选项
func WithBuildOptions(o BuildOptions) BootstrapOption {
	return func(b *Bootstrap) {
		b.opts = o
	}
}

// BuildOptions 构建选项
type BuildOptions struct {
	// StartTimeout 启动超时
	StartTimeout time.Duration

	// StopTimeout 停止超时
	StopTimeout time.Duration
}

// DefaultBuildOptions 默认构建选项
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		StartTimeout: 15 * time.Second,
		StopTimeout:  15 * time.Second,
	}
}
