package sb

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Params 软件总线依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	Bus         *Bus
	SoftwareBus interfaces.SoftwareBus
	Task        *Task
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("sb",
		fx.Provide(ProvideBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideBus 提供软件总线实例
//
// 配置禁用指令任务时 Task 为 nil。
func ProvideBus(p Params) (Result, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	bus, err := New(cfg, WithClock(p.Clock))
	if err != nil {
		return Result{}, err
	}

	var task *Task
	if cfg.EnableCommandTask {
		task = NewTask(bus)
	}
	return Result{Bus: bus, SoftwareBus: bus, Task: task}, nil
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC   fx.Lifecycle
	Bus  *Bus
	Task *Task
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if input.Task == nil {
				return nil
			}
			return input.Task.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			var err error
			if input.Task != nil {
				err = multierr.Append(err, input.Task.Stop(ctx))
			}
			return multierr.Append(err, input.Bus.Close())
		},
	})
}

// ============================================================================
// 模块元信息
// ============================================================================

const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "sb"
	// Description 模块描述
	Description = "软件总线模块，提供管道、订阅路由和零拷贝引用计数消息传输"
)
