package sch

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
)

// Params 调度应用依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Bus        interfaces.SoftwareBus
	Clock      clock.Clock `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("sch",
		fx.Provide(ProvideApp),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideApp 提供调度应用，配置禁用时返回 nil
func ProvideApp(p Params) (*App, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enable {
		return nil, nil
	}
	return New(p.Bus, p.Clock, cfg)
}

func registerLifecycle(lc fx.Lifecycle, app *App) {
	if app == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: app.Start,
		OnStop:  app.Stop,
	})
}

// ============================================================================
// 模块元信息
// ============================================================================

const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "sch"
	// Description 模块描述
	Description = "调度实验应用，按节拍发送调度表中的消息"
)
