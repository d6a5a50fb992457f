package ci

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
)

// Params 指令注入应用依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Bus        interfaces.SoftwareBus
	Clock      clock.Clock `optional:"true"`
	Listener   Listener    `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("ci",
		fx.Provide(ProvideApp),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideApp 提供指令注入应用，配置禁用时返回 nil
func ProvideApp(p Params) (*App, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enable {
		return nil, nil
	}
	var opts []Option
	if p.Listener != nil {
		opts = append(opts, WithListener(p.Listener))
	}
	return New(p.Bus, p.Clock, cfg, opts...)
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
	Name = "ci"
	// Description 模块描述
	Description = "指令注入实验应用，把 UDP 上行数据报零拷贝发布到总线"
)
