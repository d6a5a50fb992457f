package to

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/flightbus/go-flightbus/config"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
)

// Params 遥测输出应用依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Bus        interfaces.SoftwareBus
	Clock      clock.Clock `optional:"true"`
	Dialer     Dialer      `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("to",
		fx.Provide(ProvideApp),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideApp 提供遥测输出应用，配置禁用时返回 nil
func ProvideApp(p Params) (*App, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if !cfg.Enable {
		return nil, nil
	}
	var opts []Option
	if p.Dialer != nil {
		opts = append(opts, WithDialer(p.Dialer))
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
	Name = "to"
	// Description 模块描述
	Description = "遥测输出实验应用，把订阅的遥测转发到下行输出"
)
