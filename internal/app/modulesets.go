// Package app 提供模块集合清单
//
// modulesets.go 集中维护"哪些模块属于哪个 Tier"，是 Bootstrap 组装的唯一模块来源。
package app

import (
	"go.uber.org/fx"

	"github.com/flightbus/go-flightbus/internal/app/ci"
	"github.com/flightbus/go-flightbus/internal/app/sch"
	"github.com/flightbus/go-flightbus/internal/app/to"
	"github.com/flightbus/go-flightbus/internal/core/metrics"
	"github.com/flightbus/go-flightbus/internal/core/sb"
	"github.com/flightbus/go-flightbus/internal/debug/introspect"
)

// CoreModules 核心模块组合 (Tier 1)
//
// 软件总线和指标采集，始终加载。
func CoreModules() fx.Option {
	return fx.Options(
		sb.Module(),
		metrics.Module(),
	)
}

// AppModules 实验应用组合 (Tier 2)
//
// 各应用按配置中的 Enable 开关决定是否创建，模块本身始终加载。
func AppModules() fx.Option {
	return fx.Options(
		sch.Module(),
		to.Module(),
		ci.Module(),
	)
}

// DiagnosticsModules 诊断模块组合 (Tier 3)
//
// 自省 HTTP 服务，配置禁用时不监听。
func DiagnosticsModules() fx.Option {
	return fx.Options(
		introspect.Module(),
	)
}
