package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/flightbus/go-flightbus/pkg/interfaces"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Bus   interfaces.SoftwareBus
	Clock clock.Clock `optional:"true"`
}

// Result Fx 模块输出结果
type Result struct {
	fx.Out

	Registry  *prometheus.Registry
	Collector *Collector
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideRegistry),
	)
}

// ProvideRegistry 创建私有注册表并注册总线收集器和运行时收集器
func ProvideRegistry(p Params) (Result, error) {
	c := NewCollector(p.Bus, p.Clock)
	reg := prometheus.NewRegistry()
	for _, col := range []prometheus.Collector{
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(col); err != nil {
			return Result{}, err
		}
	}
	return Result{Registry: reg, Collector: c}, nil
}

// ============================================================================
// 模块元信息
// ============================================================================

const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "metrics"
	// Description 模块描述
	Description = "指标模块，将软件总线统计导出为 Prometheus 指标"
)
