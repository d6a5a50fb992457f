package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flightbus/go-flightbus/internal/core/sb"
	"github.com/flightbus/go-flightbus/internal/debug/introspect"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// Runtime 表示一个已通过 fx 组装并启动的执行体。
//
// 注意：
// - Introspect 在诊断服务禁用时为 nil
// - Stop 触发 fx OnStop，各模块按依赖逆序关闭
type Runtime struct {
	Bus        *sb.Bus
	InstanceID types.InstanceID
	Registry   *prometheus.Registry
	Introspect *introspect.Server

	stop func(ctx context.Context) error
}

// Stop 停止运行时（触发 fx 生命周期 OnStop）。
func (r *Runtime) Stop(ctx context.Context) error {
	if r.stop == nil {
		return nil
	}
	return r.stop(ctx)
}
