// Package metrics 将软件总线统计导出为 Prometheus 指标
//
// Collector 在每次抓取时读取总线快照，生成常量指标：
//   - 总线级计数器（发送、投递、接收、各类错误）
//   - 资源占用（管道、路由、订阅、缓冲区、内存）
//   - 按管道名称的深度、接收和丢弃计数
//   - 基于滑动窗口的发送速率
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector(bus, clock.New()))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Fx 模块
//
//	app := fx.New(
//	    sb.Module(),
//	    metrics.Module(),
//	    fx.Invoke(func(reg *prometheus.Registry) { ... }),
//	)
//
// 模块提供私有 *prometheus.Registry，由 introspect 服务挂载到 /metrics。
//
// # 并发安全
//
// Collect 可被并发调用，速率计算器内部加锁。
package metrics
