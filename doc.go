// Package flightbus 提供飞行软件的软件总线执行体
//
// flightbus 在一个进程内运行软件总线（Software Bus）和一组实验应用。
// 应用之间只通过总线交换消息：发布者按 MsgID 发送，总线根据路由表把
// 消息的只读引用投递到每个订阅者的管道，消息本体存放在固定大小的
// 缓冲池中，全程零拷贝。
//
// # 快速开始
//
//	import "github.com/flightbus/go-flightbus"
//
//	exec, err := flightbus.Start(ctx,
//	    flightbus.WithPreset("minimal"),
//	    flightbus.WithIntrospect("127.0.0.1:6060"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	bus := exec.Bus()
//	pipe, _ := bus.CreatePipe(16, "MY_APP_PIPE")
//	_ = bus.Subscribe(0x0803, pipe)
//
// # 组件
//
//   - 软件总线（internal/core/sb）：管道、路由表、缓冲池、总线指令任务
//   - 调度应用（sch）：按节拍发送调度表中的消息
//   - 遥测输出应用（to）：把订阅的遥测转发到 UDP 下行
//   - 指令注入应用（ci）：把 UDP 上行数据报零拷贝发布到总线
//   - 指标与自省：Prometheus 指标和 /debug/sb 诊断接口
//
// # 配置
//
// 配置来自 config.Config，可由 JSON 文件加载，并可叠加预设
// （minimal/default/large）。所有选项在 Start 时一次性生效。
package flightbus
