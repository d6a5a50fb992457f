// Package labkit 提供实验应用共用的基础设施
//
// 实验应用（sch、to、ci）只通过 interfaces.SoftwareBus 与总线交互，
// 本包把它们共同的部分抽出来：
//
//   - CommandPipe: 创建指令管道、订阅指令 MsgID、轮询或阻塞接收
//   - Dispatcher:  按功能码分派指令并维护指令计数
//   - Counters:    指令计数和指令错误计数
//   - BuildHK:     组装 HK 遥测消息
//   - Runner:      基于 errgroup 管理应用 goroutine
package labkit
