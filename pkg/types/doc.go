// Package types 定义 flightbus 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 flightbus 内部包。
// 所有类型都是纯值类型，用于在软件总线、应用和配置之间传递数据。
//
// # 文件组织
//
//   - ids.go     - MsgID, PipeID, InstanceID
//   - enums.go   - Priority, Reliability, DropPolicy, PipeState
//   - qos.go     - Qos 投递策略
//   - timeout.go - Timeout 接收超时（Poll / PendForever / 定时）
//   - snapshot.go - PipeInfo, RouteInfo, BusStats 状态快照
package types
