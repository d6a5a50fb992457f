// Package routing 实现软件总线的路由表
//
// 路由表是 MsgID → 有序目的地列表的多对多索引。每个 MsgID 的
// 目的地列表是紧凑的切片，只保存有效目的地：没有目的地的 MsgID
// 会立即从表中删除，不留空条目，也没有需要跳过的墓碑槽位。
//
// # 顺序
//
// 高优先级目的地排在普通优先级之前；同一优先级内保持订阅顺序。
//
// # 并发安全
//
// 单个 RWMutex 保护整张表：
//   - Subscribe / Unsubscribe / RemovePipe / SetActive 持写锁
//   - Deliver / Lookup 持读锁
//
// Deliver 在读锁内回调，RemovePipe 在写锁内执行，因此发送方要么
// 看到目的地并在管道仍有效时完成投递，要么完全看不到该目的地。
//
// 锁顺序：路由表 → 管道注册表 → 管道 → 缓冲池。
package routing
