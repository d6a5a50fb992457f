// Package sb 实现软件总线核心
//
// Bus 组合缓冲池、路由表和管道，提供 CreatePipe / Subscribe /
// TransmitBuffer / ReceiveBuffer 等应用可见操作。
//
// # 锁顺序
//
// 需要同时持有多个锁时，总是按以下顺序获取：
//
//	路由表 → 管道注册表 → 单个管道 → 缓冲池
//
// Transmit 在路由表读锁内逐个目的地入队；DeletePipe 在路由表写锁内
// 注销管道并移除其全部目的地，因此 Transmit 要么看到目的地且管道有效，
// 要么完全看不到该目的地。
//
// # 缓冲区生命周期
//
// 每个缓冲区的引用计数在分配时为 1，每次成功入队 +1；传输结束时
// 释放分配引用，消费者接收后持有一个引用，在下一次接收、显式
// Release 或管道删除时释放。计数归零时缓冲区回到缓冲池。
package sb
