// Package pipe 实现软件总线的管道（单消费者有界队列）
//
// 管道保存缓冲区引用（bufpool.Handle），本身不拥有缓冲区存储。
// 每个入队条目持有一份引用，出队后引用转交给消费者；管道销毁时
// 通过 Releaser 释放所有仍在队列中的引用。
//
// # 容量
//
// 入队受两层限制：
//   - 目的地限额：同一 MsgID 在本管道中未消费的消息数 < limit
//   - 管道深度：队列长度 < Depth
//
// 任一超限时按 DropPolicy 处理：DropNewest 拒绝新消息，DropOldest
// 淘汰最旧的尽力投递条目（must-deliver 条目不会被淘汰）。
//
// # 阻塞接收
//
// Dequeue 支持 Poll、PendForever 和定时等待。等待基于带缓冲的通知
// 通道与 clock.Clock 定时器，每次唤醒都重新检查队列和截止时间，
// 因此不会因无关唤醒提前返回。
package pipe
