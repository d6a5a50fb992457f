// Package bufpool 实现软件总线的零拷贝消息缓冲池
//
// 缓冲池在构造时一次性分配固定数量、固定大小的槽位，运行期不再
// 增长，最坏情况延迟有界。每个槽位带引用计数：
//
//	h, err := pool.Allocate(64)   // 引用计数 = 1
//	pool.Retain(h)                 // 每次成功入队 +1
//	pool.Release(h)                // 计数归零时槽位回收
//
// # 句柄
//
// Handle 由槽位索引和代数组成。槽位回收时代数递增，过期句柄
// （重复释放、释放后再用）会被识别为 ErrInvalidHandle，不会破坏
// 共享状态。
//
// # 并发安全
//
// 所有操作由单个互斥锁保护。缓冲池锁是全局锁顺序中的最后一把：
// 持有缓冲池锁时不会再去获取其他锁。
package bufpool
