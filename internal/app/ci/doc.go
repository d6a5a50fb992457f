// Package ci 实现指令注入实验应用
//
// 应用从 UDP 套接字读取地面指令，每个数据报是一条完整消息。数据报直接
// 读入从总线缓冲池分配的缓冲区，长度校验通过后以 TransmitBuffer 零拷贝
// 发布；校验失败时缓冲区留给下一次读取复用。
//
// 指令管道在独立的 goroutine 中阻塞接收，处理 NOOP、RESET 和 HK 请求。
package ci
