// Package to 实现遥测输出实验应用
//
// 应用维护两个管道：指令管道接收 TO 指令和 HK 请求，遥测管道按订阅表
// 订阅需要下行的遥测。转发循环按固定周期以 Poll 方式取空遥测管道，
// 把消息原样写入下行 Sink（默认 UDP）。
//
// 写入失败后输出进入抑制状态：遥测仍被取出并丢弃，直到收到
// OUTPUT_ENABLE 指令。
package to
