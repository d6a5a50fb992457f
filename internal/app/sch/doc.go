// Package sch 实现调度实验应用
//
// 调度应用按固定节拍运行调度表：每个条目每 PacketRate 个节拍发送一次
// 仅含消息头的指令消息（通常是各应用的 HK 请求）。节拍来自
// benbjohnson/clock 的 Ticker，测试中可用 Mock 时钟驱动。
//
// 配置了同步消息（1Hz）时，收到第一条同步消息之前不处理调度表。
package sch
