// Package msg 实现软件总线消息头编解码
//
// 每条消息以 12 字节大端序固定头开始，后接不透明负载：
//
//	0       4        6        8        12
//	+-------+--------+--------+--------+---------
//	| MsgID | Seq    | FcnCode| Length | Payload ...
//	+-------+--------+--------+--------+---------
//
// Length 是消息总长度（含头）。总线只读取 MsgID 和 Length，
// 在发起传输时写入 Seq，从不解释负载内容。
package msg
