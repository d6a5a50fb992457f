package labkit

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// 所有实验应用 HK 负载共用的字段号，应用自定义字段从 FirstAppField 开始
const (
	HKCommandCounter      protowire.Number = 1
	HKCommandErrorCounter protowire.Number = 2
	FirstAppField         protowire.Number = 3
)

// Field HK 负载字段
type Field struct {
	Num   protowire.Number
	Value uint64
}

// BuildHK 组装 HK 遥测消息
func BuildHK(id types.MsgID, c *Counters, fields ...Field) []byte {
	cmd, cmdErr := c.Load()
	var b []byte
	b = msg.AppendUint(b, HKCommandCounter, cmd)
	b = msg.AppendUint(b, HKCommandErrorCounter, cmdErr)
	for _, f := range fields {
		b = msg.AppendUint(b, f.Num, f.Value)
	}
	return msg.Build(id, 0, b)
}

// BoolField 把布尔值编码为 0/1 字段
func BoolField(num protowire.Number, v bool) Field {
	if v {
		return Field{Num: num, Value: 1}
	}
	return Field{Num: num}
}
