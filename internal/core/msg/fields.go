package msg

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flightbus/go-flightbus/pkg/types"
)

// ============================================================================
// 遥测/指令负载字段
//
// HK、统计遥测和带参数的指令负载使用 protobuf 线格式的字段序列，
// 地面端无需 .proto 文件即可按字段号解码。
// ============================================================================

// AppendUint 追加一个 varint 字段
func AppendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendString 追加一个字符串字段
func AppendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// ParseUints 解析负载中的 varint 字段
//
// 其他线类型的字段被跳过。同一字段号出现多次时保留最后一个值。
func ParseUints(b []byte) (map[protowire.Number]uint64, error) {
	out := make(map[protowire.Number]uint64)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("parse tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("parse field %d: %w", num, protowire.ParseError(m))
			}
			out[num] = v
			b = b[m:]
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("skip field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return out, nil
}

// ParseString 返回负载中字段 num 的字符串值，字段不存在时 ok 为 false
func ParseString(b []byte, num protowire.Number) (s string, ok bool, err error) {
	for len(b) > 0 {
		n, typ, m := protowire.ConsumeTag(b)
		if m < 0 {
			return "", false, fmt.Errorf("parse tag: %w", protowire.ParseError(m))
		}
		b = b[m:]

		if n == num && typ == protowire.BytesType {
			v, k := protowire.ConsumeString(b)
			if k < 0 {
				return "", false, fmt.Errorf("parse field %d: %w", n, protowire.ParseError(k))
			}
			s, ok = v, true
			b = b[k:]
			continue
		}

		k := protowire.ConsumeFieldValue(n, typ, b)
		if k < 0 {
			return "", false, fmt.Errorf("skip field %d: %w", n, protowire.ParseError(k))
		}
		b = b[k:]
	}
	return s, ok, nil
}

// Build 组装一条完整消息：头部 + payload
func Build(id types.MsgID, fcnCode uint16, payload []byte) []byte {
	b := New(id, fcnCode, len(payload))
	copy(b[HeaderSize:], payload)
	return b
}
