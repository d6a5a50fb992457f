package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ============================================================================
//                              MsgID - 消息标识
// ============================================================================

// MsgID 消息标识符
//
// 不透明的无符号整数，标识一个逻辑主题。多个生产者和多个消费者
// 可以共享同一个 MsgID，进程生命周期内保持稳定。
type MsgID uint32

// InvalidMsgID 无效消息标识
const InvalidMsgID MsgID = 0xFFFFFFFF

// DefaultHighestValidMsgID 默认最大有效消息标识
const DefaultHighestValidMsgID MsgID = 0x1FFF

// IsValid 检查消息标识是否在 [0, highest] 范围内
func (m MsgID) IsValid(highest MsgID) bool {
	return m != InvalidMsgID && m <= highest
}

// String 返回十六进制表示，例如 "0x1880"
func (m MsgID) String() string {
	if m == InvalidMsgID {
		return "invalid"
	}
	return fmt.Sprintf("0x%04X", uint32(m))
}

// ParseMsgID 解析十进制或 0x 前缀的十六进制消息标识
func ParseMsgID(s string) (MsgID, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return InvalidMsgID, fmt.Errorf("parse msg id %q: %w", s, err)
	}
	return MsgID(v), nil
}

// ============================================================================
//                              PipeID - 管道标识
// ============================================================================

// PipeID 管道标识符
//
// 低 16 位是管道槽位索引，高 16 位是槽位代数（generation）。
// 管道删除后槽位代数递增，旧的 PipeID 因代数不匹配而失效，
// 不需要依赖指针有效性即可检测过期句柄。
type PipeID uint32

// InvalidPipeID 无效管道标识
const InvalidPipeID PipeID = 0xFFFFFFFF

// NewPipeID 由槽位索引和代数构造 PipeID
func NewPipeID(index uint16, gen uint16) PipeID {
	return PipeID(uint32(gen)<<16 | uint32(index))
}

// Index 返回槽位索引
func (p PipeID) Index() uint16 {
	return uint16(p)
}

// Generation 返回槽位代数
func (p PipeID) Generation() uint16 {
	return uint16(p >> 16)
}

// String 返回 "index.gen" 形式，便于日志
func (p PipeID) String() string {
	if p == InvalidPipeID {
		return "invalid"
	}
	return fmt.Sprintf("%d.%d", p.Index(), p.Generation())
}

// ============================================================================
//                              InstanceID - 执行实例标识
// ============================================================================

// InstanceID 执行实例标识
//
// 每次启动生成一次，出现在日志和健康检查中，用于区分重启前后的数据。
type InstanceID string

// NewInstanceID 生成随机实例标识
func NewInstanceID() InstanceID {
	return InstanceID(uuid.NewString())
}

// String 返回字符串表示
func (id InstanceID) String() string {
	return string(id)
}
