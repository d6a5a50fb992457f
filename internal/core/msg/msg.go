package msg

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/flightbus/go-flightbus/pkg/types"
)

// HeaderSize 固定头长度
const HeaderSize = 12

const (
	offMsgID   = 0
	offSeq     = 4
	offFcnCode = 6
	offLength  = 8
)

var be = binary.BigEndian

// Init 在 b 上写入一个新头部，Length 设为 len(b)，Seq 清零
func Init(b []byte, id types.MsgID, fcnCode uint16) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortMessage, len(b))
	}
	if uint64(len(b)) > math.MaxUint32 {
		return ErrTooLarge
	}
	be.PutUint32(b[offMsgID:], uint32(id))
	be.PutUint16(b[offSeq:], 0)
	be.PutUint16(b[offFcnCode:], fcnCode)
	be.PutUint32(b[offLength:], uint32(len(b)))
	return nil
}

// New 分配 HeaderSize+payloadLen 字节并初始化头部
func New(id types.MsgID, fcnCode uint16, payloadLen int) []byte {
	b := make([]byte, HeaderSize+payloadLen)
	_ = Init(b, id, fcnCode)
	return b
}

// Validate 检查头部完整且 Length 与 len(b) 一致
func Validate(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortMessage, len(b))
	}
	if n := be.Uint32(b[offLength:]); int64(n) != int64(len(b)) {
		return fmt.Errorf("%w: header %d, actual %d", ErrLengthMismatch, n, len(b))
	}
	return nil
}

// MsgID 读取消息标识，b 过短时返回 InvalidMsgID
func MsgID(b []byte) types.MsgID {
	if len(b) < HeaderSize {
		return types.InvalidMsgID
	}
	return types.MsgID(be.Uint32(b[offMsgID:]))
}

// SetMsgID 写入消息标识
func SetMsgID(b []byte, id types.MsgID) {
	be.PutUint32(b[offMsgID:], uint32(id))
}

// Sequence 读取序列计数
func Sequence(b []byte) uint16 {
	return be.Uint16(b[offSeq:])
}

// SetSequence 写入序列计数
func SetSequence(b []byte, seq uint16) {
	be.PutUint16(b[offSeq:], seq)
}

// FcnCode 读取功能码
func FcnCode(b []byte) uint16 {
	return be.Uint16(b[offFcnCode:])
}

// SetFcnCode 写入功能码
func SetFcnCode(b []byte, code uint16) {
	be.PutUint16(b[offFcnCode:], code)
}

// Size 读取头部记录的消息总长度
func Size(b []byte) int {
	return int(be.Uint32(b[offLength:]))
}

// SetSize 写入消息总长度
func SetSize(b []byte, n int) {
	be.PutUint32(b[offLength:], uint32(n))
}

// Payload 返回头部之后的负载，长度以头部 Length 为准并截断到 len(b)
func Payload(b []byte) []byte {
	if len(b) < HeaderSize {
		return nil
	}
	end := Size(b)
	if end > len(b) || end < HeaderSize {
		end = len(b)
	}
	return b[HeaderSize:end]
}
