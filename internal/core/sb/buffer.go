package sb

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/flightbus/go-flightbus/internal/core/bufpool"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
	"github.com/flightbus/go-flightbus/pkg/types"
)

type bufState int32

const (
	// bufAllocated 已分配，调用方独占可写
	bufAllocated bufState = iota
	// bufConsumed 已传输，分配引用由总线释放
	bufConsumed
	// bufReceived 已接收，消费者持有一个只读引用
	bufReceived
	// bufReleased 引用已由持有者释放
	bufReleased
	// bufReclaimed 引用已由总线收回（下一次接收或删除管道）
	bufReclaimed
)

// Buffer 总线缓冲区视图
//
// 每个 Buffer 对应缓冲池中的一个引用。
type Buffer struct {
	bus    *Bus
	h      bufpool.Handle
	data   []byte
	msgID  types.MsgID
	pipeID types.PipeID
	state  atomic.Int32
}

var _ interfaces.MessageBuffer = (*Buffer)(nil)

func newBuffer(bus *Bus, h bufpool.Handle, data []byte, state bufState) *Buffer {
	b := &Buffer{
		bus:    bus,
		h:      h,
		data:   data,
		msgID:  types.InvalidMsgID,
		pipeID: types.InvalidPipeID,
	}
	b.state.Store(int32(state))
	return b
}

// Bytes 返回消息字节
//
// 接收得到的缓冲区与其他订阅者共享，不得修改。传输或释放后返回 nil。
func (b *Buffer) Bytes() []byte {
	switch bufState(b.state.Load()) {
	case bufAllocated, bufReceived:
		return b.data
	default:
		return nil
	}
}

// MsgID 返回传输时使用的消息标识
func (b *Buffer) MsgID() types.MsgID { return b.msgID }

// PipeID 返回接收该缓冲区的管道，分配得到的缓冲区返回 InvalidPipeID
func (b *Buffer) PipeID() types.PipeID { return b.pipeID }

// Size 返回消息长度
func (b *Buffer) Size() int { return len(b.data) }

// Truncate 缩短消息长度，只对尚未传输的已分配缓冲区有效
func (b *Buffer) Truncate(n int) error {
	switch bufState(b.state.Load()) {
	case bufAllocated:
	case bufConsumed:
		return ErrBufferConsumed
	default:
		return fmt.Errorf("%w: only allocated buffers can be truncated", ErrInvalidBuffer)
	}
	if n < 0 || n > len(b.data) {
		return fmt.Errorf("%w: truncate to %d, size %d", ErrBadArgument, n, len(b.data))
	}
	b.data = b.data[:n]
	return nil
}

// Release 释放本引用
//
// 对已传输的缓冲区返回 ErrBufferConsumed，重复释放返回 ErrBufferReleased。
// 总线已经收回的接收缓冲区（下一次接收或管道删除之后）可以再释放一次。
func (b *Buffer) Release() error {
	_, err := b.release()
	if errors.Is(err, ErrBufferReleased) {
		b.bus.ctr.doubleReleases.Add(1)
		logger.Warn("缓冲区重复释放", "handle", b.h, "msgID", b.msgID)
	}
	return err
}

// consume 把已分配的缓冲区标记为已传输
func (b *Buffer) consume() bool {
	return b.state.CompareAndSwap(int32(bufAllocated), int32(bufConsumed))
}

// release 持有者释放本引用，返回是否由本次调用归还池引用
func (b *Buffer) release() (bool, error) {
	for {
		s := bufState(b.state.Load())
		switch s {
		case bufConsumed:
			return false, ErrBufferConsumed
		case bufReleased:
			return false, ErrBufferReleased
		case bufReclaimed:
			if b.state.CompareAndSwap(int32(s), int32(bufReleased)) {
				return false, nil
			}
			continue
		}
		if b.state.CompareAndSwap(int32(s), int32(bufReleased)) {
			b.bus.releaseHandle(b.h)
			return true, nil
		}
	}
}

// reclaim 总线收回消费者持有的接收缓冲区，持有者已释放时为空操作
func (b *Buffer) reclaim() {
	if b.state.CompareAndSwap(int32(bufReceived), int32(bufReclaimed)) {
		b.bus.releaseHandle(b.h)
	}
}
