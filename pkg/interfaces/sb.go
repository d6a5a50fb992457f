// Package interfaces 定义 flightbus 公共接口
//
// 本文件定义 SoftwareBus 接口，提供管道、订阅和零拷贝消息传输。
package interfaces

import (
	"context"

	"github.com/flightbus/go-flightbus/pkg/types"
)

// SoftwareBus 定义软件总线接口
//
// 这是应用可见的全部总线能力。应用只通过 PipeID 和 MessageBuffer
// 与总线交互，从不直接访问路由表或缓冲池。
type SoftwareBus interface {
	// CreatePipe 创建深度为 depth 的管道，name 仅作调试标签
	CreatePipe(depth int, name string, opts ...PipeOpt) (types.PipeID, error)

	// DeletePipe 删除管道，释放全部排队引用并移除其所有订阅
	DeletePipe(pipeID types.PipeID) error

	// Subscribe 以默认策略和默认限额订阅
	Subscribe(msgID types.MsgID, pipeID types.PipeID) error

	// SubscribeEx 以指定策略和限额订阅，msgLimit <= 0 表示默认限额
	SubscribeEx(msgID types.MsgID, pipeID types.PipeID, qos types.Qos, msgLimit int) error

	// SubscribeLocal 仅本处理器内的订阅，以默认策略和指定限额
	SubscribeLocal(msgID types.MsgID, pipeID types.PipeID, msgLimit int) error

	// Unsubscribe 取消订阅，订阅不存在时为成功的空操作
	Unsubscribe(msgID types.MsgID, pipeID types.PipeID) error

	// AllocateMessageBuffer 分配可写缓冲区，传输前由调用方独占
	AllocateMessageBuffer(size int) (MessageBuffer, error)

	// ReleaseMessageBuffer 释放未传输的缓冲区或已接收的缓冲区
	ReleaseMessageBuffer(buf MessageBuffer) error

	// TransmitBuffer 零拷贝传输，成功返回后 buf 已被消费
	TransmitBuffer(buf MessageBuffer, msgID types.MsgID, isOrigination bool) error

	// TransmitMsg 把调用方持有的完整消息复制到总线缓冲区后传输
	TransmitMsg(msg []byte, isOrigination bool) error

	// ReceiveBuffer 从管道接收一条消息
	//
	// 上一次从该管道接收的缓冲区在本次调用时被隐式释放。
	ReceiveBuffer(ctx context.Context, pipeID types.PipeID, timeout types.Timeout) (MessageBuffer, error)

	// GetPipeIDByName 按名称查找管道
	GetPipeIDByName(name string) (types.PipeID, error)

	// PipeInfo 返回管道状态快照
	PipeInfo(pipeID types.PipeID) (types.PipeInfo, error)

	// Pipes 返回所有管道状态快照
	Pipes() []types.PipeInfo

	// Stats 返回总线统计
	Stats() types.BusStats

	// Routes 返回路由表快照
	Routes() []types.RouteInfo

	// EnableRoute 恢复向 (msgID, pipeID) 投递
	EnableRoute(msgID types.MsgID, pipeID types.PipeID) error

	// DisableRoute 暂停向 (msgID, pipeID) 投递，保留订阅
	DisableRoute(msgID types.MsgID, pipeID types.PipeID) error
}

// MessageBuffer 定义总线缓冲区视图
//
// 分配得到的缓冲区在传输前可写；接收得到的缓冲区只读，
// 与其他订阅者共享同一存储。
type MessageBuffer interface {
	// Bytes 返回消息字节，释放后返回 nil
	Bytes() []byte

	// MsgID 返回传输时使用的消息标识，未传输的缓冲区返回 InvalidMsgID
	MsgID() types.MsgID

	// Size 返回消息长度
	Size() int

	// Truncate 把已分配缓冲区的消息长度缩短为 n，用于先按上限分配、
	// 读入后再确定长度的场景
	Truncate(n int) error

	// Release 释放本引用，重复释放返回错误
	Release() error
}

// PipeOpt 管道选项函数类型
type PipeOpt func(*PipeSettings)

// PipeSettings 管道设置（导出以供实现使用）
type PipeSettings struct {
	Policy    types.DropPolicy
	PolicySet bool
}

// WithDropPolicy 设置管道的丢弃策略，覆盖总线默认值
func WithDropPolicy(p types.DropPolicy) PipeOpt {
	return func(s *PipeSettings) {
		s.Policy = p
		s.PolicySet = true
	}
}
