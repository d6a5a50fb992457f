package sb

import (
	"errors"

	"github.com/flightbus/go-flightbus/internal/core/bufpool"
	"github.com/flightbus/go-flightbus/internal/core/pipe"
	"github.com/flightbus/go-flightbus/internal/core/routing"
)

// 调用方误用
var (
	// ErrInvalidPipe 管道标识无效、过期或管道已删除
	ErrInvalidPipe = errors.New("invalid pipe id")

	// ErrInvalidMsgID 消息标识超出有效范围
	ErrInvalidMsgID = errors.New("invalid msg id")

	// ErrBadArgument 参数非法
	ErrBadArgument = errors.New("bad argument")

	// ErrInvalidBuffer 缓冲区不属于本总线或类型不符
	ErrInvalidBuffer = errors.New("invalid message buffer")

	// ErrBufferConsumed 缓冲区已被传输
	ErrBufferConsumed = errors.New("message buffer already transmitted")

	// ErrBufferReleased 缓冲区已被释放
	ErrBufferReleased = errors.New("message buffer already released")

	// ErrPipeNotFound 按名称找不到管道
	ErrPipeNotFound = errors.New("pipe not found")

	// ErrMaxPipes 管道数量达到上限
	ErrMaxPipes = errors.New("max pipes reached")

	// ErrBusClosed 总线已关闭
	ErrBusClosed = errors.New("software bus closed")

	// ErrInternal 总线内部不变量被破坏
	ErrInternal = errors.New("software bus internal error")
)

// 容量与接收结果，与底层组件共用同一个哨兵值
var (
	ErrPoolExhausted   = bufpool.ErrPoolExhausted
	ErrBufferTooLarge  = bufpool.ErrBufferTooLarge
	ErrRouteTableFull  = routing.ErrRouteTableFull
	ErrMaxDestinations = routing.ErrMaxDestinations
	ErrNoSuchRoute     = routing.ErrNoSuchRoute
	ErrNoMessage       = pipe.ErrNoMessage
	ErrTimeout         = pipe.ErrTimeout
	ErrPipeDeleted     = pipe.ErrPipeDeleted
)
