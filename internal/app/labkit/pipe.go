package labkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/flightbus/go-flightbus/internal/core/sb"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// CommandPipe 应用指令管道
type CommandPipe struct {
	bus  interfaces.SoftwareBus
	id   types.PipeID
	name string
}

// OpenCommandPipe 创建管道并订阅给定的 MsgID
//
// 任一订阅失败时删除管道并返回错误。
func OpenCommandPipe(bus interfaces.SoftwareBus, name string, depth int, ids ...types.MsgID) (*CommandPipe, error) {
	pid, err := bus.CreatePipe(depth, name)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	for _, id := range ids {
		if err := bus.Subscribe(id, pid); err != nil {
			_ = bus.DeletePipe(pid)
			return nil, fmt.Errorf("subscribe %s to %s: %w", name, id, err)
		}
	}
	return &CommandPipe{bus: bus, id: pid, name: name}, nil
}

// ID 返回管道标识
func (p *CommandPipe) ID() types.PipeID { return p.id }

// Name 返回管道名称
func (p *CommandPipe) Name() string { return p.name }

// Poll 非阻塞取出一条消息，管道为空时返回 (nil, nil)
//
// 管道已删除时返回 ErrPipeClosed。
func (p *CommandPipe) Poll(ctx context.Context) (interfaces.MessageBuffer, error) {
	buf, err := p.bus.ReceiveBuffer(ctx, p.id, types.Poll)
	if err != nil {
		return nil, p.classify(err)
	}
	return buf, nil
}

// Drain 以 Poll 方式取出所有排队消息并逐条处理，返回处理数量
//
// 管道已删除时返回 ErrPipeClosed。
func (p *CommandPipe) Drain(ctx context.Context, fn func(interfaces.MessageBuffer)) (int, error) {
	n := 0
	for {
		buf, err := p.Poll(ctx)
		if buf == nil {
			return n, err
		}
		fn(buf)
		n++
	}
}

// Serve 阻塞接收并逐条处理，直到 ctx 取消或管道被删除
func (p *CommandPipe) Serve(ctx context.Context, fn func(interfaces.MessageBuffer)) error {
	for {
		buf, err := p.bus.ReceiveBuffer(ctx, p.id, types.PendForever)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err = p.classify(err); err != nil {
				return err
			}
			continue
		}
		fn(buf)
	}
}

// classify 区分"暂无消息"和管道失效；前者返回 nil
func (p *CommandPipe) classify(err error) error {
	switch {
	case errors.Is(err, sb.ErrNoMessage), errors.Is(err, sb.ErrTimeout):
		return nil
	case isPipeGone(err):
		return ErrPipeClosed
	default:
		return err
	}
}

func isPipeGone(err error) bool {
	return errors.Is(err, sb.ErrInvalidPipe) || errors.Is(err, sb.ErrPipeDeleted) || errors.Is(err, sb.ErrBusClosed)
}

// Close 删除管道
func (p *CommandPipe) Close() error {
	if err := p.bus.DeletePipe(p.id); err != nil && !isPipeGone(err) {
		return err
	}
	return nil
}
