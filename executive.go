package flightbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/flightbus/go-flightbus/internal/app"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// closeTimeout Close 等待各模块停止的最长时间
const closeTimeout = 15 * time.Second

// Executive 运行中的执行体
//
// 持有软件总线和所有实验应用。Close 之后 Bus 返回的接口仍可调用，
// 但所有操作返回总线已关闭错误。
type Executive struct {
	rt *app.Runtime

	mu     sync.Mutex
	closed bool
}

// Start 构建并启动执行体
//
// 返回时软件总线和所有启用的应用已经完成 OnStart。
func Start(ctx context.Context, opts ...Option) (*Executive, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt, err := app.NewBootstrap(o.config, o.bootstrap...).Build()
	if err != nil {
		return nil, err
	}
	return &Executive{rt: rt}, nil
}

// Bus 返回软件总线
func (e *Executive) Bus() interfaces.SoftwareBus {
	return e.rt.Bus
}

// InstanceID 返回本次启动的实例标识
func (e *Executive) InstanceID() types.InstanceID {
	return e.rt.InstanceID
}

// IntrospectAddr 返回自省服务地址，未启用时返回空串
func (e *Executive) IntrospectAddr() string {
	if e.rt.Introspect == nil {
		return ""
	}
	return e.rt.Introspect.Addr()
}

// Stats 返回总线统计
func (e *Executive) Stats() types.BusStats {
	return e.rt.Bus.Stats()
}

// Close 停止所有应用并关闭总线
//
// 重复调用返回 ErrClosed。
func (e *Executive) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := e.rt.Stop(ctx)
	// Stop 超时时总线可能尚未关闭；Bus.Close 可重复调用
	return multierr.Append(err, e.rt.Bus.Close())
}
