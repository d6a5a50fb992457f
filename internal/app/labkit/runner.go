package labkit

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runner 管理一个应用的 goroutine
//
// 任一 goroutine 返回错误时取消其余 goroutine。
type Runner struct {
	mu     sync.Mutex
	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// Start 创建运行上下文，重复调用返回 false
func (r *Runner) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.g, r.ctx = errgroup.WithContext(ctx)
	r.cancel = cancel
	return true
}

// Go 在运行上下文中启动 fn
func (r *Runner) Go(fn func(ctx context.Context) error) {
	r.mu.Lock()
	g, ctx := r.g, r.ctx
	r.mu.Unlock()
	if g == nil {
		return
	}
	g.Go(func() error { return fn(ctx) })
}

// Stop 取消所有 goroutine 并等待退出
//
// ctx 到期时返回 ctx.Err()，goroutine 仍在后台退出。
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	g, cancel := r.g, r.cancel
	r.g, r.ctx, r.cancel = nil, nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
