package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WaitForSignal 阻塞直到收到 SIGINT/SIGTERM 或 ctx 结束
//
// 返回收到的信号；ctx 结束时返回 nil。
func WaitForSignal(ctx context.Context) os.Signal {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		return sig
	case <-ctx.Done():
		return nil
	}
}

// Run 构建执行体并运行到收到退出信号或 ctx 结束，然后停止
func Run(ctx context.Context, b *Bootstrap) error {
	rt, err := b.Build()
	if err != nil {
		return err
	}
	if sig := WaitForSignal(ctx); sig != nil {
		logger.Info("收到信号，正在退出", "signal", sig)
	}
	return rt.Stop(context.Background())
}
