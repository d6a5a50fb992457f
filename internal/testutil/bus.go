package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/internal/core/sb"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// NewBus 创建测试用软件总线，测试结束时关闭
//
// 缓冲池为 count 个 size 字节的槽位，其余取默认配置。
func NewBus(t *testing.T, count, size int) *sb.Bus {
	t.Helper()
	cfg := sb.DefaultConfig()
	cfg.Pool.BufferCount = count
	cfg.Pool.BufferSize = size
	b, err := sb.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// Receive 在 timeout 内从管道接收一条消息并返回其副本
func Receive(t *testing.T, b *sb.Bus, pid types.PipeID, timeout time.Duration) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	rb, err := b.ReceiveBuffer(ctx, pid, types.PendForever)
	require.NoError(t, err)
	return append([]byte(nil), rb.Bytes()...)
}

// DrainCounts 以 Poll 方式取空管道，返回各 MsgID 的消息数
func DrainCounts(t *testing.T, b *sb.Bus, pid types.PipeID) map[types.MsgID]int {
	t.Helper()
	got := map[types.MsgID]int{}
	for {
		rb, err := b.ReceiveBuffer(context.Background(), pid, types.Poll)
		if err != nil {
			require.ErrorIs(t, err, sb.ErrNoMessage)
			return got
		}
		got[rb.MsgID()]++
	}
}

// HKFields 解码 HK 遥测负载中的 varint 字段
func HKFields(t *testing.T, m []byte) map[protowire.Number]uint64 {
	t.Helper()
	require.NoError(t, msg.Validate(m))
	f, err := msg.ParseUints(msg.Payload(m))
	require.NoError(t, err)
	return f
}
