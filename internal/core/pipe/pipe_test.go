package pipe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightbus/go-flightbus/internal/core/bufpool"
	"github.com/flightbus/go-flightbus/pkg/types"
)

// recordingReleaser 记录被释放的句柄
type recordingReleaser struct {
	mu       sync.Mutex
	released []bufpool.Handle
}

func (r *recordingReleaser) Release(h bufpool.Handle) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, h)
	return true, nil
}

func (r *recordingReleaser) handles() []bufpool.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bufpool.Handle(nil), r.released...)
}

func newTestPipe(t *testing.T, depth int, policy types.DropPolicy, clk clock.Clock) (*Pipe, *recordingReleaser) {
	t.Helper()
	rel := &recordingReleaser{}
	p, err := New(Config{ID: 1, Name: "TEST_PIPE", Depth: depth, Policy: policy, Clock: clk, Releaser: rel})
	require.NoError(t, err)
	return p, rel
}

func entry(h uint64, m types.MsgID) Entry {
	return Entry{Handle: bufpool.Handle(h), MsgID: m}
}

// ============================================================================
// 基础功能测试
// ============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Depth: 0, Releaser: &recordingReleaser{}})
	assert.Error(t, err)

	_, err = New(Config{Depth: 1})
	assert.Error(t, err)
}

func TestPipe_FIFOAcrossMsgIDs(t *testing.T) {
	p, _ := newTestPipe(t, 8, types.DropNewest, nil)

	ins := []Entry{entry(1, 100), entry(2, 200), entry(3, 100), entry(4, 300)}
	for _, e := range ins {
		require.Equal(t, Delivered, p.Enqueue(e, 0))
	}

	for _, want := range ins {
		got, err := p.Dequeue(context.Background(), types.Poll)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := p.Dequeue(context.Background(), types.Poll)
	assert.ErrorIs(t, err, ErrNoMessage)
	assert.Equal(t, types.PipeActive, p.State())
}

func TestPipe_DestinationLimit(t *testing.T) {
	p, _ := newTestPipe(t, 8, types.DropNewest, nil)

	// 限额 2，连续 3 条：2 条入队，1 条丢弃
	assert.Equal(t, Delivered, p.Enqueue(entry(1, 100), 2))
	assert.Equal(t, Delivered, p.Enqueue(entry(2, 100), 2))
	assert.Equal(t, DroppedMsgLimit, p.Enqueue(entry(3, 100), 2))

	// 其他 MsgID 不受影响
	assert.Equal(t, Delivered, p.Enqueue(entry(4, 200), 2))

	info := p.Info()
	assert.Equal(t, 3, info.CurrentDepth)
	assert.Equal(t, uint64(1), info.Dropped)
	assert.Equal(t, uint64(1), info.MsgLimitDrops)

	// 出队后限额恢复
	_, err := p.Dequeue(context.Background(), types.Poll)
	require.NoError(t, err)
	assert.Equal(t, Delivered, p.Enqueue(entry(5, 100), 2))
}

func TestPipe_Overflow(t *testing.T) {
	p, _ := newTestPipe(t, 2, types.DropNewest, nil)

	assert.Equal(t, Delivered, p.Enqueue(entry(1, 1), 0))
	assert.Equal(t, Delivered, p.Enqueue(entry(2, 2), 0))
	assert.Equal(t, DroppedPipeFull, p.Enqueue(entry(3, 3), 0))
	assert.Equal(t, uint64(1), p.Info().OverflowDrops)
	assert.Equal(t, 2, p.Info().PeakDepth)
}

func TestPipe_DropOldest(t *testing.T) {
	p, rel := newTestPipe(t, 3, types.DropOldest, nil)

	require.Equal(t, Delivered, p.Enqueue(entry(1, 100), 2))
	require.Equal(t, Delivered, p.Enqueue(entry(2, 200), 2))
	require.Equal(t, Delivered, p.Enqueue(entry(3, 100), 2))

	// MsgID 100 达到限额，淘汰最旧的 100（句柄 1）
	require.Equal(t, Delivered, p.Enqueue(entry(4, 100), 2))
	assert.Equal(t, []bufpool.Handle{1}, rel.handles())

	var got []bufpool.Handle
	for p.Len() > 0 {
		e, err := p.Dequeue(context.Background(), types.Poll)
		require.NoError(t, err)
		got = append(got, e.Handle)
	}
	assert.Equal(t, []bufpool.Handle{2, 3, 4}, got)
	assert.Equal(t, uint64(1), p.Info().Evicted)
}

func TestPipe_DropOldestKeepsMustDeliver(t *testing.T) {
	p, rel := newTestPipe(t, 2, types.DropOldest, nil)

	must := Entry{Handle: 1, MsgID: 1, Reliability: types.ReliabilityMustDeliver}
	require.Equal(t, Delivered, p.Enqueue(must, 0))
	require.Equal(t, Delivered, p.Enqueue(entry(2, 2), 0))

	// 管道满，只能淘汰尽力投递条目
	require.Equal(t, Delivered, p.Enqueue(entry(3, 3), 0))
	assert.Equal(t, []bufpool.Handle{2}, rel.handles())

	// 全部为必须投递时退化为拒绝新消息
	p2, _ := newTestPipe(t, 1, types.DropOldest, nil)
	require.Equal(t, Delivered, p2.Enqueue(must, 0))
	assert.Equal(t, DroppedPipeFull, p2.Enqueue(entry(9, 9), 0))
}

// ============================================================================
// 阻塞接收
// ============================================================================

func TestPipe_PendForeverWakesOnEnqueue(t *testing.T) {
	p, _ := newTestPipe(t, 4, types.DropNewest, nil)

	done := make(chan Entry, 1)
	go func() {
		e, err := p.Dequeue(context.Background(), types.PendForever)
		assert.NoError(t, err)
		done <- e
	}()

	time.Sleep(10 * time.Millisecond)
	p.Enqueue(entry(7, 1), 0)

	select {
	case e := <-done:
		assert.Equal(t, bufpool.Handle(7), e.Handle)
	case <-time.After(time.Second):
		t.Fatal("blocking receive did not wake")
	}
}

func TestPipe_TimedReceiveNeverEarly(t *testing.T) {
	p, _ := newTestPipe(t, 4, types.DropNewest, nil)

	const wait = 50 * time.Millisecond
	start := time.Now()

	// 无关唤醒：在等待期间多次触发通知但不入队
	stop := make(chan struct{})
	go func() {
		tk := time.NewTicker(5 * time.Millisecond)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				p.signal()
			}
		}
	}()
	defer close(stop)

	_, err := p.Dequeue(context.Background(), types.WaitFor(wait))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), wait)
}

func TestPipe_TimedReceiveMockClock(t *testing.T) {
	mock := clock.NewMock()
	p, _ := newTestPipe(t, 4, types.DropNewest, mock)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Dequeue(context.Background(), types.WaitFor(time.Second))
		errCh <- err
	}()

	deadline := time.After(2 * time.Second)
	for {
		mock.Add(100 * time.Millisecond)
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, ErrTimeout)
			return
		case <-deadline:
			t.Fatal("timed receive never expired")
		default:
		}
	}
}

func TestPipe_TimedReceiveGetsMessage(t *testing.T) {
	p, _ := newTestPipe(t, 4, types.DropNewest, nil)

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Enqueue(entry(3, 1), 0)
	}()

	e, err := p.Dequeue(context.Background(), types.WaitFor(time.Second))
	require.NoError(t, err)
	assert.Equal(t, bufpool.Handle(3), e.Handle)
}

func TestPipe_ContextCancel(t *testing.T) {
	p, _ := newTestPipe(t, 4, types.DropNewest, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Dequeue(ctx, types.PendForever)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ============================================================================
// 生命周期
// ============================================================================

func TestPipe_DestroyReleasesQueued(t *testing.T) {
	p, rel := newTestPipe(t, 4, types.DropNewest, nil)

	p.Enqueue(entry(1, 1), 0)
	p.Enqueue(entry(2, 2), 0)
	p.Enqueue(entry(3, 1), 0)

	p.BeginDelete()
	assert.Equal(t, DroppedDeleting, p.Enqueue(entry(4, 1), 0))

	n := p.Destroy()
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, []bufpool.Handle{1, 2, 3}, rel.handles())
	assert.Equal(t, types.PipeDestroyed, p.State())
	assert.Equal(t, 0, p.Destroy(), "second destroy is a no-op")
}

func TestPipe_DeleteWakesWaiter(t *testing.T) {
	p, _ := newTestPipe(t, 4, types.DropNewest, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Dequeue(context.Background(), types.PendForever)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.BeginDelete()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrPipeDeleted)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by delete")
	}
}

func TestPipe_ResetCounters(t *testing.T) {
	p, _ := newTestPipe(t, 1, types.DropNewest, nil)

	p.Enqueue(entry(1, 1), 0)
	p.Enqueue(entry(2, 1), 0)
	p.ResetCounters()

	info := p.Info()
	assert.Zero(t, info.Received)
	assert.Zero(t, info.Dropped)
	assert.Equal(t, 1, info.PeakDepth)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "delivered", Delivered.String())
	assert.Equal(t, "dropped-msg-limit", DroppedMsgLimit.String())
	assert.Equal(t, "dropped-pipe-full", DroppedPipeFull.String())
	assert.Equal(t, "dropped-deleting", DroppedDeleting.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
