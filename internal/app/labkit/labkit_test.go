package labkit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/internal/core/sb"
	"github.com/flightbus/go-flightbus/internal/testutil"
	"github.com/flightbus/go-flightbus/pkg/interfaces"
	"github.com/flightbus/go-flightbus/pkg/lib/log"
	"github.com/flightbus/go-flightbus/pkg/types"
)

var testLogger = log.Logger("app/labkit")

// ============================================================================
// Counters / Dispatcher
// ============================================================================

func TestCounters(t *testing.T) {
	var c Counters
	c.Accept()
	c.Accept()
	c.Reject()
	cmd, cmdErr := c.Load()
	assert.Equal(t, uint64(2), cmd)
	assert.Equal(t, uint64(1), cmdErr)

	c.Reset()
	cmd, cmdErr = c.Load()
	assert.Zero(t, cmd)
	assert.Zero(t, cmdErr)
}

func TestDispatcher(t *testing.T) {
	var (
		c       Counters
		noops   int
		payload []byte
	)
	errBoom := errors.New("boom")
	d := NewDispatcher(testLogger, &c,
		Command{Code: 0, Name: "NOOP", Run: func([]byte) error { noops++; return nil }},
		Command{Code: 1, Name: "RESET", Run: func([]byte) error { c.Reset(); return nil }, Uncounted: true},
		Command{Code: 2, Name: "ECHO", Run: func(p []byte) error { payload = p; return nil }},
		Command{Code: 3, Name: "FAIL", Run: func([]byte) error { return errBoom }},
	)

	require.NoError(t, d.Dispatch(msg.Build(0x1880, 0, nil)))
	require.NoError(t, d.Dispatch(msg.Build(0x1880, 2, []byte("abc"))))
	assert.Equal(t, 1, noops)
	assert.Equal(t, "abc", string(payload))

	assert.ErrorIs(t, d.Dispatch(msg.Build(0x1880, 3, nil)), errBoom)
	assert.ErrorIs(t, d.Dispatch(msg.Build(0x1880, 9, nil)), ErrUnknownCommand)

	short := msg.Build(0x1880, 0, []byte("x"))
	assert.ErrorIs(t, d.Dispatch(short[:len(short)-1]), ErrBadPayload)

	cmd, cmdErr := c.Load()
	assert.Equal(t, uint64(2), cmd)
	assert.Equal(t, uint64(3), cmdErr)

	require.NoError(t, d.Dispatch(msg.Build(0x1880, 1, nil)))
	cmd, cmdErr = c.Load()
	assert.Zero(t, cmd, "reset is not counted")
	assert.Zero(t, cmdErr)
}

func TestBuildHK(t *testing.T) {
	var c Counters
	c.Accept()
	c.Reject()
	c.Reject()

	m := BuildHK(0x0880, &c, BoolField(FirstAppField, true), Field{Num: FirstAppField + 1, Value: 42})
	require.NoError(t, msg.Validate(m))
	assert.Equal(t, types.MsgID(0x0880), msg.MsgID(m))

	f, err := msg.ParseUints(msg.Payload(m))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f[HKCommandCounter])
	assert.Equal(t, uint64(2), f[HKCommandErrorCounter])
	assert.Equal(t, uint64(1), f[FirstAppField])
	assert.Equal(t, uint64(42), f[FirstAppField+1])

	assert.Equal(t, Field{Num: 7}, BoolField(7, false))
}

// ============================================================================
// CommandPipe
// ============================================================================

func TestCommandPipe_Drain(t *testing.T) {
	b := testutil.NewBus(t, 16, 256)
	p, err := OpenCommandPipe(b, "TEST_CMD_PIPE", 8, 0x1880, 0x1881)
	require.NoError(t, err)
	assert.Equal(t, "TEST_CMD_PIPE", p.Name())

	n, err := p.Drain(context.Background(), func(interfaces.MessageBuffer) {})
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, b.TransmitMsg(msg.Build(0x1880, 0, nil), false))
	require.NoError(t, b.TransmitMsg(msg.Build(0x1881, 0, nil), false))
	require.NoError(t, b.TransmitMsg(msg.Build(0x1882, 0, nil), false))

	var got []types.MsgID
	n, err = p.Drain(context.Background(), func(buf interfaces.MessageBuffer) {
		got = append(got, buf.MsgID())
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []types.MsgID{0x1880, 0x1881}, got)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "close is idempotent")
	_, err = p.Drain(context.Background(), func(interfaces.MessageBuffer) {})
	assert.ErrorIs(t, err, ErrPipeClosed)
}

func TestCommandPipe_Poll(t *testing.T) {
	b := testutil.NewBus(t, 16, 256)
	p, err := OpenCommandPipe(b, "TEST_TLM_PIPE", 4, 0x0880)
	require.NoError(t, err)

	buf, err := p.Poll(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, buf)

	require.NoError(t, b.TransmitMsg(msg.Build(0x0880, 0, []byte{7}), true))
	buf, err = p.Poll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, buf)
	assert.Equal(t, []byte{7}, msg.Payload(buf.Bytes()))

	require.NoError(t, p.Close())
	buf, err = p.Poll(context.Background())
	assert.Nil(t, buf)
	assert.ErrorIs(t, err, ErrPipeClosed)
}

func TestCommandPipe_OpenFailureDeletesPipe(t *testing.T) {
	b := testutil.NewBus(t, 16, 256)
	_, err := OpenCommandPipe(b, "BAD", 4, 0x1880, types.InvalidMsgID)
	require.Error(t, err)

	_, err = b.GetPipeIDByName("BAD")
	assert.ErrorIs(t, err, sb.ErrPipeNotFound)
}

func TestCommandPipe_Serve(t *testing.T) {
	b := testutil.NewBus(t, 16, 256)
	p, err := OpenCommandPipe(b, "SERVE", 4, 0x1880)
	require.NoError(t, err)

	var handled atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Serve(ctx, func(interfaces.MessageBuffer) { handled.Add(1) })
	}()

	require.NoError(t, b.TransmitMsg(msg.Build(0x1880, 0, nil), false))
	require.Eventually(t, func() bool { return handled.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestCommandPipe_ServeEndsOnDelete(t *testing.T) {
	b := testutil.NewBus(t, 16, 256)
	p, err := OpenCommandPipe(b, "SERVE", 4, 0x1880)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- p.Serve(context.Background(), func(interfaces.MessageBuffer) {})
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrPipeClosed)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after delete")
	}
}

// ============================================================================
// Runner
// ============================================================================

func TestRunner_StopWaits(t *testing.T) {
	var r Runner
	require.True(t, r.Start())
	assert.False(t, r.Start())

	var exited atomic.Bool
	r.Go(func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		exited.Store(true)
		return nil
	})

	require.NoError(t, r.Stop(context.Background()))
	assert.True(t, exited.Load())
	assert.NoError(t, r.Stop(context.Background()))
}

func TestRunner_ErrorCancelsOthers(t *testing.T) {
	var r Runner
	require.True(t, r.Start())

	errBoom := errors.New("boom")
	r.Go(func(ctx context.Context) error { return errBoom })
	r.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	assert.ErrorIs(t, r.Stop(context.Background()), errBoom)
}

func TestRunner_StopTimeout(t *testing.T) {
	var r Runner
	require.True(t, r.Start())

	release := make(chan struct{})
	r.Go(func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Stop(ctx), context.DeadlineExceeded)
	close(release)
}

func TestRunner_GoBeforeStart(t *testing.T) {
	var r Runner
	r.Go(func(context.Context) error {
		t.Error("should not run")
		return nil
	})
	assert.NoError(t, r.Stop(context.Background()))
}
