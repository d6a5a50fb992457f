package to

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightbus/go-flightbus/internal/app/labkit"
	"github.com/flightbus/go-flightbus/internal/core/msg"
	"github.com/flightbus/go-flightbus/internal/core/sb"
	"github.com/flightbus/go-flightbus/internal/testutil"
	"github.com/flightbus/go-flightbus/pkg/types"
)

const tlmID types.MsgID = 0x0900

// recorder 记录写入的数据报，fail 非 nil 时写入失败
type recorder struct {
	mu     sync.Mutex
	addrs  []string
	msgs   [][]byte
	fail   error
	closed bool
}

func (r *recorder) dial(addr string) (io.WriteCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs = append(r.addrs, addr)
	return r, nil
}

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	r.msgs = append(r.msgs, append([]byte(nil), p...))
	return len(p), nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recorder) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func testConfig() Config {
	return Config{
		Enable:             true,
		SinkAddr:           "ground:1235",
		OutputEnabled:      true,
		ForwardInterval:    500 * time.Millisecond,
		TlmPipeDepth:       16,
		MaxForwardPerCycle: 32,
		Subscriptions:      []Subscription{{MsgID: tlmID, Qos: types.DefaultQos, BufLimit: 8}},
	}
}

func startApp(t *testing.T, b *sb.Bus, cfg Config, rec *recorder) *App {
	t.Helper()
	a, err := New(b, clock.NewMock(), cfg, WithDialer(rec.dial))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func sendTlm(t *testing.T, b *sb.Bus, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, b.TransmitMsg(msg.Build(tlmID, 0, []byte{byte(i)}), true))
	}
}

func command(t *testing.T, b *sb.Bus, fcn uint16, payload []byte) {
	t.Helper()
	require.NoError(t, b.TransmitMsg(msg.Build(CmdMID, fcn, payload), false))
}

func cycle(t *testing.T, a *App) {
	t.Helper()
	require.NoError(t, a.cycle(context.Background()))
}

func TestApp_ForwardsTelemetry(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	rec := &recorder{}
	a := startApp(t, b, testConfig(), rec)
	assert.Equal(t, []string{"ground:1235"}, rec.addrs)

	sendTlm(t, b, 3)
	cycle(t, a)

	require.Equal(t, 3, rec.count())
	for i, m := range rec.msgs {
		assert.Equal(t, tlmID, msg.MsgID(m))
		assert.Equal(t, []byte{byte(i)}, msg.Payload(m))
	}
	fwd, discarded := a.Forwarded()
	assert.Equal(t, uint64(3), fwd)
	assert.Zero(t, discarded)
}

func TestApp_ForwardLimitPerCycle(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	rec := &recorder{}
	cfg := testConfig()
	cfg.MaxForwardPerCycle = 2
	a := startApp(t, b, cfg, rec)

	sendTlm(t, b, 3)
	cycle(t, a)
	assert.Equal(t, 2, rec.count())
	cycle(t, a)
	assert.Equal(t, 3, rec.count())
}

func TestApp_OutputDisabledDiscards(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	rec := &recorder{}
	cfg := testConfig()
	cfg.OutputEnabled = false
	a := startApp(t, b, cfg, rec)

	sendTlm(t, b, 2)
	cycle(t, a)

	assert.Zero(t, rec.count())
	_, discarded := a.Forwarded()
	assert.Equal(t, uint64(2), discarded)

	pid, err := b.GetPipeIDByName(TlmPipeName)
	require.NoError(t, err)
	info, err := b.PipeInfo(pid)
	require.NoError(t, err)
	assert.Zero(t, info.CurrentDepth, "telemetry keeps draining while output is off")
}

func TestApp_WriteErrorSuppressesOutput(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	rec := &recorder{}
	a := startApp(t, b, testConfig(), rec)

	rec.setFail(errors.New("network unreachable"))
	sendTlm(t, b, 2)
	cycle(t, a)

	enabled, suppressed := a.Output()
	assert.True(t, enabled)
	assert.True(t, suppressed)
	assert.Equal(t, uint64(1), a.writeErrors.Load())
	_, discarded := a.Forwarded()
	assert.Equal(t, uint64(1), discarded)

	// OUTPUT_ENABLE 清除抑制并沿用已打开的输出
	rec.setFail(nil)
	command(t, b, FcnOutputEnable, nil)
	cycle(t, a)
	_, suppressed = a.Output()
	assert.False(t, suppressed)
	assert.Len(t, rec.addrs, 1)

	sendTlm(t, b, 1)
	cycle(t, a)
	assert.Equal(t, 1, rec.count())
}

func TestApp_OutputEnableWithAddr(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	rec := &recorder{}
	cfg := testConfig()
	cfg.OutputEnabled = false
	a := startApp(t, b, cfg, rec)
	assert.Empty(t, rec.addrs)

	command(t, b, FcnOutputEnable, msg.AppendString(nil, PktAddr, "10.0.0.2:1235"))
	cycle(t, a)
	assert.Equal(t, []string{"10.0.0.2:1235"}, rec.addrs)
	enabled, _ := a.Output()
	assert.True(t, enabled)

	command(t, b, FcnOutputDisable, nil)
	cycle(t, a)
	enabled, _ = a.Output()
	assert.False(t, enabled)

	cmd, cmdErr := a.Counters()
	assert.Equal(t, uint64(2), cmd)
	assert.Zero(t, cmdErr)
}

func TestApp_SubscriptionCommands(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	a := startApp(t, b, testConfig(), &recorder{})
	assert.Equal(t, []types.MsgID{tlmID}, a.Subscriptions())

	var add []byte
	add = msg.AppendUint(add, PktMsgID, 0x0901)
	add = msg.AppendUint(add, PktPriority, uint64(types.PriorityHigh))
	add = msg.AppendUint(add, PktBufLimit, 2)
	command(t, b, FcnAddPkt, add)
	cycle(t, a)
	assert.Equal(t, []types.MsgID{tlmID, 0x0901}, a.Subscriptions())

	tlm, err := b.GetPipeIDByName(TlmPipeName)
	require.NoError(t, err)
	var found bool
	for _, r := range b.Routes() {
		if r.MsgID != 0x0901 {
			continue
		}
		for _, d := range r.Destinations {
			if d.PipeID == tlm {
				found = true
				assert.Equal(t, types.PriorityHigh, d.Qos.Priority)
				assert.Equal(t, 2, d.MsgLimit)
			}
		}
	}
	assert.True(t, found)

	command(t, b, FcnRemovePkt, msg.AppendUint(nil, PktMsgID, 0x0901))
	cycle(t, a)
	assert.Equal(t, []types.MsgID{tlmID}, a.Subscriptions())

	command(t, b, FcnRemoveAll, nil)
	cycle(t, a)
	assert.Empty(t, a.Subscriptions())

	// 缺少 MsgID 字段
	command(t, b, FcnAddPkt, msg.AppendUint(nil, PktBufLimit, 2))
	cycle(t, a)
	cmd, cmdErr := a.Counters()
	assert.Equal(t, uint64(3), cmd)
	assert.Equal(t, uint64(1), cmdErr)
}

func TestApp_SendDataTypes(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	out, err := b.CreatePipe(4, "GROUND")
	require.NoError(t, err)
	require.NoError(t, b.Subscribe(DataTypesMID, out))

	a := startApp(t, b, testConfig(), &recorder{})
	command(t, b, FcnSendDataTypes, nil)
	cycle(t, a)

	rb, err := b.ReceiveBuffer(context.Background(), out, types.Poll)
	require.NoError(t, err)
	payload := msg.Payload(rb.Bytes())
	f, err := msg.ParseUints(payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234), f[2])
	assert.Equal(t, uint64(0x123456789ABCDEF0), f[4])
	s, ok, err := msg.ParseString(payload, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ABCDE", s)
}

func TestApp_HKAndReset(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	out, err := b.CreatePipe(4, "GROUND")
	require.NoError(t, err)
	require.NoError(t, b.Subscribe(HKTlmMID, out))

	rec := &recorder{}
	a := startApp(t, b, testConfig(), rec)

	sendTlm(t, b, 2)
	command(t, b, FcnNoop, nil)
	command(t, b, 99, nil)
	require.NoError(t, b.TransmitMsg(msg.Build(SendHKMID, 0, nil), false))
	cycle(t, a)

	f := testutil.HKFields(t, testutil.Receive(t, b, out, time.Second))
	assert.Equal(t, uint64(1), f[labkit.HKCommandCounter])
	assert.Equal(t, uint64(1), f[labkit.HKCommandErrorCounter])
	assert.Equal(t, uint64(1), f[HKOutputEnabled])
	assert.Equal(t, uint64(0), f[HKSuppressed])
	assert.Equal(t, uint64(2), f[HKForwarded])
	assert.Equal(t, uint64(1), f[HKSubscriptions])

	command(t, b, FcnResetCounters, nil)
	cycle(t, a)
	cmd, cmdErr := a.Counters()
	assert.Zero(t, cmd)
	assert.Zero(t, cmdErr)
	fwd, _ := a.Forwarded()
	assert.Zero(t, fwd)
}

func TestApp_TickerDrivesForwarding(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	rec := &recorder{}
	mock := clock.NewMock()
	cfg := testConfig()
	a, err := New(b, mock, cfg, WithDialer(rec.dial))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	sendTlm(t, b, 1)
	testutil.AdvanceUntil(t, mock, cfg.ForwardInterval, time.Second, func() bool {
		return rec.count() == 1
	}, "forwarded telemetry")

	require.NoError(t, a.Stop(context.Background()))
	assert.True(t, rec.closed)
	_, err = b.GetPipeIDByName(TlmPipeName)
	assert.ErrorIs(t, err, sb.ErrPipeNotFound)
}

func TestApp_StartFailsOnDialError(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	dialErr := errors.New("no route")
	a, err := New(b, clock.NewMock(), testConfig(), WithDialer(func(string) (io.WriteCloser, error) {
		return nil, dialErr
	}))
	require.NoError(t, err)

	err = a.Start(context.Background())
	assert.ErrorIs(t, err, dialErr)
	_, err = b.GetPipeIDByName(CmdPipeName)
	assert.ErrorIs(t, err, sb.ErrPipeNotFound)
	_, err = b.GetPipeIDByName(TlmPipeName)
	assert.ErrorIs(t, err, sb.ErrPipeNotFound)
}

func TestApp_EmptySinkAddrDiscardsQuietly(t *testing.T) {
	b := testutil.NewBus(t, 64, 256)
	cfg := testConfig()
	cfg.SinkAddr = ""
	a, err := New(b, clock.NewMock(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop(context.Background())

	sendTlm(t, b, 2)
	cycle(t, a)
	fwd, _ := a.Forwarded()
	assert.Equal(t, uint64(2), fwd)
}

func TestConfig(t *testing.T) {
	def := DefaultConfig()
	require.NoError(t, def.Validate())
	assert.Equal(t, 500*time.Millisecond, def.ForwardInterval)
	require.NotEmpty(t, def.Subscriptions)
	assert.Equal(t, types.MsgID(0x0803), def.Subscriptions[0].MsgID)

	bad := def
	bad.ForwardInterval = 0
	assert.Error(t, bad.Validate())

	bad = def
	bad.MaxForwardPerCycle = 0
	assert.Error(t, bad.Validate())
}
