package metrics

import (
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightbus/go-flightbus/pkg/types"
)

type fakeSource struct {
	stats types.BusStats
	pipes []types.PipeInfo
}

func (f *fakeSource) Stats() types.BusStats   { return f.stats }
func (f *fakeSource) Pipes() []types.PipeInfo { return f.pipes }

func TestCollector_BusCounters(t *testing.T) {
	src := &fakeSource{stats: types.BusStats{
		MsgsSent:      12,
		NoSubscribers: 3,
		PipesInUse:    2,
		MaxPipes:      64,
		BuffersInUse:  5,
	}}
	c := NewCollector(src, clock.NewMock())

	expected := `
# HELP flightbus_sb_messages_sent_total Messages accepted for transmission.
# TYPE flightbus_sb_messages_sent_total counter
flightbus_sb_messages_sent_total 12
# HELP flightbus_sb_no_subscribers_total Transmissions with no active destination.
# TYPE flightbus_sb_no_subscribers_total counter
flightbus_sb_no_subscribers_total 3
# HELP flightbus_sb_pipes_in_use Pipes currently allocated.
# TYPE flightbus_sb_pipes_in_use gauge
flightbus_sb_pipes_in_use 2
# HELP flightbus_sb_buffers_in_use Pool buffers currently referenced.
# TYPE flightbus_sb_buffers_in_use gauge
flightbus_sb_buffers_in_use 5
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"flightbus_sb_messages_sent_total",
		"flightbus_sb_no_subscribers_total",
		"flightbus_sb_pipes_in_use",
		"flightbus_sb_buffers_in_use",
	))
}

func TestCollector_PipeMetricsMergeDuplicateNames(t *testing.T) {
	src := &fakeSource{pipes: []types.PipeInfo{
		{Name: "TO_TLM", Depth: 8, CurrentDepth: 2, PeakDepth: 5, Received: 10, OverflowDrops: 1},
		{Name: "APP", Depth: 4, CurrentDepth: 1, PeakDepth: 1, Received: 3},
		{Name: "APP", Depth: 4, CurrentDepth: 2, PeakDepth: 3, Received: 4, MsgLimitDrops: 2},
	}}
	c := NewCollector(src, clock.NewMock())

	expected := `
# HELP flightbus_sb_pipe_depth Messages queued in a pipe.
# TYPE flightbus_sb_pipe_depth gauge
flightbus_sb_pipe_depth{pipe="APP"} 3
flightbus_sb_pipe_depth{pipe="TO_TLM"} 2
# HELP flightbus_sb_pipe_peak_depth Peak queued messages in a pipe.
# TYPE flightbus_sb_pipe_peak_depth gauge
flightbus_sb_pipe_peak_depth{pipe="APP"} 3
flightbus_sb_pipe_peak_depth{pipe="TO_TLM"} 5
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"flightbus_sb_pipe_depth", "flightbus_sb_pipe_peak_depth"))

	assert.Equal(t, 6, testutil.CollectAndCount(c, "flightbus_sb_pipe_dropped_total"))
}

func TestCollector_Lint(t *testing.T) {
	c := NewCollector(&fakeSource{}, clock.NewMock())
	problems, err := testutil.CollectAndLint(c)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestCollector_Register(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(&fakeSource{}, clock.NewMock())))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}
