package routing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightbus/go-flightbus/pkg/types"
)

func newTestTable(t *testing.T, maxRoutes, maxDests int) *Table {
	t.Helper()
	tbl, err := New(Config{MaxRoutes: maxRoutes, MaxDestsPerMsg: maxDests})
	require.NoError(t, err)
	return tbl
}

var (
	low  = types.Qos{Priority: types.PriorityLow}
	high = types.Qos{Priority: types.PriorityHigh}
)

func pipeIDs(ds []Destination) []types.PipeID {
	out := make([]types.PipeID, len(ds))
	for i, d := range ds {
		out[i] = d.PipeID
	}
	return out
}

// ============================================================================
// 订阅 / 取消订阅
// ============================================================================

func TestTable_SubscribeInsertionOrder(t *testing.T) {
	tbl := newTestTable(t, 8, 8)

	for _, p := range []types.PipeID{3, 1, 2} {
		_, err := tbl.Subscribe(100, p, low, 4, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, []types.PipeID{3, 1, 2}, pipeIDs(tbl.Lookup(100)))
}

func TestTable_PriorityFirst(t *testing.T) {
	tbl := newTestTable(t, 8, 8)

	_, _ = tbl.Subscribe(100, 1, low, 4, nil)
	_, _ = tbl.Subscribe(100, 2, high, 4, nil)
	_, _ = tbl.Subscribe(100, 3, low, 4, nil)
	_, _ = tbl.Subscribe(100, 4, high, 4, nil)

	// 高优先级在前，各自保持插入顺序
	assert.Equal(t, []types.PipeID{2, 4, 1, 3}, pipeIDs(tbl.Lookup(100)))
}

func TestTable_DuplicateUpdatesPolicy(t *testing.T) {
	tbl := newTestTable(t, 8, 8)

	res, err := tbl.Subscribe(100, 1, low, 4, nil)
	require.NoError(t, err)
	assert.True(t, res.NewRoute)
	assert.False(t, res.Duplicate)
	_, _ = tbl.Subscribe(100, 2, low, 4, nil)

	res, err = tbl.Subscribe(100, 2, high, 7, nil)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	ds := tbl.Lookup(100)
	require.Len(t, ds, 2, "duplicate must not insert")
	assert.Equal(t, types.PipeID(2), ds[0].PipeID, "priority change reorders")
	assert.Equal(t, 7, ds[0].MsgLimit)
	assert.Equal(t, 2, tbl.Stats().SubscriptionsInUse)
}

func TestTable_UnsubscribeIdempotent(t *testing.T) {
	tbl := newTestTable(t, 8, 8)

	_, _ = tbl.Subscribe(100, 1, low, 4, nil)

	assert.True(t, tbl.Unsubscribe(100, 1))
	assert.False(t, tbl.Unsubscribe(100, 1))
	assert.False(t, tbl.Unsubscribe(999, 1))

	// 空路由不残留
	assert.Empty(t, tbl.Routes())
	assert.Equal(t, 0, tbl.Stats().RoutesInUse)
	assert.Equal(t, 0, tbl.Stats().SubscriptionsInUse)
}

func TestTable_RouteTableFull(t *testing.T) {
	tbl := newTestTable(t, 2, 8)

	_, err := tbl.Subscribe(1, 1, low, 4, nil)
	require.NoError(t, err)
	_, err = tbl.Subscribe(2, 1, low, 4, nil)
	require.NoError(t, err)

	_, err = tbl.Subscribe(3, 1, low, 4, nil)
	assert.ErrorIs(t, err, ErrRouteTableFull)

	// 已有路由上的新目的地不受影响
	_, err = tbl.Subscribe(2, 2, low, 4, nil)
	assert.NoError(t, err)
}

func TestTable_MaxDestinations(t *testing.T) {
	tbl := newTestTable(t, 8, 2)

	_, _ = tbl.Subscribe(1, 1, low, 4, nil)
	_, _ = tbl.Subscribe(1, 2, low, 4, nil)
	_, err := tbl.Subscribe(1, 3, low, 4, nil)
	assert.ErrorIs(t, err, ErrMaxDestinations)

	// 更新已有目的地仍然允许
	_, err = tbl.Subscribe(1, 2, high, 4, nil)
	assert.NoError(t, err)
}

func TestTable_CheckRejects(t *testing.T) {
	tbl := newTestTable(t, 8, 8)

	boom := assert.AnError
	_, err := tbl.Subscribe(1, 1, low, 4, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, tbl.Lookup(1))
}

// ============================================================================
// RemovePipe / Deliver
// ============================================================================

func TestTable_RemovePipe(t *testing.T) {
	tbl := newTestTable(t, 8, 8)

	_, _ = tbl.Subscribe(1, 7, low, 4, nil)
	_, _ = tbl.Subscribe(2, 7, low, 4, nil)
	_, _ = tbl.Subscribe(2, 8, low, 4, nil)

	called := false
	n := tbl.RemovePipe(7, func() { called = true })
	assert.Equal(t, 2, n)
	assert.True(t, called)

	assert.Nil(t, tbl.Lookup(1))
	assert.Equal(t, []types.PipeID{8}, pipeIDs(tbl.Lookup(2)))
	assert.Equal(t, 1, tbl.Stats().SubscriptionsInUse)
}

func TestTable_DeliverSkipsInactive(t *testing.T) {
	tbl := newTestTable(t, 8, 8)

	_, _ = tbl.Subscribe(1, 1, low, 4, nil)
	_, _ = tbl.Subscribe(1, 2, low, 4, nil)
	require.NoError(t, tbl.SetActive(1, 1, false))

	var got []types.PipeID
	n := tbl.Deliver(1, func(d Destination) { got = append(got, d.PipeID) })
	assert.Equal(t, 1, n)
	assert.Equal(t, []types.PipeID{2}, got)

	assert.ErrorIs(t, tbl.SetActive(1, 9, true), ErrNoSuchRoute)
	assert.ErrorIs(t, tbl.SetActive(5, 1, true), ErrNoSuchRoute)

	assert.Equal(t, 0, tbl.Deliver(42, func(Destination) { t.Fatal("unexpected") }))
}

func TestTable_NextSequenceWraps(t *testing.T) {
	tbl := newTestTable(t, 8, 8)

	_, ok := tbl.NextSequence(1)
	assert.False(t, ok)

	_, _ = tbl.Subscribe(1, 1, low, 4, nil)
	tbl.routes[1].seq.Store(SequenceMask)
	seq, ok := tbl.NextSequence(1)
	assert.True(t, ok)
	assert.Equal(t, uint16(0), seq)
}

func TestTable_PipeSubscriptionsAndRoutes(t *testing.T) {
	tbl := newTestTable(t, 8, 8)

	_, _ = tbl.Subscribe(30, 1, low, 4, nil)
	_, _ = tbl.Subscribe(10, 1, low, 4, nil)
	_, _ = tbl.Subscribe(20, 2, low, 4, nil)

	assert.Equal(t, []types.MsgID{10, 30}, tbl.PipeSubscriptions(1))

	routes := tbl.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, types.MsgID(10), routes[0].MsgID)
	assert.Equal(t, types.MsgID(30), routes[2].MsgID)

	st := tbl.Stats()
	assert.Equal(t, 3, st.PeakRoutesInUse)
	tbl.Unsubscribe(30, 1)
	tbl.ResetPeaks()
	assert.Equal(t, 2, tbl.Stats().PeakRoutesInUse)
}

// TestConcurrent_SubscribeDeliver 并发订阅/投递/删除不破坏表结构
func TestConcurrent_SubscribeDeliver(t *testing.T) {
	tbl := newTestTable(t, 64, 64)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(p types.PipeID) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				m := types.MsgID(i % 16)
				_, _ = tbl.Subscribe(m, p, low, 4, nil)
				tbl.Deliver(m, func(Destination) {})
				if i%3 == 0 {
					tbl.Unsubscribe(m, p)
				}
			}
			tbl.RemovePipe(p, nil)
		}(types.PipeID(w))
	}
	wg.Wait()

	assert.Empty(t, tbl.Routes())
	assert.Equal(t, 0, tbl.Stats().SubscriptionsInUse)
}
