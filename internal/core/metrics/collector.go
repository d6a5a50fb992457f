package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flightbus/go-flightbus/pkg/types"
)

const (
	namespace = "flightbus"
	subsystem = "sb"

	pipeLabel = "pipe"
)

// Source 提供总线统计快照
//
// *sb.Bus 与 interfaces.SoftwareBus 均满足该接口。
type Source interface {
	Stats() types.BusStats
	Pipes() []types.PipeInfo
}

type counterDesc struct {
	desc *prometheus.Desc
	get  func(types.BusStats) uint64
}

type gaugeDesc struct {
	desc *prometheus.Desc
	get  func(types.BusStats) int
}

func newDesc(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
}

// Collector 软件总线指标收集器
type Collector struct {
	src      Source
	sendRate *RateMeter

	counters []counterDesc
	gauges   []gaugeDesc

	sendRateDesc     *prometheus.Desc
	pipeDepthDesc    *prometheus.Desc
	pipeCapacityDesc *prometheus.Desc
	pipePeakDesc     *prometheus.Desc
	pipeReceivedDesc *prometheus.Desc
	pipeDequeuedDesc *prometheus.Desc
	pipeDroppedDesc  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建收集器
func NewCollector(src Source, clk clock.Clock) *Collector {
	c := &Collector{
		src:      src,
		sendRate: NewRateMeter(clk),
		counters: []counterDesc{
			{newDesc("messages_sent_total", "Messages accepted for transmission."), func(s types.BusStats) uint64 { return s.MsgsSent }},
			{newDesc("messages_delivered_total", "Per-destination deliveries."), func(s types.BusStats) uint64 { return s.MsgsDelivered }},
			{newDesc("messages_received_total", "Messages handed to receivers."), func(s types.BusStats) uint64 { return s.MsgsReceived }},
			{newDesc("no_subscribers_total", "Transmissions with no active destination."), func(s types.BusStats) uint64 { return s.NoSubscribers }},
			{newDesc("send_errors_total", "Rejected transmissions."), func(s types.BusStats) uint64 { return s.MsgSendErrors }},
			{newDesc("receive_errors_total", "Failed receive calls."), func(s types.BusStats) uint64 { return s.MsgReceiveErrors }},
			{newDesc("pipe_overflow_total", "Deliveries dropped because a pipe was full."), func(s types.BusStats) uint64 { return s.PipeOverflowErrors }},
			{newDesc("msg_limit_total", "Deliveries dropped by a destination limit."), func(s types.BusStats) uint64 { return s.MsgLimitErrors }},
			{newDesc("create_pipe_errors_total", "Failed pipe creations."), func(s types.BusStats) uint64 { return s.CreatePipeErrors }},
			{newDesc("subscribe_errors_total", "Failed subscriptions."), func(s types.BusStats) uint64 { return s.SubscribeErrors }},
			{newDesc("duplicate_subscriptions_total", "Subscriptions that updated an existing destination."), func(s types.BusStats) uint64 { return s.DuplicateSubscriptions }},
			{newDesc("internal_errors_total", "Internal consistency errors."), func(s types.BusStats) uint64 { return s.InternalErrors }},
			{newDesc("pool_exhausted_total", "Allocations refused because the pool was empty."), func(s types.BusStats) uint64 { return s.PoolExhausted }},
		},
		gauges: []gaugeDesc{
			{newDesc("pipes_in_use", "Pipes currently allocated."), func(s types.BusStats) int { return s.PipesInUse }},
			{newDesc("pipes_peak", "Peak pipes allocated."), func(s types.BusStats) int { return s.PeakPipesInUse }},
			{newDesc("pipes_max", "Pipe table capacity."), func(s types.BusStats) int { return s.MaxPipes }},
			{newDesc("routes_in_use", "Message IDs with a route."), func(s types.BusStats) int { return s.RoutesInUse }},
			{newDesc("routes_max", "Routing table capacity."), func(s types.BusStats) int { return s.MaxRoutes }},
			{newDesc("subscriptions_in_use", "Destinations across all routes."), func(s types.BusStats) int { return s.SubscriptionsInUse }},
			{newDesc("buffers_in_use", "Pool buffers currently referenced."), func(s types.BusStats) int { return s.BuffersInUse }},
			{newDesc("buffers_peak", "Peak pool buffers referenced."), func(s types.BusStats) int { return s.PeakBuffersInUse }},
			{newDesc("buffers_max", "Pool buffer count."), func(s types.BusStats) int { return s.BufferCount }},
			{newDesc("memory_in_use_bytes", "Bytes in referenced buffers."), func(s types.BusStats) int { return s.MemInUse }},
			{newDesc("memory_peak_bytes", "Peak bytes in referenced buffers."), func(s types.BusStats) int { return s.PeakMemInUse }},
		},
		sendRateDesc:     newDesc("send_rate", "Messages sent per second over the last minute."),
		pipeDepthDesc:    newDesc("pipe_depth", "Messages queued in a pipe.", pipeLabel),
		pipeCapacityDesc: newDesc("pipe_capacity", "Pipe depth limit.", pipeLabel),
		pipePeakDesc:     newDesc("pipe_peak_depth", "Peak queued messages in a pipe.", pipeLabel),
		pipeReceivedDesc: newDesc("pipe_received_total", "Messages enqueued to a pipe.", pipeLabel),
		pipeDequeuedDesc: newDesc("pipe_dequeued_total", "Messages taken from a pipe.", pipeLabel),
		pipeDroppedDesc:  newDesc("pipe_dropped_total", "Messages a pipe dropped or evicted.", pipeLabel, "reason"),
	}
	return c
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.gauges {
		ch <- d.desc
	}
	ch <- c.sendRateDesc
	ch <- c.pipeDepthDesc
	ch <- c.pipeCapacityDesc
	ch <- c.pipePeakDesc
	ch <- c.pipeReceivedDesc
	ch <- c.pipeDequeuedDesc
	ch <- c.pipeDroppedDesc
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	for _, d := range c.counters {
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, float64(d.get(st)))
	}
	for _, d := range c.gauges {
		ch <- prometheus.MustNewConstMetric(d.desc, prometheus.GaugeValue, float64(d.get(st)))
	}

	c.sendRate.Observe(st.MsgsSent)
	ch <- prometheus.MustNewConstMetric(c.sendRateDesc, prometheus.GaugeValue, c.sendRate.Rate())

	// 管道名称可重复，同名管道的指标合并
	type agg struct {
		depth, capacity, peak    int
		received, dequeued       uint64
		limit, overflow, evicted uint64
	}
	byName := make(map[string]*agg)
	var order []string
	for _, p := range c.src.Pipes() {
		a, ok := byName[p.Name]
		if !ok {
			a = &agg{}
			byName[p.Name] = a
			order = append(order, p.Name)
		}
		a.depth += p.CurrentDepth
		a.capacity += p.Depth
		a.peak = max(a.peak, p.PeakDepth)
		a.received += p.Received
		a.dequeued += p.Dequeued
		a.limit += p.MsgLimitDrops
		a.overflow += p.OverflowDrops
		a.evicted += p.Evicted
	}
	for _, name := range order {
		a := byName[name]
		ch <- prometheus.MustNewConstMetric(c.pipeDepthDesc, prometheus.GaugeValue, float64(a.depth), name)
		ch <- prometheus.MustNewConstMetric(c.pipeCapacityDesc, prometheus.GaugeValue, float64(a.capacity), name)
		ch <- prometheus.MustNewConstMetric(c.pipePeakDesc, prometheus.GaugeValue, float64(a.peak), name)
		ch <- prometheus.MustNewConstMetric(c.pipeReceivedDesc, prometheus.CounterValue, float64(a.received), name)
		ch <- prometheus.MustNewConstMetric(c.pipeDequeuedDesc, prometheus.CounterValue, float64(a.dequeued), name)
		ch <- prometheus.MustNewConstMetric(c.pipeDroppedDesc, prometheus.CounterValue, float64(a.limit), name, "msg_limit")
		ch <- prometheus.MustNewConstMetric(c.pipeDroppedDesc, prometheus.CounterValue, float64(a.overflow), name, "overflow")
		ch <- prometheus.MustNewConstMetric(c.pipeDroppedDesc, prometheus.CounterValue, float64(a.evicted), name, "evicted")
	}
}
