// Package metricsexport mirrors a session's engine.Snapshot as Prometheus
// gauges, grounded on the prometheus/client_golang usage pulled into this
// pack's example corpus (other_examples' p2p message server instruments
// its send/receive counters the same way: package-level metric objects
// updated from a live source of truth). Here the "live source" is a
// session.Controller snapshot rather than a running counter, so Collector
// implements prometheus.Collector directly and emits a fresh constant gauge
// per field on every scrape instead of keeping a Counter.
package metricsexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/engine"
)

// SnapshotSource supplies the metrics to export, typically
// session.Controller.GetMetrics bound to one session id.
type SnapshotSource func() (engine.Snapshot, error)

// Collector implements prometheus.Collector over a single session's live
// metrics snapshot.
type Collector struct {
	source SnapshotSource

	simulatedTime  *prometheus.Desc
	realTimeMillis *prometheus.Desc
	messageCount   *prometheus.Desc
	rounds         *prometheus.Desc
	converged      *prometheus.Desc
}

// NewCollector builds a Collector reading from source on every scrape.
func NewCollector(source SnapshotSource) *Collector {
	return &Collector{
		source:         source,
		simulatedTime:  prometheus.NewDesc("distsim_simulated_time", "Simulated time elapsed, in ticks.", nil, nil),
		realTimeMillis: prometheus.NewDesc("distsim_real_time_millis", "Wall-clock milliseconds since the simulation started.", nil, nil),
		messageCount:   prometheus.NewDesc("distsim_message_count", "Total messages sent across all nodes.", nil, nil),
		rounds:         prometheus.NewDesc("distsim_rounds", "Completed simulation loop iterations.", nil, nil),
		converged:      prometheus.NewDesc("distsim_converged", "1 if the session has reached a stable leader, 0 otherwise.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.simulatedTime
	ch <- c.realTimeMillis
	ch <- c.messageCount
	ch <- c.rounds
	ch <- c.converged
}

// Collect implements prometheus.Collector, fetching a fresh snapshot on
// every scrape. A source error yields an empty scrape rather than a panic.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap, err := c.source()
	if err != nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.simulatedTime, prometheus.GaugeValue, float64(snap.SimulatedTime))
	ch <- prometheus.MustNewConstMetric(c.realTimeMillis, prometheus.GaugeValue, float64(snap.RealTimeMillis))
	ch <- prometheus.MustNewConstMetric(c.messageCount, prometheus.GaugeValue, float64(snap.MessageCount))
	ch <- prometheus.MustNewConstMetric(c.rounds, prometheus.GaugeValue, float64(snap.Rounds))
	ch <- prometheus.MustNewConstMetric(c.converged, prometheus.GaugeValue, boolToFloat(snap.Converged))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// LeaderGauge is a separate labeled gauge since a leader id is a label, not
// a numeric value: it reports 1 against the current leader's "nodeId"
// label and is reset on every update.
type LeaderGauge struct {
	vec *prometheus.GaugeVec
}

// NewLeaderGauge registers (via the default registerer unless reg is
// provided) a gauge vector tracking which node is currently the leader.
func NewLeaderGauge(reg prometheus.Registerer) *LeaderGauge {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "distsim_leader",
		Help: "1 for the node currently elected leader, 0 otherwise.",
	}, []string{"nodeId"})
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(vec)
	return &LeaderGauge{vec: vec}
}

// Set marks leader as the current leader, clearing any other node's gauge
// if it was previously set (the Reset keeps stale non-leader entries from
// accumulating across elections).
func (g *LeaderGauge) Set(leader id.NodeId) {
	g.vec.Reset()
	if leader.Empty() {
		return
	}
	g.vec.WithLabelValues(leader.Value()).Set(1)
}
