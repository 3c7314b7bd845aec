package engine

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dsimlab/distsim/packages/core/id"
)

// Metrics is the atomic counter set described in §4.8: message counts,
// round counters, elapsed time, leader, and convergence flag. All mutators
// are safe under concurrent invocation.
type Metrics struct {
	simulatedTime atomic.Int64
	messageCount  atomic.Int64
	rounds        atomic.Int64
	converged     atomic.Bool

	mu            sync.RWMutex
	leaderId      id.NodeId
	startTimeUnix int64 // milliseconds; 0 until Start is called
}

// NewMetrics creates a zeroed Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Start records the wall-clock base and zeroes every counter.
func (m *Metrics) Start() {
	m.simulatedTime.Store(0)
	m.messageCount.Store(0)
	m.rounds.Store(0)
	m.converged.Store(false)

	m.mu.Lock()
	m.leaderId = ""
	m.startTimeUnix = time.Now().UnixMilli()
	m.mu.Unlock()
}

// IncrementMessageCount records one message send. A broadcast to N targets
// calls this N times — once per target (§4.8).
func (m *Metrics) IncrementMessageCount() {
	m.messageCount.Add(1)
}

// AddRound advances the round counter by one, called once per simulation
// loop iteration.
func (m *Metrics) AddRound() {
	m.rounds.Add(1)
}

// AdvanceSimulatedTime advances simulated time by delta ticks; the engine
// loop advances it by one tick per step.
func (m *Metrics) AdvanceSimulatedTime(delta int64) {
	m.simulatedTime.Add(delta)
}

// SetLeader records the session-tracked leader id.
func (m *Metrics) SetLeader(leaderId id.NodeId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaderId = leaderId
}

// ClearLeader clears the session-tracked leader id.
func (m *Metrics) ClearLeader() {
	m.SetLeader("")
}

// Leader returns the currently tracked leader id, or "" if none.
func (m *Metrics) Leader() id.NodeId {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.leaderId
}

// SetConverged sets the convergence flag.
func (m *Metrics) SetConverged(converged bool) {
	m.converged.Store(converged)
}

// Snapshot is an atomic point-in-time view of the metrics (§3).
type Snapshot struct {
	SimulatedTime  int64
	RealTimeMillis int64
	MessageCount   int64
	Rounds         int64
	Converged      bool
	LeaderId       id.NodeId // empty means unset
}

// Snapshot returns the current metrics. RealTimeMillis is computed relative
// to the wall-clock base recorded by Start.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	startedAt := m.startTimeUnix
	leader := m.leaderId
	m.mu.RUnlock()

	var realTime int64
	if startedAt > 0 {
		realTime = time.Now().UnixMilli() - startedAt
	}

	return Snapshot{
		SimulatedTime:  m.simulatedTime.Load(),
		RealTimeMillis: realTime,
		MessageCount:   m.messageCount.Load(),
		Rounds:         m.rounds.Load(),
		Converged:      m.converged.Load(),
		LeaderId:       leader,
	}
}

// wireSnapshot is the §3/§6 MetricsSnapshot wire form.
type wireSnapshot struct {
	SimulatedTime  int64   `json:"simulatedTime"`
	RealTimeMillis int64   `json:"realTimeMillis"`
	MessageCount   int64   `json:"messageCount"`
	Rounds         int64   `json:"rounds"`
	Converged      bool    `json:"converged"`
	LeaderId       *string `json:"leaderId,omitempty"`
}

// MarshalJSON renders the canonical MetricsSnapshot wire form (§3, §6).
func (s Snapshot) MarshalJSON() ([]byte, error) {
	w := wireSnapshot{
		SimulatedTime:  s.SimulatedTime,
		RealTimeMillis: s.RealTimeMillis,
		MessageCount:   s.MessageCount,
		Rounds:         s.Rounds,
		Converged:      s.Converged,
	}
	if !s.LeaderId.Empty() {
		v := s.LeaderId.Value()
		w.LeaderId = &v
	}
	return json.Marshal(w)
}
