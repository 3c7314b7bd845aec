package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dsimlab/distsim/packages/algorithm"
	"github.com/dsimlab/distsim/packages/algorithm/flooding"
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/eventbus"
	"github.com/dsimlab/distsim/packages/topology"
	"github.com/dsimlab/distsim/packages/transport/inproc"
)

func newTestEngine() *Engine {
	registry := algorithm.NewRegistry()
	registry.Register(flooding.AlgorithmId, flooding.New)
	return New(registry, inproc.New(), eventbus.New(nil), nil)
}

func waitForConvergence(t *testing.T, e *Engine, timeout time.Duration) Snapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap := e.Metrics()
		if snap.Converged {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("simulation did not converge within %s", timeout)
	return Snapshot{}
}

func TestCausalOrderingGivesEachNodeAnIndependentClockFoldedOnReceipt(t *testing.T) {
	e := newTestEngine()
	e.params = Parameters{CausalOrdering: true, MaxSteps: 1}

	a := id.NewNodeId("a")
	b := id.NewNodeId("b")

	clockA, ok := e.nodeClock(a)
	require.True(t, ok)
	require.Equal(t, uint64(1), clockA.Tick())
	require.Equal(t, uint64(2), clockA.Tick())

	// b has never ticked locally; folding in a's seq=2 jumps b to max(0,2)+1.
	observed, ok := e.observe(b, 2)
	require.True(t, ok)
	require.Equal(t, uint64(3), observed)

	// A second, lower receipt still advances b's clock by 1, it never rewinds.
	observed, ok = e.observe(b, 1)
	require.True(t, ok)
	require.Equal(t, uint64(4), observed)

	// a's own clock is untouched by what was folded into b's.
	require.Equal(t, uint64(2), clockA.Time())
}

func TestCausalOrderingOffLeavesObserveANoOp(t *testing.T) {
	e := newTestEngine()
	e.params = Parameters{CausalOrdering: false, MaxSteps: 1}

	_, ok := e.nodeClock(id.NewNodeId("a"))
	require.False(t, ok)

	_, ok = e.observe(id.NewNodeId("a"), 5)
	require.False(t, ok)
}

func TestCreateNetworkRejectsInvalidNodeCount(t *testing.T) {
	e := newTestEngine()
	err := e.CreateNetwork(NetworkConfig{NodeCount: 0, TopologyType: topology.Line}, 1)
	require.Error(t, err)
}

func TestConfigureAlgorithmBeforeCreateNetworkFails(t *testing.T) {
	e := newTestEngine()
	err := e.ConfigureAlgorithm(flooding.AlgorithmId)
	require.Error(t, err)
}

func TestConfigureAlgorithmUnknownIdFails(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 3, TopologyType: topology.Line}, 1))
	err := e.ConfigureAlgorithm("does-not-exist")
	require.Error(t, err)
}

func TestStartRequiresNetworkAndAlgorithm(t *testing.T) {
	e := newTestEngine()
	err := e.Start(DefaultParameters())
	require.Error(t, err)
}

func TestStartRejectsInvalidMaxSteps(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 3, TopologyType: topology.Line}, 1))
	require.NoError(t, e.ConfigureAlgorithm(flooding.AlgorithmId))
	err := e.Start(Parameters{MaxSteps: 0})
	require.Error(t, err)
}

func TestFloodingConvergesToMaxNodeIdOnLineTopology(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 3, TopologyType: topology.Line}, 1))
	require.NoError(t, e.ConfigureAlgorithm(flooding.AlgorithmId))
	require.NoError(t, e.Start(Parameters{RandomSeed: 1, MaxSteps: 100}))
	defer e.Stop()

	snap := waitForConvergence(t, e, 3*time.Second)
	require.True(t, snap.Converged)
	require.Equal(t, id.NewNodeId("2"), snap.LeaderId)
}

func TestFloodingConvergesOnRingTopology(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 5, TopologyType: topology.Ring}, 1))
	require.NoError(t, e.ConfigureAlgorithm(flooding.AlgorithmId))
	require.NoError(t, e.Start(Parameters{RandomSeed: 1, MaxSteps: 100}))
	defer e.Stop()

	snap := waitForConvergence(t, e, 3*time.Second)
	require.True(t, snap.Converged)
	require.Equal(t, id.NewNodeId("4"), snap.LeaderId)
}

func TestPauseThenResume(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 3, TopologyType: topology.Line}, 1))
	require.NoError(t, e.ConfigureAlgorithm(flooding.AlgorithmId))
	require.NoError(t, e.Start(Parameters{RandomSeed: 1, MaxSteps: 1000}))
	defer e.Stop()

	require.NoError(t, e.Pause())
	require.Equal(t, Paused, e.State())
	require.Error(t, e.Pause(), "pause is only valid from RUNNING")

	require.NoError(t, e.Resume())
	require.Equal(t, Running, e.State())
	require.Error(t, e.Resume(), "resume is only valid from PAUSED")
}

func TestMaxStepsEnforcedStopsSimulationAutomatically(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 3, TopologyType: topology.Line}, 1))
	require.NoError(t, e.ConfigureAlgorithm(flooding.AlgorithmId))
	require.NoError(t, e.Start(Parameters{RandomSeed: 1, MaxSteps: 1}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && e.State() != Stopped {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, Stopped, e.State())
}

func TestStopIsIdempotent(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 3, TopologyType: topology.Line}, 1))
	require.NoError(t, e.ConfigureAlgorithm(flooding.AlgorithmId))
	require.NoError(t, e.Start(Parameters{RandomSeed: 1, MaxSteps: 100}))

	require.NoError(t, e.Stop())
	require.NoError(t, e.Stop())
	require.Equal(t, Stopped, e.State())
}

func TestCrashNodeThenRecoverNode(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 3, TopologyType: topology.Line}, 1))
	require.NoError(t, e.ConfigureAlgorithm(flooding.AlgorithmId))

	nodeId := id.NewNodeId("1")
	require.NoError(t, e.CrashNode(nodeId))
	require.Error(t, e.CrashNode(id.NewNodeId("no-such-node")))

	require.NoError(t, e.RecoverNode(nodeId))
	require.Error(t, e.RecoverNode(id.NewNodeId("no-such-node")))
}

func TestSingleNodeRingConvergesToItself(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 1, TopologyType: topology.Ring}, 1))
	require.NoError(t, e.ConfigureAlgorithm(flooding.AlgorithmId))
	require.NoError(t, e.Start(Parameters{RandomSeed: 1, MaxSteps: 50}))
	defer e.Stop()

	snap := waitForConvergence(t, e, 3*time.Second)
	require.Equal(t, id.NewNodeId("0"), snap.LeaderId)
}

func TestMessageCountIsMonotonicDuringRun(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.CreateNetwork(NetworkConfig{NodeCount: 4, TopologyType: topology.Ring}, 1))
	require.NoError(t, e.ConfigureAlgorithm(flooding.AlgorithmId))
	require.NoError(t, e.Start(Parameters{RandomSeed: 1, MaxSteps: 100}))
	defer e.Stop()

	prev := int64(0)
	for i := 0; i < 5; i++ {
		snap := e.Metrics()
		require.GreaterOrEqual(t, snap.MessageCount, prev)
		prev = snap.MessageCount
		time.Sleep(10 * time.Millisecond)
	}
}
