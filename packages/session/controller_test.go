package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dsimlab/distsim/packages/algorithm/flooding"
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/engine"
	"github.com/dsimlab/distsim/packages/topology"
	"github.com/dsimlab/distsim/packages/transport/inproc"
	"github.com/dsimlab/distsim/packages/transport/port"
)

func newTestController() *Controller {
	return New(NewDefaultRegistry(), func() port.MessagingPort { return inproc.New() }, nil)
}

func TestUnknownSessionIdReturnsNotFound(t *testing.T) {
	c := newTestController()
	_, err := c.GetMetrics(id.SessionId("no-such-session"))
	require.Error(t, err)
}

func TestSelectAlgorithmRejectsBlankId(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)
	require.Error(t, c.SelectAlgorithm(sid, ""))
}

func TestStartSimulationBeforeAlgorithmSelectedFails(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)
	err = c.StartSimulation(sid, engine.DefaultParameters())
	require.Error(t, err)
}

func TestFullLifecycleToConvergence(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)
	require.NoError(t, c.SelectAlgorithm(sid, flooding.AlgorithmId))
	require.NoError(t, c.StartSimulation(sid, engine.Parameters{RandomSeed: 1, MaxSteps: 100}))
	defer c.StopSimulation(sid)

	deadline := time.Now().Add(3 * time.Second)
	var snap engine.Snapshot
	for time.Now().Before(deadline) {
		snap, err = c.GetMetrics(sid)
		require.NoError(t, err)
		if snap.Converged {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, snap.Converged)
	require.Equal(t, id.NewNodeId("2"), snap.LeaderId)
}

func TestPauseResumeAndStopViaController(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)
	require.NoError(t, c.SelectAlgorithm(sid, flooding.AlgorithmId))
	require.NoError(t, c.StartSimulation(sid, engine.Parameters{RandomSeed: 1, MaxSteps: 1000}))

	require.NoError(t, c.PauseSimulation(sid))
	require.Error(t, c.PauseSimulation(sid), "pausing an already-paused session must fail")

	require.NoError(t, c.ResumeSimulation(sid))
	require.Error(t, c.ResumeSimulation(sid), "resuming an already-running session must fail")

	require.NoError(t, c.StopSimulation(sid))
	require.NoError(t, c.StopSimulation(sid), "StopSimulation must be idempotent")
}

func TestGetCurrentConfigRoundTripsThroughLoadConfig(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 4, TopologyType: topology.Ring})
	require.NoError(t, err)
	require.NoError(t, c.SelectAlgorithm(sid, flooding.AlgorithmId))

	cfg, err := c.GetCurrentConfig(sid)
	require.NoError(t, err)
	require.Equal(t, flooding.AlgorithmId, cfg.AlgorithmId)
	require.Equal(t, 4, cfg.NetworkConfig.NodeCount)

	sid2, err := c.LoadConfig(cfg)
	require.NoError(t, err)

	cfg2, err := c.GetCurrentConfig(sid2)
	require.NoError(t, err)
	require.Equal(t, cfg.NetworkConfig, cfg2.NetworkConfig)
	require.Equal(t, cfg.AlgorithmId, cfg2.AlgorithmId)
}

func TestGetCurrentConfigDefaultsWhenNothingSelected(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)

	cfg, err := c.GetCurrentConfig(sid)
	require.NoError(t, err)
	require.Equal(t, DefaultAlgorithmId, cfg.AlgorithmId)
	require.Equal(t, engine.DefaultParameters(), cfg.DefaultParameters)
}

func TestLoadConfigRejectsBlankAlgorithmId(t *testing.T) {
	c := newTestController()
	_, err := c.LoadConfig(SimulationConfig{NetworkConfig: engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line}})
	require.Error(t, err)
}

func TestGetCurrentVisualizationReflectsLeader(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)
	require.NoError(t, c.SelectAlgorithm(sid, flooding.AlgorithmId))
	require.NoError(t, c.StartSimulation(sid, engine.Parameters{RandomSeed: 1, MaxSteps: 100}))
	defer c.StopSimulation(sid)

	deadline := time.Now().Add(3 * time.Second)
	var snap engine.Snapshot
	for time.Now().Before(deadline) {
		snap, err = c.GetMetrics(sid)
		require.NoError(t, err)
		if snap.Converged {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, snap.Converged)

	vis, err := c.GetCurrentVisualization(sid)
	require.NoError(t, err)
	require.Len(t, vis.Nodes, 3)

	var leaderSeen bool
	for _, n := range vis.Nodes {
		if n.IsLeader {
			leaderSeen = true
			require.Equal(t, "2", n.NodeId)
		}
	}
	require.True(t, leaderSeen)
}

func TestGetLogsFiltersCaseInsensitively(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)
	require.NoError(t, c.SelectAlgorithm(sid, flooding.AlgorithmId))
	require.NoError(t, c.StartSimulation(sid, engine.Parameters{RandomSeed: 1, MaxSteps: 10}))
	defer c.StopSimulation(sid)

	time.Sleep(50 * time.Millisecond)

	all, err := c.GetLogs(sid, "")
	require.NoError(t, err)
	require.NotEmpty(t, all)

	filtered, err := c.GetLogs(sid, "STATE_CHANGED")
	require.NoError(t, err)
	for _, ev := range filtered {
		require.Contains(t, string(ev.Kind), "STATE_CHANGED")
	}
}

func TestExportRunDataJSON(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)
	require.NoError(t, c.SelectAlgorithm(sid, flooding.AlgorithmId))
	require.NoError(t, c.StartSimulation(sid, engine.Parameters{RandomSeed: 1, MaxSteps: 10}))
	require.NoError(t, c.StopSimulation(sid))

	data, err := c.ExportRunData(sid, "json")
	require.NoError(t, err)
	require.Contains(t, string(data), `"events"`)
	require.Contains(t, string(data), `"metrics"`)
}

func TestExportRunDataRejectsUnknownFormat(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)
	_, err = c.ExportRunData(sid, "xml")
	require.Error(t, err)
}

func TestInjectNodeCrashAndRecover(t *testing.T) {
	c := newTestController()
	sid, err := c.InitializeNetwork(engine.NetworkConfig{NodeCount: 3, TopologyType: topology.Line})
	require.NoError(t, err)
	require.NoError(t, c.SelectAlgorithm(sid, flooding.AlgorithmId))

	nodeId := id.NewNodeId("1")
	require.NoError(t, c.InjectNodeCrash(sid, nodeId))
	require.NoError(t, c.RecoverNode(sid, nodeId))

	require.Error(t, c.InjectNodeCrash(sid, id.NewNodeId("no-such-node")))
}
