package wsapi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dsimlab/distsim/internal/wsapi/protocol"
	"github.com/dsimlab/distsim/packages/core/event"
	"github.com/dsimlab/distsim/packages/session"
)

func TestPresentStateProjectsNodesAndNeighbors(t *testing.T) {
	snap := session.VisualizationSnapshot{
		Nodes: []session.VisualizationNode{
			{NodeId: "0", State: "RUNNING", IsLeader: false},
			{NodeId: "1", State: "RUNNING", IsLeader: true},
		},
		Topology: map[string][]string{
			"0": {"1"},
			"1": {"0"},
		},
		Timestamp: 1234,
	}

	resp := PresentState("sess-1", snap, true, "1")

	require.Equal(t, protocol.MsgSimulationState, resp.Type)
	require.Equal(t, "sess-1", resp.SessionId)
	require.True(t, resp.Converged)
	require.Equal(t, "1", resp.LeaderId)
	require.Len(t, resp.Nodes, 2)
	require.True(t, resp.Nodes["1"].IsLeader)
	require.Equal(t, []string{"1"}, resp.Nodes["0"].Neighbors)
}

func TestPresentEventProjectsFields(t *testing.T) {
	ev, err := event.New(100, event.LeaderElected, "node-2", "", "elected node-2")
	require.NoError(t, err)

	out := PresentEvent(ev)
	require.Equal(t, protocol.MsgTimelineEvent, out.Type)
	require.Equal(t, "LEADER_ELECTED", out.Kind)
	require.Equal(t, "node-2", out.NodeId)
	require.Equal(t, "elected node-2", out.Summary)
}
