// Package wsapi is the out-of-scope (§1), UI-facing WebSocket adapter: it
// projects the core's VisualizationSnapshot and Event stream into the
// richer protocol.* wire shapes browser clients expect, the way the
// teacher's apps/api layer sits in front of its engine.
package wsapi

import (
	"github.com/dsimlab/distsim/internal/wsapi/protocol"
	"github.com/dsimlab/distsim/packages/core/event"
	"github.com/dsimlab/distsim/packages/session"
)

// PresentState projects a session.VisualizationSnapshot into the wire-level
// SimulationStateResponse, keeping §3's VisualizationSnapshot as the core's
// only authoritative shape while giving the UI adapter its own richer view.
func PresentState(sessionId string, snap session.VisualizationSnapshot, converged bool, leaderId string) protocol.SimulationStateResponse {
	nodes := make(map[string]protocol.NodeState, len(snap.Nodes))
	for _, n := range snap.Nodes {
		nodes[n.NodeId] = protocol.NodeState{
			Id:        n.NodeId,
			Status:    n.State,
			IsLeader:  n.IsLeader,
			Neighbors: snap.Topology[n.NodeId],
		}
	}

	return protocol.SimulationStateResponse{
		Type:      protocol.MsgSimulationState,
		SessionId: sessionId,
		Timestamp: snap.Timestamp,
		Converged: converged,
		LeaderId:  leaderId,
		Nodes:     nodes,
	}
}

// PresentEvent projects a core Event into the wire-level TimelineEvent.
func PresentEvent(ev event.Event) protocol.TimelineEvent {
	return protocol.TimelineEvent{
		Type:      protocol.MsgTimelineEvent,
		Timestamp: ev.Timestamp,
		Kind:      string(ev.Kind),
		NodeId:    ev.NodeId,
		PeerId:    ev.PeerId,
		Summary:   ev.PayloadSummary,
	}
}
