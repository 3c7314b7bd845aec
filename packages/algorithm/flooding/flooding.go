// Package flooding implements the reference flooding leader election
// algorithm: every node floods its best-known leader candidate to its
// neighbors, converging on the network-wide maximum NodeId (§4.6).
package flooding

import (
	"sync"

	"github.com/dsimlab/distsim/packages/algorithm"
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/core/message"
)

// AlgorithmId is the default algorithm id for this implementation (§6).
const AlgorithmId = "flooding-leader-election"

// AnnouncementType is the sole message type the algorithm speaks.
const AnnouncementType = "LEADER_ANNOUNCEMENT"

// Algorithm is the flooding leader election reference algorithm. Each
// instance is owned exclusively by one node (§5).
type Algorithm struct {
	mu            sync.RWMutex
	currentLeader id.NodeId
	converged     bool
}

// New constructs a fresh, unstarted flooding leader election instance.
func New() algorithm.NodeAlgorithm {
	return &Algorithm{}
}

// OnStart sets currentLeader to self and broadcasts an initial announcement
// to every neighbor.
func (a *Algorithm) OnStart(ctx algorithm.NodeContext) {
	a.mu.Lock()
	a.currentLeader = ctx.Self()
	a.converged = false
	leader := a.currentLeader
	a.mu.Unlock()

	for _, neighbor := range ctx.Neighbors() {
		ctx.Send(neighbor, AnnouncementType, leader.Value())
	}
}

// OnMessage ignores anything but LEADER_ANNOUNCEMENT payloads carrying a
// NodeId string. A strictly greater announced id replaces the local
// belief and is re-flooded to every neighbor.
func (a *Algorithm) OnMessage(ctx algorithm.NodeContext, msg message.Message) {
	if msg.MessageType != AnnouncementType {
		return
	}
	raw, ok := msg.Payload.(string)
	if !ok {
		return
	}
	announced := id.NewNodeId(raw)

	a.mu.Lock()
	if !announced.Greater(a.currentLeader) {
		a.mu.Unlock()
		return
	}
	a.currentLeader = announced
	a.converged = false
	a.mu.Unlock()

	for _, neighbor := range ctx.Neighbors() {
		ctx.Send(neighbor, AnnouncementType, announced.Value())
	}
}

// SnapshotState implements algorithm.StateInspectable, letting the engine
// perform convergence detection without reflecting into node internals.
func (a *Algorithm) SnapshotState() algorithm.StateSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return algorithm.StateSnapshot{
		CurrentLeader: a.currentLeader,
		Converged:     a.converged,
	}
}

