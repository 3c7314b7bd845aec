// Package node implements SimulationNode, the per-node lifecycle wrapper
// that buffers messages arriving before start and dispatches them to a
// NodeAlgorithm once started (§4.4).
package node

import (
	"errors"
	"sync"

	"github.com/dsimlab/distsim/packages/algorithm"
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/core/message"
)

// State is a SimulationNode's lifecycle stage.
type State int

const (
	Unstarted State = iota
	MarkedReady
	Initialized
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "UNSTARTED"
	case MarkedReady:
		return "MARKED_READY"
	case Initialized:
		return "INITIALIZED"
	default:
		return "UNKNOWN"
	}
}

// Errors returned by SimulationNode's lifecycle operations (§4.4).
var (
	ErrNotReady       = errors.New("node: markReady must run before onStart")
	ErrAlreadyStarted = errors.New("node: onStart called more than once")
	ErrNotMarkedReady = errors.New("node: onMessage requires at least MARKED_READY")
)

// SimulationNode wraps a (nodeId, neighbors, algorithm, context) tuple with
// the mark-then-start protocol from §4.4: the engine marks every node
// ready before starting any of them, so an algorithm's onStart can safely
// send to peers that have not yet run their own onStart without losing the
// reply.
type SimulationNode struct {
	mu        sync.Mutex
	id        id.NodeId
	neighbors []id.NodeId
	algorithm algorithm.NodeAlgorithm
	ctx       algorithm.NodeContext

	state  State
	buffer []message.Message
}

// New constructs an unstarted node. neighbors is copied so later mutation
// by the caller cannot change what the node reports once started (§3
// invariant: "no neighbor set change is visible to its algorithm").
func New(nodeId id.NodeId, neighbors []id.NodeId, alg algorithm.NodeAlgorithm, ctx algorithm.NodeContext) *SimulationNode {
	cp := make([]id.NodeId, len(neighbors))
	copy(cp, neighbors)
	return &SimulationNode{
		id:        nodeId,
		neighbors: cp,
		algorithm: alg,
		ctx:       ctx,
		state:     Unstarted,
	}
}

// Id returns the node's identifier.
func (n *SimulationNode) Id() id.NodeId {
	return n.id
}

// Neighbors returns the node's immutable neighbor set.
func (n *SimulationNode) Neighbors() []id.NodeId {
	out := make([]id.NodeId, len(n.neighbors))
	copy(out, n.neighbors)
	return out
}

// State returns the node's current lifecycle stage.
func (n *SimulationNode) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Algorithm returns the node's algorithm instance, primarily so the engine
// can perform convergence inspection via algorithm.StateInspectable.
func (n *SimulationNode) Algorithm() algorithm.NodeAlgorithm {
	return n.algorithm
}

// MarkReady transitions UNSTARTED -> MARKED_READY. It must be called on
// every node before any node's OnStart runs.
func (n *SimulationNode) MarkReady() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Unstarted {
		return ErrNotReady
	}
	n.state = MarkedReady
	return nil
}

// OnStart runs the algorithm's OnStart hook, then drains any messages
// buffered while MARKED_READY in FIFO order through OnMessage. It must be
// called at most once, and only after MarkReady.
func (n *SimulationNode) OnStart() error {
	n.mu.Lock()
	if n.state == Unstarted {
		n.mu.Unlock()
		return ErrNotReady
	}
	if n.state == Initialized {
		n.mu.Unlock()
		return ErrAlreadyStarted
	}
	n.mu.Unlock()

	n.algorithm.OnStart(n.ctx)

	n.mu.Lock()
	buffered := n.buffer
	n.buffer = nil
	n.state = Initialized
	n.mu.Unlock()

	for _, msg := range buffered {
		n.algorithm.OnMessage(n.ctx, msg)
	}
	return nil
}

// OnMessage dispatches msg immediately if the node is INITIALIZED, or
// buffers it in arrival order if only MARKED_READY. It requires at least
// MARKED_READY.
func (n *SimulationNode) OnMessage(msg message.Message) error {
	n.mu.Lock()
	switch n.state {
	case Unstarted:
		n.mu.Unlock()
		return ErrNotMarkedReady
	case MarkedReady:
		n.buffer = append(n.buffer, msg)
		n.mu.Unlock()
		return nil
	default: // Initialized
		n.mu.Unlock()
	}

	n.algorithm.OnMessage(n.ctx, msg)
	return nil
}
