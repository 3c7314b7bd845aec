// Package algorithm defines the pluggable per-node algorithm capability
// (NodeAlgorithm), the view an algorithm gets of its node (NodeContext),
// and a small string-keyed registry the engine resolves factories from.
package algorithm

import (
	"errors"
	"sort"
	"sync"

	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/core/message"
)

// NodeAlgorithm is the pluggable per-node algorithm capability. OnStart is
// called exactly once, before any OnMessage; OnMessage is called for every
// message delivered to the owning node after its start (§4.3).
type NodeAlgorithm interface {
	OnStart(ctx NodeContext)
	OnMessage(ctx NodeContext, msg message.Message)
}

// StateSnapshot is the small record an algorithm exposes for convergence
// inspection, replacing reflection into algorithm internals (§9 design
// note "Reflection for algorithm state inspection").
type StateSnapshot struct {
	CurrentLeader id.NodeId
	Converged     bool
}

// StateInspectable is an optional capability an algorithm implements to let
// the engine perform convergence detection without reflection.
type StateInspectable interface {
	SnapshotState() StateSnapshot
}

// NodeContext is the view a NodeAlgorithm gets of its own node: identity,
// an immutable neighbor set, and send/broadcast operations that hide the
// underlying transport and wire format entirely (§4.3).
type NodeContext interface {
	Self() id.NodeId
	Neighbors() []id.NodeId
	Send(target id.NodeId, messageType string, payload interface{})
	Broadcast(targets []id.NodeId, messageType string, payload interface{})
}

// Factory constructs a fresh NodeAlgorithm instance. configureAlgorithm
// calls a session's chosen factory once per node so algorithm instances are
// never shared across nodes or sessions (§5 shared-resource policy).
type Factory func() NodeAlgorithm

// ErrUnknownAlgorithm is returned by Registry.New for an unregistered id.
var ErrUnknownAlgorithm = errors.New("algorithm: unknown algorithm id")

// Registry resolves algorithm ids to factories. It is safe for concurrent
// use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for algorithmId.
func (r *Registry) Register(algorithmId string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[algorithmId] = factory
}

// New constructs a fresh algorithm instance for algorithmId, or
// ErrUnknownAlgorithm if no factory is registered.
func (r *Registry) New(algorithmId string) (NodeAlgorithm, error) {
	r.mu.RLock()
	factory, ok := r.factories[algorithmId]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownAlgorithm
	}
	return factory(), nil
}

// Has reports whether algorithmId is registered.
func (r *Registry) Has(algorithmId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[algorithmId]
	return ok
}

// Ids returns every registered algorithm id, sorted.
func (r *Registry) Ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
