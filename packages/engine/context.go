package engine

import (
	"github.com/dsimlab/distsim/packages/core/id"
)

// nodeContext is the NodeContext view handed to a node's algorithm: it
// forwards send/broadcast to the owning engine, which hides the transport,
// increments the message counter, and publishes MESSAGE_SENT (§4.3).
type nodeContext struct {
	self      id.NodeId
	neighbors []id.NodeId
	eng       *Engine
}

func (c *nodeContext) Self() id.NodeId {
	return c.self
}

// Neighbors returns a defensive copy so algorithms cannot mutate the node's
// neighbor set (§3 invariant).
func (c *nodeContext) Neighbors() []id.NodeId {
	out := make([]id.NodeId, len(c.neighbors))
	copy(out, c.neighbors)
	return out
}

func (c *nodeContext) Send(target id.NodeId, messageType string, payload interface{}) {
	c.eng.sendFrom(c.self, target, messageType, payload)
}

// Broadcast counts once per target, matching §4.8's "broadcasts count once
// per target".
func (c *nodeContext) Broadcast(targets []id.NodeId, messageType string, payload interface{}) {
	for _, target := range targets {
		c.eng.sendFrom(c.self, target, messageType, payload)
	}
}
