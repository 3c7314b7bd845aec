// Package port declares the MessagingPort contract (§4.1) shared by every
// transport variant: in-process (package inproc) and out-of-process
// (package wsport). Declaring the interface once, in a package neither
// variant otherwise depends on, is what lets both satisfy "the same
// contract" as literal Go interface satisfaction rather than by
// convention.
package port

import (
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/core/message"
)

// Handler processes a message delivered to a registered receiver.
type Handler func(message.Message)

// MessagingPort is the transport abstraction decoupling nodes from the
// delivery mechanism (§4.1): best-effort, at-most-once, unordered across
// senders, FIFO per (sender, receiver) pair.
type MessagingPort interface {
	// Send is a best-effort unicast; silently dropped if no handler is
	// registered for receiver.
	Send(receiver id.NodeId, msg message.Message)

	// Broadcast sends msg to every member of receivers; ordering across
	// receivers is not guaranteed.
	Broadcast(receivers []id.NodeId, msg message.Message)

	// RegisterHandler replaces any existing handler for nodeId.
	RegisterHandler(nodeId id.NodeId, handler Handler)

	// UnregisterHandler removes the handler for nodeId; subsequent
	// messages to it are dropped.
	UnregisterHandler(nodeId id.NodeId)
}
