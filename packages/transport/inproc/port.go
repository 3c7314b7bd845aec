// Package inproc implements the in-process MessagingPort variant: delivery
// is at-most-once, best-effort, unordered across senders, and FIFO per
// (sender, receiver) pair, with handler dispatch handed off to a dedicated
// per-receiver worker goroutine so a send can never re-enter the caller's
// stack (§4.1).
package inproc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/core/message"
	"github.com/dsimlab/distsim/packages/transport/port"
)

// defaultQueueCapacity bounds how many messages may be buffered for a
// receiver awaiting its worker goroutine. Excess sends are dropped,
// consistent with best-effort delivery.
const defaultQueueCapacity = 1024

type receiver struct {
	queue   *message.Queue
	handler atomic.Value // port.Handler
	cancel  context.CancelFunc
}

// Port is the in-process MessagingPort implementation.
type Port struct {
	mu        sync.RWMutex
	receivers map[id.NodeId]*receiver
}

var _ port.MessagingPort = (*Port)(nil)

// New creates an empty in-process port.
func New() *Port {
	return &Port{receivers: make(map[id.NodeId]*receiver)}
}

// RegisterHandler registers handler for nodeId, replacing any existing
// handler for that id. A message in flight during replacement may be
// delivered to either handler (§4.1).
func (p *Port) RegisterHandler(nodeId id.NodeId, handler port.Handler) {
	p.mu.Lock()
	r, ok := p.receivers[nodeId]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		r = &receiver{
			queue:  message.NewQueue(defaultQueueCapacity),
			cancel: cancel,
		}
		p.receivers[nodeId] = r
		go runReceiver(ctx, r)
	}
	p.mu.Unlock()

	r.handler.Store(handler)
}

// UnregisterHandler removes the handler for nodeId. Messages sent
// afterwards are silently dropped.
func (p *Port) UnregisterHandler(nodeId id.NodeId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.receivers[nodeId]
	if !ok {
		return
	}
	delete(p.receivers, nodeId)
	r.cancel()
}

// Send is a best-effort unicast: silently dropped if no handler is
// registered for receiver, or if the receiver's queue is full. It never
// blocks the caller and never invokes the handler on the caller's stack.
func (p *Port) Send(receiverId id.NodeId, msg message.Message) {
	p.mu.RLock()
	r, ok := p.receivers[receiverId]
	p.mu.RUnlock()
	if !ok {
		return
	}
	r.queue.Enqueue(msg)
}

// Broadcast is equivalent to calling Send for every member of receivers;
// ordering across receivers is not guaranteed.
func (p *Port) Broadcast(receivers []id.NodeId, msg message.Message) {
	for _, receiverId := range receivers {
		p.Send(receiverId, msg)
	}
}

func runReceiver(ctx context.Context, r *receiver) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-r.queue.Channel():
			if !ok {
				return
			}
			if h, ok := r.handler.Load().(port.Handler); ok && h != nil {
				h(msg)
			}
		}
	}
}
