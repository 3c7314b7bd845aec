// Package faultinjector adapts the teacher's scheduled crash/recover
// injector (packages/failure/injector) to operate through SessionController
// instead of a bespoke NodeManager/NetworkManager pair: it schedules
// InjectNodeCrash/RecoverNode calls at relative offsets from when the
// injector starts, for a session's nodes.
package faultinjector

import (
	"sync"
	"time"

	"github.com/dsimlab/distsim/packages/core/id"
)

// Controller is the subset of session.Controller the injector drives.
// Accepting the interface rather than the concrete type keeps this package
// independent of packages/session, avoiding an import cycle if the
// controller ever needs failure-injection hooks of its own.
type Controller interface {
	InjectNodeCrash(sid id.SessionId, nodeId id.NodeId) error
	RecoverNode(sid id.SessionId, nodeId id.NodeId) error
}

// Schedule is one crash, optionally followed by an automatic recovery.
type Schedule struct {
	NodeId    id.NodeId
	At        time.Duration // offset from Injector.Start
	Duration  time.Duration // 0 means permanent (no scheduled recovery)
}

// Injector runs a session's scheduled node crashes/recoveries on a ticking
// background goroutine, mirroring the teacher's runScheduler loop.
type Injector struct {
	mu        sync.Mutex
	ctrl      Controller
	sessionId id.SessionId

	pending []pendingAction
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

type pendingAction struct {
	nodeId    id.NodeId
	at        time.Duration
	isRecover bool
}

// New constructs an injector for one session's scheduled failures.
func New(ctrl Controller, sessionId id.SessionId) *Injector {
	return &Injector{ctrl: ctrl, sessionId: sessionId}
}

// Schedule queues a crash (and, if Duration > 0, a matching recovery). It
// must be called before Start.
func (inj *Injector) Schedule(s Schedule) {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	inj.pending = append(inj.pending, pendingAction{nodeId: s.NodeId, at: s.At})
	if s.Duration > 0 {
		inj.pending = append(inj.pending, pendingAction{nodeId: s.NodeId, at: s.At + s.Duration, isRecover: true})
	}
}

// Start begins executing the schedule relative to now.
func (inj *Injector) Start() {
	inj.mu.Lock()
	if inj.running {
		inj.mu.Unlock()
		return
	}
	inj.running = true
	inj.stopCh = make(chan struct{})
	inj.doneCh = make(chan struct{})
	stopCh, doneCh := inj.stopCh, inj.doneCh
	inj.mu.Unlock()

	go inj.run(stopCh, doneCh)
}

// Stop halts the scheduler; already-executed actions are not undone.
func (inj *Injector) Stop() {
	inj.mu.Lock()
	if !inj.running {
		inj.mu.Unlock()
		return
	}
	inj.running = false
	stopCh, doneCh := inj.stopCh, inj.doneCh
	inj.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (inj *Injector) run(stopCh <-chan struct{}, done chan struct{}) {
	defer close(done)

	started := time.Now()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(started)

			inj.mu.Lock()
			var due []pendingAction
			remaining := inj.pending[:0:0]
			for _, a := range inj.pending {
				if a.at <= elapsed {
					due = append(due, a)
				} else {
					remaining = append(remaining, a)
				}
			}
			inj.pending = remaining
			inj.mu.Unlock()

			for _, a := range due {
				if a.isRecover {
					inj.ctrl.RecoverNode(inj.sessionId, a.nodeId)
				} else {
					inj.ctrl.InjectNodeCrash(inj.sessionId, a.nodeId)
				}
			}
		}
	}
}
