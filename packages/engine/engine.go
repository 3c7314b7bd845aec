// Package engine implements SimulationEngine (§4.7): it owns one session's
// topology, nodes, and messaging port; drives the simulation loop; and
// performs convergence detection by polling each node's algorithm state.
package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dsimlab/distsim/packages/algorithm"
	"github.com/dsimlab/distsim/packages/core/event"
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/core/message"
	"github.com/dsimlab/distsim/packages/corerr"
	"github.com/dsimlab/distsim/packages/eventbus"
	"github.com/dsimlab/distsim/packages/node"
	"github.com/dsimlab/distsim/packages/simclock"
	"github.com/dsimlab/distsim/packages/topology"
	"github.com/dsimlab/distsim/packages/transport/port"
)

// State is the engine's own lifecycle stage, independent of (but driving)
// the SessionController's session-level state machine.
type State int

const (
	Uninitialized State = iota
	Initialized
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Initialized:
		return "INITIALIZED"
	case Running:
		return "RUNNING"
	case Paused:
		return "PAUSED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// NetworkConfig is the input to CreateNetwork: §3's NetworkConfig.
type NetworkConfig struct {
	NodeCount    int
	TopologyType topology.Type
}

// Parameters is §3's SimulationParameters, plus the additive, off-by-default
// CausalOrdering enrichment (SPEC_FULL.md) that stamps outbound messages
// with a Lamport counter instead of leaving Message.Seq unset.
type Parameters struct {
	RandomSeed         int64
	MaxSteps           int
	MessageDelayMillis int64
	CausalOrdering     bool
}

// DefaultParameters is the §6 fallback used when a session has none:
// {seed=1, maxSteps=100, messageDelayMillis=0}.
func DefaultParameters() Parameters {
	return Parameters{RandomSeed: 1, MaxSteps: 100, MessageDelayMillis: 0}
}

const convergenceInspectionInterval = 10
const pausePollInterval = 100 * time.Millisecond
const stopJoinTimeout = 5 * time.Second

// Engine orchestrates one session end to end. It is safe for concurrent use.
type Engine struct {
	registry *algorithm.Registry
	port     port.MessagingPort
	bus      *eventbus.EventBus
	metrics  *Metrics
	logger   *log.Logger

	mu          sync.Mutex
	state       State
	topo        topology.Graph
	nodes       map[id.NodeId]*node.SimulationNode
	algorithmId string
	params      Parameters
	clocks      map[id.NodeId]*simclock.LamportClock

	currentStep         int
	lastPublishedLeader id.NodeId

	stopCh   chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
}

// New constructs an engine bound to the given algorithm registry, messaging
// port, and event bus. A nil logger defaults to log.Default().
func New(registry *algorithm.Registry, p port.MessagingPort, bus *eventbus.EventBus, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		registry: registry,
		port:     p,
		bus:      bus,
		metrics:  NewMetrics(),
		logger:   logger,
		nodes:    make(map[id.NodeId]*node.SimulationNode),
	}
}

// State returns the engine's current lifecycle stage.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// AlgorithmId returns the currently configured algorithm id, or "" if none.
func (e *Engine) AlgorithmId() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.algorithmId
}

// Metrics returns an atomic snapshot of the session's metrics (§4.8).
func (e *Engine) Metrics() Snapshot {
	return e.metrics.Snapshot()
}

// Topology returns a defensive copy of the generated neighbor map.
func (e *Engine) Topology() topology.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(topology.Graph, len(e.topo))
	for n, neighbors := range e.topo {
		set := make(map[id.NodeId]struct{}, len(neighbors))
		for peer := range neighbors {
			set[peer] = struct{}{}
		}
		cp[n] = set
	}
	return cp
}

// NodeIds returns every node id in the current topology, sorted.
func (e *Engine) NodeIds() []id.NodeId {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.topo == nil {
		return nil
	}
	return e.topo.NodeIds()
}

// CreateNetwork generates a topology for cfg seeded by seed, discards any
// previously configured nodes/handlers, and transitions the engine to
// INITIALIZED (§4.7).
func (e *Engine) CreateNetwork(cfg NetworkConfig, seed int64) error {
	if cfg.NodeCount <= 0 {
		return corerr.New(corerr.InvalidArgument, "nodeCount must be >= 1")
	}

	graph, err := topology.Generate(cfg.NodeCount, cfg.TopologyType, seed)
	if err != nil {
		return corerr.Wrap(corerr.InvalidArgument, "invalid topology config", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for nodeId := range e.nodes {
		e.port.UnregisterHandler(nodeId)
	}

	e.topo = graph
	e.nodes = make(map[id.NodeId]*node.SimulationNode)
	e.algorithmId = ""
	e.state = Initialized
	return nil
}

// ConfigureAlgorithm resolves algorithmId via the registry, instantiates a
// fresh algorithm per node, and rebuilds every SimulationNode, re-registering
// its handler (§4.7). It requires CreateNetwork to have run.
func (e *Engine) ConfigureAlgorithm(algorithmId string) error {
	if algorithmId == "" {
		return corerr.New(corerr.InvalidArgument, "algorithmId must be non-blank")
	}
	if !e.registry.Has(algorithmId) {
		return corerr.Newf(corerr.InvalidArgument, "unknown algorithm id: %s", algorithmId)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.topo == nil {
		return corerr.New(corerr.IllegalState, "createNetwork must run before configureAlgorithm")
	}

	for nodeId := range e.nodes {
		e.port.UnregisterHandler(nodeId)
	}

	nodeIds := e.topo.NodeIds()
	nodes := make(map[id.NodeId]*node.SimulationNode, len(nodeIds))
	for _, nodeId := range nodeIds {
		alg, err := e.registry.New(algorithmId)
		if err != nil {
			return corerr.Wrap(corerr.InvalidArgument, "unknown algorithm id", err)
		}

		neighbors := e.topo.Neighbors(nodeId)
		ctx := &nodeContext{self: nodeId, neighbors: neighbors, eng: e}
		n := node.New(nodeId, neighbors, alg, ctx)
		nodes[nodeId] = n

		e.port.RegisterHandler(nodeId, e.makeHandler(nodeId, n))
	}

	e.nodes = nodes
	e.algorithmId = algorithmId
	return nil
}

// makeHandler builds the port.Handler for nodeId: fold the sender's Lamport
// stamp into this node's own clock when CausalOrdering is on, publish
// MESSAGE_RECEIVED, then dispatch to the node's lifecycle wrapper.
func (e *Engine) makeHandler(nodeId id.NodeId, n *node.SimulationNode) port.Handler {
	return func(msg message.Message) {
		summary := fmt.Sprintf("%s received %s from %s", nodeId.Value(), msg.MessageType, msg.Sender.Value())
		if msg.Seq != nil {
			if observed, ok := e.observe(nodeId, *msg.Seq); ok {
				summary = fmt.Sprintf("%s (lamport=%d)", summary, observed)
			}
		}
		e.publish(event.MessageReceived, nodeId.Value(), msg.Sender.Value(), summary)
		if err := n.OnMessage(msg); err != nil {
			e.logger.Printf("engine: node %s onMessage error: %v", nodeId.Value(), err)
		}
	}
}

// nodeClock returns nodeId's own Lamport clock, lazily creating it, or false
// if CausalOrdering is off for the current run.
func (e *Engine) nodeClock(nodeId id.NodeId) (*simclock.LamportClock, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.params.CausalOrdering {
		return nil, false
	}
	if e.clocks == nil {
		e.clocks = make(map[id.NodeId]*simclock.LamportClock)
	}
	clock, ok := e.clocks[nodeId]
	if !ok {
		clock = simclock.New()
		e.clocks[nodeId] = clock
	}
	return clock, true
}

// observe folds a received Lamport timestamp into nodeId's own clock: each
// node keeps an independent clock, advanced locally on send and folded
// forward to max(local, received)+1 on receipt, exactly as a Lamport clock
// is defined to behave across distinct processes.
func (e *Engine) observe(nodeId id.NodeId, received uint64) (uint64, bool) {
	clock, ok := e.nodeClock(nodeId)
	if !ok {
		return 0, false
	}
	return clock.Observe(received), true
}

// CrashNode unregisters nodeId's handler without removing it from the node
// map: the node object and its algorithm state survive, but messages to it
// are dropped per §4.1's existing "no handler registered" rule until
// RecoverNode re-registers the same handler. This is the additive failure-
// injection enrichment from SPEC_FULL.md, not a core §4 operation.
func (e *Engine) CrashNode(nodeId id.NodeId) error {
	e.mu.Lock()
	_, ok := e.nodes[nodeId]
	e.mu.Unlock()
	if !ok {
		return corerr.New(corerr.NotFound, "unknown node id")
	}
	e.port.UnregisterHandler(nodeId)
	e.publish(event.StateChanged, nodeId.Value(), "", "Node crashed")
	return nil
}

// RecoverNode re-registers nodeId's handler after a prior CrashNode.
func (e *Engine) RecoverNode(nodeId id.NodeId) error {
	e.mu.Lock()
	n, ok := e.nodes[nodeId]
	e.mu.Unlock()
	if !ok {
		return corerr.New(corerr.NotFound, "unknown node id")
	}
	e.port.RegisterHandler(nodeId, e.makeHandler(nodeId, n))
	e.publish(event.StateChanged, nodeId.Value(), "", "Node recovered")
	return nil
}

// Start requires a topology and a selected algorithm. It resets metrics,
// marks every node ready, starts every node (mark-then-start, §4.4), and
// launches the simulation loop.
func (e *Engine) Start(params Parameters) error {
	if params.MaxSteps < 1 {
		return corerr.New(corerr.InvalidArgument, "maxSteps must be >= 1")
	}

	e.mu.Lock()
	if e.topo == nil || e.algorithmId == "" {
		e.mu.Unlock()
		return corerr.New(corerr.IllegalState, "createNetwork and configureAlgorithm must run before start")
	}
	if e.state == Running {
		e.mu.Unlock()
		return corerr.New(corerr.IllegalState, "simulation already running")
	}

	e.params = params
	e.currentStep = 0
	e.lastPublishedLeader = ""
	nodeIds := e.topo.NodeIds()
	if params.CausalOrdering {
		clocks := make(map[id.NodeId]*simclock.LamportClock, len(nodeIds))
		for _, nodeId := range nodeIds {
			clocks[nodeId] = simclock.New()
		}
		e.clocks = clocks
	} else {
		e.clocks = nil
	}

	nodes := make([]*node.SimulationNode, 0, len(nodeIds))
	for _, nodeId := range nodeIds {
		nodes = append(nodes, e.nodes[nodeId])
	}

	e.stopCh = make(chan struct{})
	e.loopDone = make(chan struct{})
	e.stopOnce = sync.Once{}
	e.state = Running
	stopCh, loopDone := e.stopCh, e.loopDone
	e.mu.Unlock()

	e.metrics.Start()
	e.publish(event.StateChanged, event.SystemNode, "", "Simulation started")

	for _, n := range nodes {
		if err := n.MarkReady(); err != nil {
			e.logger.Printf("engine: markReady failed for %s: %v", n.Id().Value(), err)
		}
	}
	for _, n := range nodes {
		if err := n.OnStart(); err != nil {
			e.logger.Printf("engine: onStart failed for %s: %v", n.Id().Value(), err)
			continue
		}
		e.publish(event.StateChanged, n.Id().Value(), "", "Node started")
	}

	go e.loop(stopCh, loopDone)
	return nil
}

// Pause is only valid from RUNNING.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return corerr.New(corerr.IllegalState, "pause requires a running simulation")
	}
	e.state = Paused
	e.mu.Unlock()
	e.publish(event.StateChanged, event.SystemNode, "", "Simulation paused")
	return nil
}

// Resume is only valid from PAUSED.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != Paused {
		e.mu.Unlock()
		return corerr.New(corerr.IllegalState, "resume requires a paused simulation")
	}
	e.state = Running
	e.mu.Unlock()
	e.publish(event.StateChanged, event.SystemNode, "", "Simulation resumed")
	return nil
}

// Stop is idempotent: it signals the loop, waits up to 5s, performs a final
// convergence inspection, publishes "Simulation stopped", then unregisters
// every handler (§4.7). Calling Stop on an already-stopped engine, including
// one whose loop already ended at maxSteps, is a no-op. A never-started
// engine still runs the final inspection, publishes "Simulation stopped",
// and unregisters its handlers.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state == Stopped {
		e.mu.Unlock()
		return nil
	}
	stopCh, loopDone := e.stopCh, e.loopDone
	e.mu.Unlock()

	if stopCh != nil {
		e.stopOnce.Do(func() { close(stopCh) })
		select {
		case <-loopDone:
		case <-time.After(stopJoinTimeout):
		}
	}

	e.finalizeConvergence()

	e.mu.Lock()
	e.state = Stopped
	nodeIds := make([]id.NodeId, 0, len(e.nodes))
	for nodeId := range e.nodes {
		nodeIds = append(nodeIds, nodeId)
	}
	e.mu.Unlock()

	e.publish(event.StateChanged, event.SystemNode, "", "Simulation stopped")

	for _, nodeId := range nodeIds {
		e.port.UnregisterHandler(nodeId)
	}
	return nil
}

// loop is the simulation's dedicated cooperative task (§4.7, §5).
func (e *Engine) loop(stopCh <-chan struct{}, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		e.mu.Lock()
		step := e.currentStep
		maxSteps := e.params.MaxSteps
		state := e.state
		e.mu.Unlock()

		if state == Stopped {
			return
		}

		if step >= maxSteps {
			e.mu.Lock()
			e.state = Stopped
			nodeIds := make([]id.NodeId, 0, len(e.nodes))
			for nodeId := range e.nodes {
				nodeIds = append(nodeIds, nodeId)
			}
			e.mu.Unlock()
			e.publish(event.StateChanged, event.SystemNode, "", fmt.Sprintf("reached maxSteps (%d)", maxSteps))
			for _, nodeId := range nodeIds {
				e.port.UnregisterHandler(nodeId)
			}
			return
		}

		if state == Paused {
			time.Sleep(pausePollInterval)
			continue
		}

		e.executeStep(step)

		e.mu.Lock()
		e.currentStep++
		e.mu.Unlock()
		e.metrics.AddRound()
		e.metrics.AdvanceSimulatedTime(1)

		delayMillis := e.params.MessageDelayMillis
		if delayMillis < 1 {
			delayMillis = 1
		}
		time.Sleep(time.Duration(delayMillis) * time.Millisecond)
	}
}

// executeStep is the per-iteration placeholder named in §9's open question:
// the flooding algorithm advances via message passing, not per-step work, so
// this only performs periodic convergence inspection.
func (e *Engine) executeStep(step int) {
	if step%convergenceInspectionInterval == 0 {
		e.inspectConvergence()
	}
}

// computeLeader reports the network's agreed leader and whether every node
// reports it, by polling algorithm.StateInspectable. A node whose algorithm
// doesn't implement it, or that has no leader yet, makes the network
// non-stable.
func (e *Engine) computeLeader() (id.NodeId, bool) {
	e.mu.Lock()
	nodes := make([]*node.SimulationNode, 0, len(e.nodes))
	for _, n := range e.nodes {
		nodes = append(nodes, n)
	}
	e.mu.Unlock()

	if len(nodes) == 0 {
		return "", false
	}

	var leader id.NodeId
	first := true
	for _, n := range nodes {
		insp, ok := n.Algorithm().(algorithm.StateInspectable)
		if !ok {
			return "", false
		}
		snap := insp.SnapshotState()
		if snap.CurrentLeader.Empty() {
			return "", false
		}
		if first {
			leader = snap.CurrentLeader
			first = false
			continue
		}
		if !leader.Equal(snap.CurrentLeader) {
			return "", false
		}
	}
	return leader, true
}

// checkMaxWitness emits the §4.7 correctness-witness warning when the agreed
// leader isn't the network's maximum id.
func (e *Engine) checkMaxWitness(leader id.NodeId) {
	e.mu.Lock()
	var ids []id.NodeId
	if e.topo != nil {
		ids = e.topo.NodeIds()
	}
	e.mu.Unlock()

	maxId, ok := id.MaxOf(ids)
	if ok && !leader.Equal(maxId) {
		e.publish(event.StateChanged, event.SystemNode, "",
			fmt.Sprintf("leader %s is not the maximum id %s", leader.Value(), maxId.Value()))
	}
}

// inspectConvergence is the periodic (every 10 steps) convergence pass
// (§4.7). It publishes LEADER_ELECTED only when the agreed leader changes
// from the last one published (OQ2 in SPEC_FULL.md).
func (e *Engine) inspectConvergence() {
	leader, stable := e.computeLeader()
	if !stable {
		e.metrics.ClearLeader()
		e.metrics.SetConverged(false)
		return
	}

	e.checkMaxWitness(leader)
	e.metrics.SetLeader(leader)
	e.metrics.SetConverged(true)

	e.mu.Lock()
	changed := e.lastPublishedLeader.Empty() || !e.lastPublishedLeader.Equal(leader)
	if changed {
		e.lastPublishedLeader = leader
	}
	e.mu.Unlock()

	if changed {
		e.publish(event.LeaderElected, leader.Value(), "", fmt.Sprintf("leader elected: %s", leader.Value()))
	}
}

// finalizeConvergence runs on Stop: one last inspection, always emitting a
// terminal LEADER_ELECTED if a stable leader exists, independent of whether
// that value was already published by inspectConvergence (§4.7, §5).
func (e *Engine) finalizeConvergence() {
	leader, stable := e.computeLeader()
	if !stable {
		e.metrics.ClearLeader()
		e.metrics.SetConverged(false)
		return
	}

	e.checkMaxWitness(leader)
	e.metrics.SetLeader(leader)
	e.metrics.SetConverged(true)
	e.publish(event.LeaderElected, leader.Value(), "", fmt.Sprintf("leader elected: %s", leader.Value()))
}

// publish builds and publishes an Event with the current wall-clock
// timestamp. payloadSummary is always supplied non-empty by call sites.
func (e *Engine) publish(kind event.Kind, nodeId, peerId, payloadSummary string) {
	ev, err := event.New(time.Now().UnixMilli(), kind, nodeId, peerId, payloadSummary)
	if err != nil {
		return
	}
	e.bus.Publish(ev)
}

// sendFrom constructs a Message from sender to target and forwards it to the
// port, incrementing the message counter and publishing MESSAGE_SENT (§4.3).
// When CausalOrdering is on, the message is stamped with a tick of sender's
// own Lamport clock, not a single session-wide counter: each node advances
// independently, and only receipt (see makeHandler/observe) folds clocks
// back together.
func (e *Engine) sendFrom(sender, target id.NodeId, messageType string, payload interface{}) {
	msg := message.New(sender, target, messageType, payload)

	if clock, ok := e.nodeClock(sender); ok {
		msg = msg.WithSeq(clock.Tick())
	}

	e.port.Send(target, msg)
	e.metrics.IncrementMessageCount()
	e.publish(event.MessageSent, sender.Value(), target.Value(),
		fmt.Sprintf("%s -> %s: %s", sender.Value(), target.Value(), messageType))
}
