// Package session implements SessionController (§4.9): the façade that
// multiplexes simulation sessions by SessionId, owns each session's engine
// and event bus, and enforces the session lifecycle CREATED ->
// ALGORITHM_SELECTED -> RUNNING -> (PAUSED <-> RUNNING) -> STOPPED.
package session

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dsimlab/distsim/packages/algorithm"
	"github.com/dsimlab/distsim/packages/algorithm/flooding"
	"github.com/dsimlab/distsim/packages/core/event"
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/corerr"
	"github.com/dsimlab/distsim/packages/engine"
	"github.com/dsimlab/distsim/packages/eventbus"
	"github.com/dsimlab/distsim/packages/export"
	"github.com/dsimlab/distsim/packages/transport/port"
)

// DefaultAlgorithmId is the §6 fallback used by getCurrentConfig when a
// session has not yet selected an algorithm.
const DefaultAlgorithmId = flooding.AlgorithmId

// State is a session's lifecycle stage (§3).
type State int

const (
	Created State = iota
	AlgorithmSelected
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "CREATED"
	case AlgorithmSelected:
		return "ALGORITHM_SELECTED"
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

// SimulationConfig is §3's SimulationConfig: network shape, algorithm
// choice, and default run parameters. Round-trip saveable.
type SimulationConfig struct {
	NetworkConfig     engine.NetworkConfig
	AlgorithmId       string
	DefaultParameters engine.Parameters
}

// VisualizationNode is one entry of a VisualizationSnapshot (§3).
type VisualizationNode struct {
	NodeId   string
	State    string // "INITIALIZED" or "RUNNING"
	IsLeader bool
}

// VisualizationSnapshot is §3's VisualizationSnapshot.
type VisualizationSnapshot struct {
	Nodes     []VisualizationNode
	Topology  map[string][]string
	Timestamp int64
}

// entry is a session's internal state (§3's "Session (internal)").
type entry struct {
	mu sync.Mutex

	id            id.SessionId
	networkConfig engine.NetworkConfig
	algorithmId   string
	parameters    *engine.Parameters
	state         State

	eng *engine.Engine
	bus *eventbus.EventBus

	eventLog []event.Event
	leaderId id.NodeId
}

// Controller is the SessionController façade. It is safe for concurrent use.
type Controller struct {
	mu       sync.RWMutex
	sessions map[id.SessionId]*entry

	registry *algorithm.Registry
	newPort  func() port.MessagingPort
	logger   *log.Logger
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithStructuredLogging overrides the Controller's logger, typically with
// one built by internal/corelog.NewStdLogger so every session's engine and
// event bus emit through a structured (logrus) sink instead of the bare
// *log.Logger default. The core packages still only ever see a
// *log.Logger — this option swaps which one, it does not change any core
// package's signature.
func WithStructuredLogging(logger *log.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New constructs a Controller. registry supplies algorithm factories shared
// by every session; newPort constructs a fresh MessagingPort per session
// (the in-process port, typically — see packages/transport/inproc). The
// logger defaults to log.Default(); pass WithStructuredLogging to override.
func New(registry *algorithm.Registry, newPort func() port.MessagingPort, logger *log.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	c := &Controller{
		sessions: make(map[id.SessionId]*entry),
		registry: registry,
		newPort:  newPort,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultRegistry constructs a registry with the reference flooding
// algorithm pre-registered — the pluggable-algorithm dispatch named in §9's
// design notes, generalized from the teacher's single-hardcoded-project
// dispatch.
func NewDefaultRegistry() *algorithm.Registry {
	reg := algorithm.NewRegistry()
	reg.Register(flooding.AlgorithmId, flooding.New)
	return reg
}

// InitializeNetwork creates a new session in CREATED with a fresh engine and
// event bus, seeded by the §6 default randomSeed (callers who need a
// specific seed should use LoadConfig instead).
func (c *Controller) InitializeNetwork(cfg engine.NetworkConfig) (id.SessionId, error) {
	return c.initializeNetwork(cfg, engine.DefaultParameters().RandomSeed)
}

func (c *Controller) initializeNetwork(cfg engine.NetworkConfig, seed int64) (id.SessionId, error) {
	bus := eventbus.New(c.logger)
	eng := engine.New(c.registry, c.newPort(), bus, c.logger)

	if err := eng.CreateNetwork(cfg, seed); err != nil {
		bus.Close()
		return "", err
	}

	e := &entry{
		id:            id.NewSessionId(),
		networkConfig: cfg,
		state:         Created,
		eng:           eng,
		bus:           bus,
	}
	bus.SubscribeAll(func(ev event.Event) {
		e.recordEvent(ev)
	})

	// The bus is registered on e (and e is fully built) before the session
	// becomes externally visible, so no caller can observe a session id
	// with no listening bus behind it (§4.9).
	c.mu.Lock()
	c.sessions[e.id] = e
	c.mu.Unlock()

	return e.id, nil
}

func (e *entry) recordEvent(ev event.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventLog = append(e.eventLog, ev)
	if ev.Kind == event.LeaderElected {
		e.leaderId = id.NewNodeId(ev.NodeId)
	}
}

func (c *Controller) lookup(sid id.SessionId) (*entry, error) {
	c.mu.RLock()
	e, ok := c.sessions[sid]
	c.mu.RUnlock()
	if !ok {
		return nil, corerr.New(corerr.NotFound, "unknown session id")
	}
	return e, nil
}

// SelectAlgorithm configures algId on the session's engine and transitions
// the session to ALGORITHM_SELECTED.
func (c *Controller) SelectAlgorithm(sid id.SessionId, algId string) error {
	if algId == "" {
		return corerr.New(corerr.InvalidArgument, "algorithmId must be non-blank")
	}
	e, err := c.lookup(sid)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.eng.ConfigureAlgorithm(algId); err != nil {
		return err
	}
	e.algorithmId = algId
	e.state = AlgorithmSelected
	return nil
}

// StartSimulation requires the session to be in ALGORITHM_SELECTED.
func (c *Controller) StartSimulation(sid id.SessionId, params engine.Parameters) error {
	e, err := c.lookup(sid)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != AlgorithmSelected {
		return corerr.New(corerr.IllegalState, "startSimulation requires an algorithm to be selected")
	}
	if err := e.eng.Start(params); err != nil {
		return err
	}
	e.parameters = &params
	e.state = Running
	return nil
}

// PauseSimulation requires the session to be RUNNING.
func (c *Controller) PauseSimulation(sid id.SessionId) error {
	e, err := c.lookup(sid)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Running {
		return corerr.New(corerr.IllegalState, "pauseSimulation requires a running session")
	}
	if err := e.eng.Pause(); err != nil {
		return err
	}
	e.state = Paused
	return nil
}

// ResumeSimulation requires the session to be PAUSED.
func (c *Controller) ResumeSimulation(sid id.SessionId) error {
	e, err := c.lookup(sid)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Paused {
		return corerr.New(corerr.IllegalState, "resumeSimulation requires a paused session")
	}
	if err := e.eng.Resume(); err != nil {
		return err
	}
	e.state = Running
	return nil
}

// StopSimulation is idempotent and releases the session's engine-owned
// resources; the session entry itself (event log, metrics) remains
// queryable afterward.
func (c *Controller) StopSimulation(sid id.SessionId) error {
	e, err := c.lookup(sid)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.eng.Stop(); err != nil {
		return err
	}
	e.state = Stopped
	return nil
}

// GetCurrentVisualization builds a VisualizationSnapshot from the session's
// topology and event log: a node that has emitted "Node started" is RUNNING,
// otherwise INITIALIZED.
func (c *Controller) GetCurrentVisualization(sid id.SessionId) (VisualizationSnapshot, error) {
	e, err := c.lookup(sid)
	if err != nil {
		return VisualizationSnapshot{}, err
	}

	e.mu.Lock()
	nodeIds := e.eng.NodeIds()
	topo := e.eng.Topology()
	leader := e.leaderId
	started := make(map[string]bool, len(e.eventLog))
	for _, ev := range e.eventLog {
		if ev.Kind == event.StateChanged && ev.PayloadSummary == "Node started" {
			started[ev.NodeId] = true
		}
	}
	e.mu.Unlock()

	nodes := make([]VisualizationNode, 0, len(nodeIds))
	for _, nid := range nodeIds {
		state := "INITIALIZED"
		if started[nid.Value()] {
			state = "RUNNING"
		}
		nodes = append(nodes, VisualizationNode{
			NodeId:   nid.Value(),
			State:    state,
			IsLeader: !leader.Empty() && leader.Equal(nid),
		})
	}

	topoMap := make(map[string][]string, len(topo))
	for nid, neighbors := range topo {
		peers := make([]string, 0, len(neighbors))
		for peer := range neighbors {
			peers = append(peers, peer.Value())
		}
		sort.Strings(peers)
		topoMap[nid.Value()] = peers
	}

	return VisualizationSnapshot{
		Nodes:     nodes,
		Topology:  topoMap,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// RegisterVisualizationListener subscribes listener to every event kind for
// the session, returning a token for later Unsubscribe via the session's
// bus (exposed by an accessor is unnecessary: callers unsubscribe by
// tracking the returned id and calling UnregisterVisualizationListener).
func (c *Controller) RegisterVisualizationListener(sid id.SessionId, listener eventbus.Listener) (eventbus.SubscriptionId, error) {
	e, err := c.lookup(sid)
	if err != nil {
		return 0, err
	}
	return e.bus.SubscribeAll(listener), nil
}

// UnregisterVisualizationListener removes a subscription previously returned
// by RegisterVisualizationListener.
func (c *Controller) UnregisterVisualizationListener(sid id.SessionId, subId eventbus.SubscriptionId) error {
	e, err := c.lookup(sid)
	if err != nil {
		return err
	}
	e.bus.Unsubscribe(subId)
	return nil
}

// GetMetrics returns the engine's snapshot with leaderId overridden by the
// session-tracked leader when the two disagree (§4.9).
func (c *Controller) GetMetrics(sid id.SessionId) (engine.Snapshot, error) {
	e, err := c.lookup(sid)
	if err != nil {
		return engine.Snapshot{}, err
	}

	snap := e.eng.Metrics()

	e.mu.Lock()
	leader := e.leaderId
	e.mu.Unlock()

	if !leader.Empty() && !leader.Equal(snap.LeaderId) {
		snap.LeaderId = leader
	}
	return snap, nil
}

// GetCurrentConfig reconstructs the session's SimulationConfig, filling in
// the §6 defaults for an algorithm or parameters that were never selected.
func (c *Controller) GetCurrentConfig(sid id.SessionId) (SimulationConfig, error) {
	e, err := c.lookup(sid)
	if err != nil {
		return SimulationConfig{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	algId := e.algorithmId
	if algId == "" {
		algId = DefaultAlgorithmId
	}
	params := engine.DefaultParameters()
	if e.parameters != nil {
		params = *e.parameters
	}

	return SimulationConfig{
		NetworkConfig:     e.networkConfig,
		AlgorithmId:       algId,
		DefaultParameters: params,
	}, nil
}

// LoadConfig is equivalent to InitializeNetwork followed by SelectAlgorithm:
// parameters are stored on the session but the simulation is not started.
func (c *Controller) LoadConfig(cfg SimulationConfig) (id.SessionId, error) {
	if cfg.AlgorithmId == "" {
		return "", corerr.New(corerr.InvalidArgument, "algorithmId must be non-blank")
	}

	sid, err := c.initializeNetwork(cfg.NetworkConfig, cfg.DefaultParameters.RandomSeed)
	if err != nil {
		return "", err
	}
	if err := c.SelectAlgorithm(sid, cfg.AlgorithmId); err != nil {
		return "", err
	}

	e, err := c.lookup(sid)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	params := cfg.DefaultParameters
	e.parameters = &params
	e.mu.Unlock()

	return sid, nil
}

// GetLogs returns the session's event log ordered by timestamp (events with
// equal timestamps keep their publication order), optionally filtered by a
// case-insensitive substring match across kind, nodeId, peerId, and
// payloadSummary.
func (c *Controller) GetLogs(sid id.SessionId, filter string) ([]event.Event, error) {
	e, err := c.lookup(sid)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]event.Event, 0, len(e.eventLog))
	for _, ev := range e.eventLog {
		if ev.Matches(filter) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// Events returns a defensive copy of the session's full event log, for
// callers (e.g. export) that need the raw, unfiltered history.
func (c *Controller) Events(sid id.SessionId) ([]event.Event, error) {
	e, err := c.lookup(sid)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]event.Event, len(e.eventLog))
	copy(out, e.eventLog)
	return out, nil
}

// InjectNodeCrash unregisters a node's MessagingPort handler: messages to it
// are dropped per §4.1's existing "no handler registered" rule. Simple node
// crash/recover as an operator action is not excluded by §1's Non-goals
// (those exclude Byzantine fault tolerance and simulated network-loss
// modelling, not this).
func (c *Controller) InjectNodeCrash(sid id.SessionId, nodeId id.NodeId) error {
	e, err := c.lookup(sid)
	if err != nil {
		return err
	}
	return e.eng.CrashNode(nodeId)
}

// RecoverNode re-registers a previously crashed node's handler.
func (c *Controller) RecoverNode(sid id.SessionId, nodeId id.NodeId) error {
	e, err := c.lookup(sid)
	if err != nil {
		return err
	}
	return e.eng.RecoverNode(nodeId)
}

// ExportRunData serializes the session's {events, metrics} as format
// ("json" or "csv", case-insensitive) per §6.
func (c *Controller) ExportRunData(sid id.SessionId, format string) ([]byte, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	e, err := c.lookup(sid)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	events := make([]event.Event, len(e.eventLog))
	copy(events, e.eventLog)
	e.mu.Unlock()

	metrics := e.eng.Metrics()
	return export.Run(events, metrics, f)
}

// Metrics is an alias kept for callers (e.g. export) that prefer the bare
// engine snapshot without the session-leader override GetMetrics applies.
func (c *Controller) Metrics(sid id.SessionId) (engine.Snapshot, error) {
	e, err := c.lookup(sid)
	if err != nil {
		return engine.Snapshot{}, err
	}
	return e.eng.Metrics(), nil
}
