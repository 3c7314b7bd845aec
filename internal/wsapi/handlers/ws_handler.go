package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dsimlab/distsim/internal/wsapi"
	"github.com/dsimlab/distsim/internal/wsapi/protocol"
	"github.com/dsimlab/distsim/packages/core/event"
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/engine"
	"github.com/dsimlab/distsim/packages/session"
	"github.com/dsimlab/distsim/packages/topology"
)

// upgrader matches the teacher's CORS-permissive development upgrader:
// browser-origin checks belong to a reverse proxy in front of this server,
// not this handler.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wires a Hub to a session.Controller: every connected client gets
// its own session, driven entirely by protocol.MessageType requests, with
// state pushed back via PresentState/PresentEvent.
type Server struct {
	hub        *Hub
	controller *session.Controller

	mu       sync.RWMutex
	sessions map[string]id.SessionId // clientId -> session
}

// NewServer constructs a Server and starts its Hub's dispatch loop.
func NewServer(controller *session.Controller) *Server {
	s := &Server{
		hub:        NewHub(),
		controller: controller,
		sessions:   make(map[string]id.SessionId),
	}
	s.hub.SetMessageHandler(s.handleMessage)
	go s.hub.Run()
	return s
}

// ServeHTTP upgrades the connection and registers a new Client with the hub.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wsapi: upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 64),
		id:   uuid.New().String(),
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleMessage(clientId string, msgType string, data []byte) {
	switch protocol.MessageType(msgType) {
	case protocol.MsgStartSimulation:
		s.handleStartSimulation(clientId, data)
	case protocol.MsgPauseSimulation:
		s.withSession(clientId, s.controller.PauseSimulation)
	case protocol.MsgResumeSimulation:
		s.withSession(clientId, s.controller.ResumeSimulation)
	case protocol.MsgStopSimulation:
		s.withSession(clientId, s.controller.StopSimulation)
	case protocol.MsgInjectCrash:
		s.handleNodeTarget(clientId, data, s.controller.InjectNodeCrash)
	case protocol.MsgRecoverNode:
		s.handleNodeTarget(clientId, data, s.controller.RecoverNode)
	case protocol.MsgGetState:
		s.pushState(clientId)
	default:
		s.sendError(clientId, "UNKNOWN_MESSAGE_TYPE", "unrecognized message type: "+msgType)
	}
}

func (s *Server) handleStartSimulation(clientId string, data []byte) {
	var req protocol.StartSimulationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(clientId, "BAD_REQUEST", err.Error())
		return
	}

	cfg := engine.NetworkConfig{
		NodeCount:    req.NodeCount,
		TopologyType: topology.Type(req.Topology),
	}
	sid, err := s.controller.InitializeNetwork(cfg)
	if err != nil {
		s.sendError(clientId, "INVALID_CONFIG", err.Error())
		return
	}

	algId := req.AlgorithmId
	if algId == "" {
		algId = session.DefaultAlgorithmId
	}
	if err := s.controller.SelectAlgorithm(sid, algId); err != nil {
		s.sendError(clientId, "INVALID_ALGORITHM", err.Error())
		return
	}

	params := engine.DefaultParameters()
	if req.Seed != 0 {
		params.RandomSeed = req.Seed
	}
	if req.MaxSteps != 0 {
		params.MaxSteps = req.MaxSteps
	}
	if req.DelayMillis != 0 {
		params.MessageDelayMillis = req.DelayMillis
	}
	if err := s.controller.StartSimulation(sid, params); err != nil {
		s.sendError(clientId, "START_FAILED", err.Error())
		return
	}

	s.mu.Lock()
	s.sessions[clientId] = sid
	s.mu.Unlock()
	s.controller.RegisterVisualizationListener(sid, func(ev event.Event) {
		s.pushEvent(clientId, ev)
		s.pushState(clientId)
	})
	s.pushState(clientId)
}

func (s *Server) handleNodeTarget(clientId string, data []byte, op func(id.SessionId, id.NodeId) error) {
	var req protocol.InjectCrashRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(clientId, "BAD_REQUEST", err.Error())
		return
	}
	s.mu.RLock()
	sid, ok := s.sessions[clientId]
	s.mu.RUnlock()
	if !ok {
		s.sendError(clientId, "NO_SESSION", "no active session for this connection")
		return
	}
	if err := op(sid, id.NewNodeId(req.NodeId)); err != nil {
		s.sendError(clientId, "OPERATION_FAILED", err.Error())
		return
	}
	s.pushState(clientId)
}

func (s *Server) withSession(clientId string, op func(id.SessionId) error) {
	s.mu.RLock()
	sid, ok := s.sessions[clientId]
	s.mu.RUnlock()
	if !ok {
		s.sendError(clientId, "NO_SESSION", "no active session for this connection")
		return
	}
	if err := op(sid); err != nil {
		s.sendError(clientId, "OPERATION_FAILED", err.Error())
		return
	}
	s.pushState(clientId)
}

func (s *Server) pushState(clientId string) {
	s.mu.RLock()
	sid, ok := s.sessions[clientId]
	s.mu.RUnlock()
	if !ok {
		return
	}
	snap, err := s.controller.GetCurrentVisualization(sid)
	if err != nil {
		return
	}
	metrics, err := s.controller.GetMetrics(sid)
	if err != nil {
		return
	}
	resp := wsapi.PresentState(sid.Value(), snap, metrics.Converged, metrics.LeaderId.Value())
	s.hub.SendJSONToClient(clientId, resp)
}

func (s *Server) pushEvent(clientId string, ev event.Event) {
	s.hub.SendJSONToClient(clientId, wsapi.PresentEvent(ev))
}

func (s *Server) sendError(clientId, code, message string) {
	s.hub.SendJSONToClient(clientId, protocol.NewError(code, message))
}

