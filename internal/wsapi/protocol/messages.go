// Package protocol defines the WebSocket wire messages the UI-facing
// adapter (internal/wsapi) exchanges with browser clients. It is outside
// the core's scope (§1): the core exposes VisualizationSnapshot and
// MetricsSnapshot; this package is the richer, UI-convenient projection the
// teacher's own protocol package demonstrates (adapted from
// packages/protocol/messages.go).
package protocol

import "encoding/json"

// MessageType identifies a WebSocket message's shape.
type MessageType string

// Client -> server message types.
const (
	MsgStartSimulation  MessageType = "start_simulation"
	MsgPauseSimulation  MessageType = "pause_simulation"
	MsgResumeSimulation MessageType = "resume_simulation"
	MsgStopSimulation   MessageType = "stop_simulation"
	MsgInjectCrash      MessageType = "inject_crash"
	MsgRecoverNode      MessageType = "recover_node"
	MsgGetState         MessageType = "get_state"
)

// Server -> client message types.
const (
	MsgSimulationState MessageType = "simulation_state"
	MsgNodeStateUpdate MessageType = "node_state_update"
	MsgMessageSent     MessageType = "message_sent"
	MsgMessageReceived MessageType = "message_received"
	MsgLeaderElected   MessageType = "leader_elected"
	MsgTimelineEvent   MessageType = "timeline_event"
	MsgError           MessageType = "error"
)

// BaseMessage is the common envelope every inbound message carries, enough
// to dispatch on Type before parsing the rest.
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// StartSimulationRequest requests a session be created and started in one
// round trip.
type StartSimulationRequest struct {
	Type        MessageType `json:"type"`
	NodeCount   int         `json:"nodeCount"`
	Topology    string      `json:"topology"`
	AlgorithmId string      `json:"algorithmId"`
	Seed        int64       `json:"seed,omitempty"`
	MaxSteps    int         `json:"maxSteps,omitempty"`
	DelayMillis int64       `json:"delayMillis,omitempty"`
}

// InjectCrashRequest and RecoverNodeRequest target one node by id.
type InjectCrashRequest struct {
	Type   MessageType `json:"type"`
	NodeId string      `json:"nodeId"`
}

type RecoverNodeRequest struct {
	Type   MessageType `json:"type"`
	NodeId string      `json:"nodeId"`
}

// NodeState is the richer, UI-facing projection of one
// session.VisualizationNode (internal/wsapi/present.go builds these).
type NodeState struct {
	Id        string   `json:"id"`
	Status    string   `json:"status"` // "INITIALIZED" or "RUNNING"
	IsLeader  bool     `json:"isLeader"`
	Neighbors []string `json:"neighbors"`
}

// SimulationStateResponse is the full-state push sent on connect and after
// every state-changing operation.
type SimulationStateResponse struct {
	Type      MessageType          `json:"type"`
	SessionId string               `json:"sessionId"`
	Timestamp int64                `json:"timestamp"`
	Converged bool                 `json:"converged"`
	LeaderId  string               `json:"leaderId,omitempty"`
	Nodes     map[string]NodeState `json:"nodes"`
}

// TimelineEvent mirrors one published core event for the UI's activity log.
type TimelineEvent struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Kind      string      `json:"kind"`
	NodeId    string      `json:"nodeId"`
	PeerId    string      `json:"peerId,omitempty"`
	Summary   string      `json:"summary"`
}

// ErrorResponse reports a request-level failure back to the client.
type ErrorResponse struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// ParseMessageType extracts just the envelope's Type field so the caller can
// dispatch before decoding the full payload.
func ParseMessageType(data []byte) (MessageType, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return "", err
	}
	return base.Type, nil
}

// NewError builds an ErrorResponse.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{Type: MsgError, Code: code, Message: message}
}
