// Package event defines the Event record published on a session's EventBus
// and its JSON and log-line wire forms.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes an Event.
type Kind string

const (
	MessageSent     Kind = "MESSAGE_SENT"
	MessageReceived Kind = "MESSAGE_RECEIVED"
	StateChanged    Kind = "STATE_CHANGED"
	LeaderElected   Kind = "LEADER_ELECTED"
	Error           Kind = "ERROR"
	MetricsUpdate   Kind = "METRICS_UPDATE"
)

// SystemNode is the nodeId used for diagnostic events with no single owning
// node (engine- or session-scoped narration).
const SystemNode = "system"

// ErrInvalidEvent is returned by New when required fields are missing.
var ErrInvalidEvent = errors.New("event: payloadSummary must be non-empty")

// Event is an immutable record describing an observable occurrence inside a
// simulation session.
type Event struct {
	Timestamp      int64
	Kind           Kind
	NodeId         string
	PeerId         string // empty means "not set"
	PayloadSummary string
}

// New constructs an Event, validating the non-empty payloadSummary
// invariant from §3. nodeId defaults to SystemNode when blank.
func New(timestamp int64, kind Kind, nodeId, peerId, payloadSummary string) (Event, error) {
	if payloadSummary == "" {
		return Event{}, ErrInvalidEvent
	}
	if nodeId == "" {
		nodeId = SystemNode
	}
	return Event{
		Timestamp:      timestamp,
		Kind:           kind,
		NodeId:         nodeId,
		PeerId:         peerId,
		PayloadSummary: payloadSummary,
	}, nil
}

// HasPeer reports whether a peer id was set.
func (e Event) HasPeer() bool {
	return e.PeerId != ""
}

// wireEvent is the JSON wire form defined in §6.
type wireEvent struct {
	Timestamp      int64   `json:"timestamp"`
	Type           Kind    `json:"type"`
	NodeId         string  `json:"nodeId"`
	PeerId         *string `json:"peerId"`
	PayloadSummary string  `json:"payloadSummary"`
}

// MarshalJSON renders the canonical wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Timestamp:      e.Timestamp,
		Type:           e.Kind,
		NodeId:         e.NodeId,
		PayloadSummary: e.PayloadSummary,
	}
	if e.HasPeer() {
		w.PeerId = &e.PeerId
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the canonical wire form.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.Timestamp = w.Timestamp
	e.Kind = w.Type
	e.NodeId = w.NodeId
	e.PayloadSummary = w.PayloadSummary
	if w.PeerId != nil {
		e.PeerId = *w.PeerId
	} else {
		e.PeerId = ""
	}
	return nil
}

// LogLine renders the §6 log-entry format:
//
//	without peer: [<ts>] [<KIND>] <nodeId>: <payloadSummary>
//	with peer:    [<ts>] [<KIND>] <nodeId> -> <peerId>: <payloadSummary>
func (e Event) LogLine() string {
	if e.HasPeer() {
		return fmt.Sprintf("[%d] [%s] %s -> %s: %s", e.Timestamp, e.Kind, e.NodeId, e.PeerId, e.PayloadSummary)
	}
	return fmt.Sprintf("[%d] [%s] %s: %s", e.Timestamp, e.Kind, e.NodeId, e.PayloadSummary)
}

// Matches reports whether the given case-insensitive substring filter
// matches the event's kind name, nodeId, peerId, or payloadSummary — the
// predicate used by SessionController.getLogs (§4.9).
func (e Event) Matches(filter string) bool {
	if filter == "" {
		return true
	}
	lf := strings.ToLower(filter)
	return strings.Contains(strings.ToLower(string(e.Kind)), lf) ||
		strings.Contains(strings.ToLower(e.NodeId), lf) ||
		strings.Contains(strings.ToLower(e.PeerId), lf) ||
		strings.Contains(strings.ToLower(e.PayloadSummary), lf)
}
