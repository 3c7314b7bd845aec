// Package message defines the immutable Message record exchanged between
// simulation nodes, its JSON wire form, and a thread-safe delivery queue
// shared by the in-process MessagingPort implementations.
package message

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/dsimlab/distsim/packages/core/id"
)

// Message is an immutable record exchanged between simulation nodes.
//
// Seq is optional; a nil pointer means "not set" (distinct from seq 0).
type Message struct {
	Sender      id.NodeId
	Receiver    id.NodeId
	MessageType string
	Payload     interface{}
	Seq         *uint64
}

// New constructs a Message without a sequence number.
func New(sender, receiver id.NodeId, messageType string, payload interface{}) Message {
	return Message{
		Sender:      sender,
		Receiver:    receiver,
		MessageType: messageType,
		Payload:     payload,
	}
}

// WithSeq returns a copy of m carrying the given sequence number.
func (m Message) WithSeq(seq uint64) Message {
	m.Seq = &seq
	return m
}

// wireMessage is the JSON wire form defined in §6:
// {sender, receiver, messageType, payload, seq?}.
type wireMessage struct {
	Sender      string      `json:"sender"`
	Receiver    string      `json:"receiver"`
	MessageType string      `json:"messageType"`
	Payload     interface{} `json:"payload"`
	Seq         *uint64     `json:"seq,omitempty"`
}

// MarshalJSON renders the canonical wire form defined in §6.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		Sender:      m.Sender.Value(),
		Receiver:    m.Receiver.Value(),
		MessageType: m.MessageType,
		Payload:     m.Payload,
		Seq:         m.Seq,
	})
}

// ErrInvalidMessage is returned when inbound wire data fails validation:
// an empty sender/receiver/messageType, or an unknown top-level field.
var ErrInvalidMessage = errors.New("message: invalid wire payload")

// UnmarshalJSON parses the canonical wire form, rejecting unknown top-level
// fields and blank required fields per §6.
func (m *Message) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireMessage
	if err := dec.Decode(&w); err != nil {
		return errors.Join(ErrInvalidMessage, err)
	}
	if w.Sender == "" || w.Receiver == "" || w.MessageType == "" {
		return ErrInvalidMessage
	}

	m.Sender = id.NewNodeId(w.Sender)
	m.Receiver = id.NewNodeId(w.Receiver)
	m.MessageType = w.MessageType
	m.Payload = w.Payload
	m.Seq = w.Seq
	return nil
}

// Queue is a thread-safe, bounded, FIFO message queue. It backs the
// per-receiver delivery mechanism of the in-process MessagingPort: a
// dedicated consumer goroutine drains the queue so handler invocation never
// runs on the sender's stack (§4.1).
type Queue struct {
	messages chan Message
}

// NewQueue creates a new message queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{messages: make(chan Message, capacity)}
}

// Enqueue adds a message to the queue. It returns false if the queue is
// full; the in-process port treats this as a dropped delivery.
func (q *Queue) Enqueue(m Message) bool {
	select {
	case q.messages <- m:
		return true
	default:
		return false
	}
}

// Channel returns the underlying channel for a consumer goroutine to range
// over.
func (q *Queue) Channel() <-chan Message {
	return q.messages
}

// Len returns the current number of queued messages.
func (q *Queue) Len() int {
	return len(q.messages)
}

// Close closes the queue. Callers must ensure no further Enqueue calls race
// with Close.
func (q *Queue) Close() {
	close(q.messages)
}
