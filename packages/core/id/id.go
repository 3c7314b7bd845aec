// Package id defines the opaque identifiers shared across the simulation
// core: NodeId for simulation participants and SessionId for simulation
// sessions.
package id

import (
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// NodeId is an opaque, non-empty identifier for a simulation node.
//
// Two NodeIds compare by integer value when both match the canonical
// "node-<n>" pattern (or are both purely numeric); otherwise they compare
// lexicographically.
type NodeId string

var nodePattern = regexp.MustCompile(`^node-(\d+)$`)

// NewNodeId constructs a NodeId from a raw string. The value is not
// validated further than non-emptiness at the caller's boundary.
func NewNodeId(value string) NodeId {
	return NodeId(value)
}

// Value returns the underlying string value.
func (n NodeId) Value() string {
	return string(n)
}

// Empty reports whether the id carries no value.
func (n NodeId) Empty() bool {
	return n == ""
}

// numeric extracts the integer component of a NodeId that matches
// "node-<n>" or is purely numeric. ok is false if neither form applies.
func (n NodeId) numeric() (int64, bool) {
	s := string(n)
	if m := nodePattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	return 0, false
}

// Less reports whether n sorts before other under the §3 NodeId ordering:
// numeric comparison when both ids carry a numeric form, lexicographic
// comparison otherwise.
func (n NodeId) Less(other NodeId) bool {
	an, aok := n.numeric()
	bn, bok := other.numeric()
	if aok && bok {
		return an < bn
	}
	return string(n) < string(other)
}

// Greater reports whether n sorts strictly after other.
func (n NodeId) Greater(other NodeId) bool {
	return other.Less(n)
}

// Equal reports value equality.
func (n NodeId) Equal(other NodeId) bool {
	return n == other
}

// Max returns the larger of a and b under the NodeId ordering.
func Max(a, b NodeId) NodeId {
	if a.Less(b) {
		return b
	}
	return a
}

// MaxOf returns the maximum NodeId in a non-empty slice. The second return
// value is false if ids is empty.
func MaxOf(ids []NodeId) (NodeId, bool) {
	if len(ids) == 0 {
		return "", false
	}
	max := ids[0]
	for _, candidate := range ids[1:] {
		max = Max(max, candidate)
	}
	return max, true
}

// SessionId is an opaque identifier, globally unique within the process.
type SessionId string

// NewSessionId generates a fresh, process-unique SessionId.
func NewSessionId() SessionId {
	return SessionId(uuid.New().String())
}

// Value returns the underlying string value.
func (s SessionId) Value() string {
	return string(s)
}
