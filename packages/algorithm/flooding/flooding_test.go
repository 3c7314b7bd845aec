package flooding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dsimlab/distsim/packages/algorithm"
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/core/message"
)

type sentMessage struct {
	target      id.NodeId
	messageType string
	payload     interface{}
}

type fakeContext struct {
	self      id.NodeId
	neighbors []id.NodeId
	sent      []sentMessage
}

func (c *fakeContext) Self() id.NodeId          { return c.self }
func (c *fakeContext) Neighbors() []id.NodeId   { return c.neighbors }
func (c *fakeContext) Send(target id.NodeId, messageType string, payload interface{}) {
	c.sent = append(c.sent, sentMessage{target, messageType, payload})
}
func (c *fakeContext) Broadcast(targets []id.NodeId, messageType string, payload interface{}) {
	for _, t := range targets {
		c.Send(t, messageType, payload)
	}
}

func TestOnStartAnnouncesSelfToEveryNeighbor(t *testing.T) {
	ctx := &fakeContext{self: id.NewNodeId("node-3"), neighbors: []id.NodeId{id.NewNodeId("node-1"), id.NewNodeId("node-5")}}
	alg := New().(*Algorithm)

	alg.OnStart(ctx)

	require.Len(t, ctx.sent, 2)
	for _, s := range ctx.sent {
		require.Equal(t, AnnouncementType, s.messageType)
		require.Equal(t, "node-3", s.payload)
	}
	snap := alg.SnapshotState()
	require.Equal(t, id.NewNodeId("node-3"), snap.CurrentLeader)
}

func TestOnMessageIgnoresLesserOrEqualAnnouncement(t *testing.T) {
	ctx := &fakeContext{self: id.NewNodeId("node-3"), neighbors: []id.NodeId{id.NewNodeId("node-1")}}
	alg := New().(*Algorithm)
	alg.OnStart(ctx)
	ctx.sent = nil

	alg.OnMessage(ctx, message.New(id.NewNodeId("node-1"), ctx.self, AnnouncementType, "node-2"))

	require.Empty(t, ctx.sent)
	require.Equal(t, id.NewNodeId("node-3"), alg.SnapshotState().CurrentLeader)
}

func TestOnMessageAdoptsAndRefloodsGreaterAnnouncement(t *testing.T) {
	ctx := &fakeContext{self: id.NewNodeId("node-3"), neighbors: []id.NodeId{id.NewNodeId("node-1"), id.NewNodeId("node-5")}}
	alg := New().(*Algorithm)
	alg.OnStart(ctx)
	ctx.sent = nil

	alg.OnMessage(ctx, message.New(id.NewNodeId("node-1"), ctx.self, AnnouncementType, "node-9"))

	require.Equal(t, id.NewNodeId("node-9"), alg.SnapshotState().CurrentLeader)
	require.Len(t, ctx.sent, 2)
	for _, s := range ctx.sent {
		require.Equal(t, "node-9", s.payload)
	}
}

func TestOnMessageIgnoresNonAnnouncementType(t *testing.T) {
	ctx := &fakeContext{self: id.NewNodeId("node-3")}
	alg := New().(*Algorithm)
	alg.OnStart(ctx)
	ctx.sent = nil

	alg.OnMessage(ctx, message.New(id.NewNodeId("node-1"), ctx.self, "SOMETHING_ELSE", "node-9"))

	require.Equal(t, id.NewNodeId("node-3"), alg.SnapshotState().CurrentLeader)
}

func TestOnMessageIgnoresMalformedPayload(t *testing.T) {
	ctx := &fakeContext{self: id.NewNodeId("node-3")}
	alg := New().(*Algorithm)
	alg.OnStart(ctx)

	alg.OnMessage(ctx, message.New(id.NewNodeId("node-1"), ctx.self, AnnouncementType, 42))

	require.Equal(t, id.NewNodeId("node-3"), alg.SnapshotState().CurrentLeader)
}

var _ algorithm.NodeContext = (*fakeContext)(nil)
