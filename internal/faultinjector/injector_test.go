package faultinjector

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dsimlab/distsim/packages/core/id"
)

type recordedCall struct {
	nodeId    id.NodeId
	isRecover bool
}

type fakeController struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeController) InjectNodeCrash(sid id.SessionId, nodeId id.NodeId) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{nodeId: nodeId})
	return nil
}

func (f *fakeController) RecoverNode(sid id.SessionId, nodeId id.NodeId) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{nodeId: nodeId, isRecover: true})
	return nil
}

func (f *fakeController) snapshot() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func TestScheduledCrashFires(t *testing.T) {
	ctrl := &fakeController{}
	inj := New(ctrl, id.SessionId("sess-1"))
	inj.Schedule(Schedule{NodeId: id.NewNodeId("node-1"), At: 10 * time.Millisecond})
	inj.Start()
	defer inj.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(ctrl.snapshot()) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	calls := ctrl.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, id.NewNodeId("node-1"), calls[0].nodeId)
	require.False(t, calls[0].isRecover)
}

func TestScheduledCrashWithDurationAlsoRecovers(t *testing.T) {
	ctrl := &fakeController{}
	inj := New(ctrl, id.SessionId("sess-1"))
	inj.Schedule(Schedule{NodeId: id.NewNodeId("node-1"), At: 10 * time.Millisecond, Duration: 20 * time.Millisecond})
	inj.Start()
	defer inj.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(ctrl.snapshot()) < 2 {
		time.Sleep(5 * time.Millisecond)
	}

	calls := ctrl.snapshot()
	require.Len(t, calls, 2)
	require.False(t, calls[0].isRecover)
	require.True(t, calls[1].isRecover)
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	ctrl := &fakeController{}
	inj := New(ctrl, id.SessionId("sess-1"))
	inj.Start()
	inj.Start() // must not deadlock or spawn a second scheduler
	inj.Stop()
}

func TestStopBeforeStartIsNoOp(t *testing.T) {
	ctrl := &fakeController{}
	inj := New(ctrl, id.SessionId("sess-1"))
	require.NotPanics(t, func() { inj.Stop() })
}
