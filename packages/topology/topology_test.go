package topology

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dsimlab/distsim/packages/core/id"
)

func assertSymmetric(t *testing.T, g Graph) {
	t.Helper()
	for a, neighbors := range g {
		for b := range neighbors {
			_, ok := g[b][a]
			require.Truef(t, ok, "edge %s->%s not symmetric", a, b)
		}
	}
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	_, err := Generate(0, Line, 1)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Generate(3, Type("BOGUS"), 1)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGenerateNodeCountMatchesKeys(t *testing.T) {
	for _, typ := range []Type{Line, Ring, Grid, Random} {
		g, err := Generate(6, typ, 42)
		require.NoError(t, err)
		require.Len(t, g, 6)
	}
}

func TestLineTopologySymmetricAndEndpointsHaveOneNeighbor(t *testing.T) {
	g, err := Generate(5, Line, 1)
	require.NoError(t, err)
	assertSymmetric(t, g)

	require.Len(t, g.Neighbors(id.NewNodeId("0")), 1)
	require.Len(t, g.Neighbors(id.NewNodeId("4")), 1)
	require.Len(t, g.Neighbors(id.NewNodeId("2")), 2)
}

func TestRingTopologySingleNodeSelfLoop(t *testing.T) {
	g, err := Generate(1, Ring, 1)
	require.NoError(t, err)
	neighbors := g.Neighbors(id.NewNodeId("0"))
	require.Equal(t, []id.NodeId{id.NewNodeId("0")}, neighbors)
}

func TestRingTopologyTwoNodesEachOtherSoleNeighbor(t *testing.T) {
	g, err := Generate(2, Ring, 1)
	require.NoError(t, err)
	assertSymmetric(t, g)
	require.Equal(t, []id.NodeId{id.NewNodeId("1")}, g.Neighbors(id.NewNodeId("0")))
	require.Equal(t, []id.NodeId{id.NewNodeId("0")}, g.Neighbors(id.NewNodeId("1")))
}

func TestRingTopologyEveryNodeHasTwoNeighbors(t *testing.T) {
	g, err := Generate(6, Ring, 1)
	require.NoError(t, err)
	assertSymmetric(t, g)
	for _, n := range g.NodeIds() {
		require.Len(t, g.Neighbors(n), 2)
	}
}

func TestGridTopologySymmetric(t *testing.T) {
	g, err := Generate(9, Grid, 1)
	require.NoError(t, err)
	assertSymmetric(t, g)
	require.Len(t, g, 9)
}

func TestRandomTopologyDeterministicForSameSeed(t *testing.T) {
	g1, err := Generate(8, Random, 99)
	require.NoError(t, err)
	g2, err := Generate(8, Random, 99)
	require.NoError(t, err)
	assertSymmetric(t, g1)
	require.Equal(t, len(g1), len(g2))
	for n := range g1 {
		require.ElementsMatch(t, g1.Neighbors(n), g2.Neighbors(n))
	}
}

func TestRandomTopologyConnected(t *testing.T) {
	g, err := Generate(10, Random, 7)
	require.NoError(t, err)

	visited := map[id.NodeId]bool{}
	var stack []id.NodeId
	start := g.NodeIds()[0]
	stack = append(stack, start)
	visited[start] = true
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, neighbor := range g.Neighbors(n) {
			if !visited[neighbor] {
				visited[neighbor] = true
				stack = append(stack, neighbor)
			}
		}
	}
	require.Len(t, visited, 10)
}

func TestNeighborsUnknownNodeReturnsNil(t *testing.T) {
	g, err := Generate(3, Line, 1)
	require.NoError(t, err)
	require.Nil(t, g.Neighbors(id.NewNodeId("no-such-node")))
}
