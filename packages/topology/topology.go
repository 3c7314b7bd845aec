// Package topology generates symmetric neighbor maps for the network
// shapes a simulation session can run on.
package topology

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dsimlab/distsim/packages/core/id"
)

// Type identifies a supported network shape.
type Type string

const (
	Line   Type = "LINE"
	Ring   Type = "RING"
	Grid   Type = "GRID"
	Random Type = "RANDOM"
)

// Graph is a symmetric neighbor map keyed by NodeId: b is a neighbor of a
// if and only if a is a neighbor of b (§3 invariant).
type Graph map[id.NodeId]map[id.NodeId]struct{}

// Neighbors returns the sorted neighbor ids of n, or nil if n is unknown.
func (g Graph) Neighbors(n id.NodeId) []id.NodeId {
	set, ok := g[n]
	if !ok {
		return nil
	}
	out := make([]id.NodeId, 0, len(set))
	for peer := range set {
		out = append(out, peer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// NodeIds returns every node id present in the graph, in deterministic
// ascending order.
func (g Graph) NodeIds() []id.NodeId {
	out := make([]id.NodeId, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// ErrInvalidConfig is returned when nodeCount is non-positive or the
// topology type is unknown, per §4.2.
var ErrInvalidConfig = errors.New("topology: invalid config")

func add(g Graph, a, b id.NodeId) {
	if g[a] == nil {
		g[a] = make(map[id.NodeId]struct{})
	}
	if g[b] == nil {
		g[b] = make(map[id.NodeId]struct{})
	}
	g[a][b] = struct{}{}
	g[b][a] = struct{}{}
}

func nodeAt(i int) id.NodeId {
	return id.NewNodeId(fmt.Sprintf("%d", i))
}

// Generate produces a neighbor map for n nodes laid out as t, deterministic
// in n, t, and seed. It fails with ErrInvalidConfig if n <= 0 or t is
// unknown.
func Generate(n int, t Type, seed int64) (Graph, error) {
	if n <= 0 {
		return nil, ErrInvalidConfig
	}

	g := make(Graph, n)
	for i := 0; i < n; i++ {
		g[nodeAt(i)] = make(map[id.NodeId]struct{})
	}

	switch t {
	case Line:
		generateLine(g, n)
	case Ring:
		generateRing(g, n)
	case Grid:
		generateGrid(g, n)
	case Random:
		generateRandom(g, n, seed)
	default:
		return nil, ErrInvalidConfig
	}

	return g, nil
}

// generateLine connects i to i-1 and i+1 when they exist. n=1 leaves the
// sole node without neighbors.
func generateLine(g Graph, n int) {
	for i := 0; i < n-1; i++ {
		add(g, nodeAt(i), nodeAt(i+1))
	}
}

// generateRing connects i to (i-1) mod n and (i+1) mod n. n=1 produces a
// self-loop; n=2 gives each node the other as its sole neighbor.
func generateRing(g Graph, n int) {
	if n == 1 {
		add(g, nodeAt(0), nodeAt(0))
		return
	}
	for i := 0; i < n; i++ {
		next := (i + 1) % n
		add(g, nodeAt(i), nodeAt(next))
	}
}

// generateGrid lays nodes row-major into a ceil(sqrt(n)) x ceil(sqrt(n))
// grid and connects orthogonal neighbors that fall within [0, n).
func generateGrid(g Graph, n int) {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	if side < 1 {
		side = 1
	}
	for i := 0; i < n; i++ {
		row, col := i/side, i%side

		if col+1 < side {
			if right := row*side + (col + 1); right < n {
				add(g, nodeAt(i), nodeAt(right))
			}
		}
		if row+1 < side {
			if down := (row+1)*side + col; down < n {
				add(g, nodeAt(i), nodeAt(down))
			}
		}
	}
}

// generateRandom builds a deterministic connected graph: a spanning-tree
// baseline (node i attaches to a pseudo-random earlier node, guaranteeing
// connectivity) plus a bounded number of extra edges derived from seed.
func generateRandom(g Graph, n int, seed int64) {
	if n < 2 {
		return
	}

	rnd := newSplitMix64(seed)

	// Spanning tree: every node after the first attaches to a
	// pseudo-randomly chosen earlier node.
	for i := 1; i < n; i++ {
		parent := int(rnd.next() % uint64(i))
		add(g, nodeAt(i), nodeAt(parent))
	}

	// Bounded number of extra edges for richer connectivity.
	extra := n / 2
	for k := 0; k < extra; k++ {
		a := int(rnd.next() % uint64(n))
		b := int(rnd.next() % uint64(n))
		if a == b {
			continue
		}
		add(g, nodeAt(a), nodeAt(b))
	}
}

// splitMix64 is a small deterministic PRNG, used instead of math/rand so
// RANDOM topology generation depends only on the caller-supplied seed and
// never on process-global random state.
type splitMix64 struct {
	state uint64
}

func newSplitMix64(seed int64) *splitMix64 {
	return &splitMix64{state: uint64(seed)}
}

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
