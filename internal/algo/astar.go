package algo

import (
	"container/heap"
	"time"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// SearchNode is a state of the time-expanded graph: node V reached after G
// steps.
type SearchNode struct {
	V      core.NodeID
	G      int
	F      int
	Parent *SearchNode
	index  int
}

type spaceTime struct {
	v core.NodeID
	t int
}

// SearchParams parameterizes SpaceTimeAStar.
type SearchParams struct {
	Start core.NodeID
	// F scores a node; G and Parent are already set.
	F func(n *SearchNode) int
	// Less orders the open list. Nil means LessBasic.
	Less func(a, b *SearchNode) bool
	// IsGoal accepts a popped node.
	IsGoal func(n *SearchNode) bool
	// Invalid rejects a generated node before it enters the open list.
	Invalid func(n *SearchNode) bool
	// TimeLimit aborts the search when exceeded. Zero means no limit.
	TimeLimit time.Duration
	// MaxDepth drops nodes deeper than this. Zero means no bound.
	MaxDepth int
}

// LessBasic prefers smaller F, then larger G.
func LessBasic(a, b *SearchNode) bool {
	if a.F != b.F {
		return a.F < b.F
	}
	return a.G > b.G
}

type searchHeap struct {
	nodes []*SearchNode
	less  func(a, b *SearchNode) bool
}

func (h searchHeap) Len() int           { return len(h.nodes) }
func (h searchHeap) Less(i, j int) bool { return h.less(h.nodes[i], h.nodes[j]) }
func (h searchHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.nodes[i].index = i
	h.nodes[j].index = j
}
func (h *searchHeap) Push(x any) {
	n := x.(*SearchNode)
	n.index = len(h.nodes)
	h.nodes = append(h.nodes, n)
}
func (h *searchHeap) Pop() any {
	old := h.nodes
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	h.nodes = old[:n-1]
	return x
}

// SpaceTimeAStar searches the time-expanded graph where waiting is an edge.
// It returns the node sequence from start to the first accepted goal node and
// the number of expanded states, or a nil path when the open list empties or
// the time limit passes.
func SpaceTimeAStar(g core.Graph, p SearchParams) (core.Path, int) {
	started := time.Now()
	less := p.Less
	if less == nil {
		less = LessBasic
	}

	open := &searchHeap{less: less}
	closed := make(map[spaceTime]struct{})

	root := &SearchNode{V: p.Start}
	root.F = p.F(root)
	heap.Push(open, root)

	expanded := 0
	for open.Len() > 0 {
		if p.TimeLimit > 0 && expanded%64 == 0 && time.Since(started) > p.TimeLimit {
			break
		}

		n := heap.Pop(open).(*SearchNode)
		key := spaceTime{n.V, n.G}
		if _, ok := closed[key]; ok {
			continue
		}
		closed[key] = struct{}{}

		if p.IsGoal(n) {
			return reconstructPath(n), expanded
		}
		expanded++

		if p.MaxDepth > 0 && n.G >= p.MaxDepth {
			continue
		}
		for _, u := range expansion(g, n.V) {
			m := &SearchNode{V: u, G: n.G + 1, Parent: n}
			if _, ok := closed[spaceTime{m.V, m.G}]; ok {
				continue
			}
			if p.Invalid != nil && p.Invalid(m) {
				continue
			}
			m.F = p.F(m)
			heap.Push(open, m)
		}
	}
	return nil, expanded
}

// expansion returns the neighbors of v followed by v itself.
func expansion(g core.Graph, v core.NodeID) []core.NodeID {
	nbrs := g.Neighbors(v)
	out := make([]core.NodeID, 0, len(nbrs)+1)
	out = append(out, nbrs...)
	return append(out, v)
}

func reconstructPath(n *SearchNode) core.Path {
	var path core.Path
	for ; n != nil; n = n.Parent {
		path = append(path, n.V)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
