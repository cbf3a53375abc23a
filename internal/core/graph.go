package core

// Graph is the read-only view planners need of a map.
type Graph interface {
	// Size is the number of node ids, obstacles included. It doubles as the
	// unreachable distance sentinel.
	Size() int
	Has(v NodeID) bool
	Nodes() []NodeID
	Neighbors(v NodeID) []NodeID
	Pos(v NodeID) Pos
	NodeAt(p Pos) (NodeID, bool)
	// PathDist is the exact hop distance, or Size() when g is unreachable.
	PathDist(s, g NodeID) int
	// Path returns a shortest path s..g that avoids blocked, or nil.
	Path(s, g NodeID, blocked []NodeID) Path
}

// IsAdjacent reports whether v and u share an edge.
func IsAdjacent(g Graph, v, u NodeID) bool {
	for _, w := range g.Neighbors(v) {
		if w == u {
			return true
		}
	}
	return false
}
