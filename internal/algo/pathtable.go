package algo

import "github.com/elektrokombinacija/pibt-mapd/internal/core"

// PathTable records which agent occupies each node at each timestep. At most
// one agent is recorded per (timestep, node).
type PathTable struct {
	size int
	rows [][]int
}

// NewPathTable creates an empty table for a graph of the given size.
func NewPathTable(size int) *PathTable {
	return &PathTable{size: size}
}

// Makespan is the last recorded timestep, -1 when empty.
func (pt *PathTable) Makespan() int {
	return len(pt.rows) - 1
}

// Extend grows the table to cover timestep t.
func (pt *PathTable) Extend(t int) {
	for len(pt.rows) <= t {
		row := make([]int, pt.size)
		for i := range row {
			row[i] = noAgent
		}
		pt.rows = append(pt.rows, row)
	}
}

// Get returns the agent at v at timestep t, or -1.
func (pt *PathTable) Get(t int, v core.NodeID) int {
	if t < 0 || t >= len(pt.rows) {
		return noAgent
	}
	return pt.rows[t][v]
}

// Set records agent a at v at timestep t, extending the table as needed.
func (pt *PathTable) Set(t int, v core.NodeID, a int) {
	pt.Extend(t)
	pt.rows[t][v] = a
}

// Register records path as agent a's positions from timestep `from` on.
func (pt *PathTable) Register(a int, path core.Path, from int) {
	if len(path) == 0 {
		return
	}
	pt.Extend(from + len(path) - 1)
	for k, v := range path {
		pt.rows[from+k][v] = a
	}
}

// VertexConflict reports whether someone occupies v at t.
func (pt *PathTable) VertexConflict(t int, v core.NodeID) bool {
	return pt.Get(t, v) != noAgent
}

// SwapConflict reports whether moving from -> to between t-1 and t would swap
// with the agent that arrives at from at t.
func (pt *PathTable) SwapConflict(t int, from, to core.NodeID) bool {
	k := pt.Get(t, from)
	return k != noAgent && pt.Get(t-1, to) == k
}
