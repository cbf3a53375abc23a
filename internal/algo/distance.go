package algo

import "github.com/elektrokombinacija/pibt-mapd/internal/core"

// AgentDistances holds, per agent, the hop distance from every node to that
// agent's goal. Unreachable nodes hold the graph size.
type AgentDistances [][]int

// NewAgentDistances runs one BFS per goal.
func NewAgentDistances(g core.Graph, goals core.Config) AgentDistances {
	d := make(AgentDistances, len(goals))
	for i, goal := range goals {
		d[i] = bfs(g, goal)
	}
	return d
}

// Dist is the distance from v to agent i's goal.
func (d AgentDistances) Dist(i int, v core.NodeID) int {
	return d[i][v]
}

// LowerBounds returns the sum and the maximum of start-to-goal distances.
func (d AgentDistances) LowerBounds(starts core.Config) (soc, makespan int) {
	for i, s := range starts {
		dist := d.Dist(i, s)
		soc += dist
		makespan = max(makespan, dist)
	}
	return soc, makespan
}

func bfs(g core.Graph, root core.NodeID) []int {
	n := g.Size()
	dist := make([]int, n)
	for i := range dist {
		dist[i] = n
	}
	if !g.Has(root) {
		return dist
	}
	dist[root] = 0
	queue := []core.NodeID{root}
	for head := 0; head < len(queue); head++ {
		v := queue[head]
		for _, u := range g.Neighbors(v) {
			if dist[v]+1 < dist[u] {
				dist[u] = dist[v] + 1
				queue = append(queue, u)
			}
		}
	}
	return dist
}

// NodeDistances holds all-pairs hop distances computed by Floyd-Warshall.
// Unreachable pairs hold the graph size.
type NodeDistances [][]int

// NewNodeDistances builds the all-pairs table. It is cubic in the number of
// free nodes.
func NewNodeDistances(g core.Graph) NodeDistances {
	n := g.Size()
	d := make(NodeDistances, n)
	for i := range d {
		d[i] = make([]int, n)
		for j := range d[i] {
			d[i][j] = n
		}
	}
	nodes := g.Nodes()
	for _, v := range nodes {
		d[v][v] = 0
		for _, u := range g.Neighbors(v) {
			d[v][u] = 1
		}
	}
	for _, k := range nodes {
		dk := d[k]
		for _, i := range nodes {
			di := d[i]
			dik := di[k]
			if dik >= n {
				continue
			}
			for _, j := range nodes {
				if alt := dik + dk[j]; alt < di[j] {
					di[j] = alt
				}
			}
		}
	}
	return d
}

// Dist is the distance between s and g.
func (d NodeDistances) Dist(s, g core.NodeID) int {
	return d[s][g]
}

// distFunc answers pairwise distance queries for MAPD planners.
type distFunc func(s, g core.NodeID) int

func mapdDistances(g core.Graph, useTable bool) distFunc {
	if useTable {
		return NewNodeDistances(g).Dist
	}
	return g.PathDist
}
