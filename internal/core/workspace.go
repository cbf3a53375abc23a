package core

import "sync"

// VertexKind flags the task roles of a vertex.
type VertexKind uint8

const (
	KindPickup VertexKind = 1 << iota
	KindDelivery
	KindEndpoint
)

// Vertex represents a free cell of the map.
type Vertex struct {
	ID   NodeID
	Pos  Pos
	Kind VertexKind
}

// Workspace is a 4-connected grid graph. Obstacles have no vertex.
type Workspace struct {
	Name   string
	Width  int
	Height int

	vertices []*Vertex
	adj      [][]NodeID

	// task locations; nil until marked
	pickups    []NodeID
	deliveries []NodeID
	endpoints  []NodeID
	nonTask    []NodeID

	mu    sync.Mutex
	dists map[NodeID][]int
}

// NewWorkspace creates an empty width x height workspace with no free cells.
func NewWorkspace(width, height int) *Workspace {
	return &Workspace{
		Width:    width,
		Height:   height,
		vertices: make([]*Vertex, width*height),
		adj:      make([][]NodeID, width*height),
		dists:    make(map[NodeID][]int),
	}
}

// NewGrid creates a fully free width x height grid.
func NewGrid(width, height int) *Workspace {
	free := make([][]bool, height)
	for y := range free {
		free[y] = make([]bool, width)
		for x := range free[y] {
			free[y][x] = true
		}
	}
	return newGridFromMask(width, height, free)
}

func newGridFromMask(width, height int, free [][]bool) *Workspace {
	w := NewWorkspace(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if free[y][x] {
				w.AddVertex(Pos{X: x, Y: y})
			}
		}
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := w.id(x, y)
			if w.vertices[v] == nil {
				continue
			}
			if x+1 < width && w.vertices[w.id(x+1, y)] != nil {
				w.AddEdge(v, w.id(x+1, y))
			}
			if y+1 < height && w.vertices[w.id(x, y+1)] != nil {
				w.AddEdge(v, w.id(x, y+1))
			}
		}
	}
	return w
}

func (w *Workspace) id(x, y int) NodeID {
	return NodeID(y*w.Width + x)
}

// AddVertex marks a cell free and returns its id.
func (w *Workspace) AddVertex(p Pos) NodeID {
	v := w.id(p.X, p.Y)
	if w.vertices[v] == nil {
		w.vertices[v] = &Vertex{ID: v, Pos: p}
	}
	return v
}

// AddEdge adds a bidirectional edge.
func (w *Workspace) AddEdge(from, to NodeID) {
	w.adj[from] = append(w.adj[from], to)
	w.adj[to] = append(w.adj[to], from)
	w.resetDist()
}

// Vertex returns the vertex with id v, or nil.
func (w *Workspace) Vertex(v NodeID) *Vertex {
	if !w.Has(v) {
		return nil
	}
	return w.vertices[v]
}

func (w *Workspace) Size() int { return len(w.vertices) }

func (w *Workspace) Has(v NodeID) bool {
	return v >= 0 && int(v) < len(w.vertices) && w.vertices[v] != nil
}

// Nodes returns the ids of all free cells in ascending order.
func (w *Workspace) Nodes() []NodeID {
	nodes := make([]NodeID, 0, len(w.vertices))
	for _, v := range w.vertices {
		if v != nil {
			nodes = append(nodes, v.ID)
		}
	}
	return nodes
}

func (w *Workspace) Neighbors(v NodeID) []NodeID {
	if !w.Has(v) {
		return nil
	}
	return w.adj[v]
}

func (w *Workspace) Pos(v NodeID) Pos {
	if !w.Has(v) {
		return Pos{X: -1, Y: -1}
	}
	return w.vertices[v].Pos
}

func (w *Workspace) NodeAt(p Pos) (NodeID, bool) {
	if p.X < 0 || p.X >= w.Width || p.Y < 0 || p.Y >= w.Height {
		return NilNode, false
	}
	v := w.id(p.X, p.Y)
	return v, w.vertices[v] != nil
}

// PathDist returns the BFS distance between s and g. Distances from each
// source are computed once and cached.
func (w *Workspace) PathDist(s, g NodeID) int {
	if !w.Has(s) || !w.Has(g) {
		return w.Size()
	}
	return w.distFrom(s)[g]
}

func (w *Workspace) distFrom(s NodeID) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d, ok := w.dists[s]; ok {
		return d
	}
	d := w.BFS(s)
	w.dists[s] = d
	return d
}

func (w *Workspace) resetDist() {
	w.mu.Lock()
	if len(w.dists) > 0 {
		w.dists = make(map[NodeID][]int)
	}
	w.mu.Unlock()
}

// BFS returns hop distances from root to every node id. Unreachable ids and
// obstacles hold Size().
func (w *Workspace) BFS(root NodeID) []int {
	n := w.Size()
	dist := make([]int, n)
	for i := range dist {
		dist[i] = n
	}
	if !w.Has(root) {
		return dist
	}
	dist[root] = 0
	queue := []NodeID{root}
	for head := 0; head < len(queue); head++ {
		v := queue[head]
		for _, u := range w.adj[v] {
			if dist[u] == n {
				dist[u] = dist[v] + 1
				queue = append(queue, u)
			}
		}
	}
	return dist
}

// Path returns a shortest path from s to g that never enters blocked. The
// start itself is never considered blocked.
func (w *Workspace) Path(s, g NodeID, blocked []NodeID) Path {
	if !w.Has(s) || !w.Has(g) {
		return nil
	}
	if s == g {
		return Path{s}
	}
	closed := make([]bool, w.Size())
	for _, b := range blocked {
		if w.Has(b) {
			closed[b] = true
		}
	}
	parent := make([]NodeID, w.Size())
	for i := range parent {
		parent[i] = NilNode
	}
	closed[s] = true
	queue := []NodeID{s}
	for head := 0; head < len(queue); head++ {
		v := queue[head]
		for _, u := range w.adj[v] {
			if closed[u] {
				continue
			}
			closed[u] = true
			parent[u] = v
			if u == g {
				var rev Path
				for x := g; x != NilNode; x = parent[x] {
					rev = append(rev, x)
				}
				for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
					rev[i], rev[j] = rev[j], rev[i]
				}
				return rev
			}
			queue = append(queue, u)
		}
	}
	return nil
}

// Mark flags v with a task role and records it in the matching location lists.
func (w *Workspace) Mark(v NodeID, kind VertexKind) {
	vx := w.Vertex(v)
	if vx == nil || kind == 0 {
		return
	}
	if kind&KindPickup != 0 && vx.Kind&KindPickup == 0 {
		w.pickups = append(w.pickups, v)
	}
	if kind&KindDelivery != 0 && vx.Kind&KindDelivery == 0 {
		w.deliveries = append(w.deliveries, v)
	}
	if kind&KindEndpoint != 0 && vx.Kind&KindEndpoint == 0 {
		w.nonTask = append(w.nonTask, v)
	}
	if vx.Kind == 0 {
		w.endpoints = append(w.endpoints, v)
	}
	vx.Kind |= kind
}

// Pickups returns pickup locations, or every node when none are marked.
func (w *Workspace) Pickups() []NodeID {
	if len(w.pickups) == 0 {
		return w.Nodes()
	}
	return w.pickups
}

// Deliveries returns delivery locations, or every node when none are marked.
func (w *Workspace) Deliveries() []NodeID {
	if len(w.deliveries) == 0 {
		return w.Nodes()
	}
	return w.deliveries
}

// Endpoints returns all marked cells, or every node when none are marked.
func (w *Workspace) Endpoints() []NodeID {
	if len(w.endpoints) == 0 {
		return w.Nodes()
	}
	return w.endpoints
}

// NonTaskEndpoints returns cells marked as parking endpoints ('e' or 'a').
func (w *Workspace) NonTaskEndpoints() []NodeID {
	return w.nonTask
}

// ClearMarks drops all task roles so every node becomes a pickup, delivery
// and endpoint candidate again.
func (w *Workspace) ClearMarks() {
	for _, v := range w.vertices {
		if v != nil {
			v.Kind = 0
		}
	}
	w.pickups, w.deliveries, w.endpoints, w.nonTask = nil, nil, nil, nil
}
