package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const corridorMap = `type octile
height 3
width 5
map
@@@@@
.....
@@.@@
`

func TestGridNeighbors(t *testing.T) {
	g := NewGrid(3, 3)
	tests := []struct {
		v    NodeID
		want int
	}{
		{0, 2}, // corner
		{1, 3}, // edge
		{4, 4}, // center
	}
	for _, tt := range tests {
		if got := len(g.Neighbors(tt.v)); got != tt.want {
			t.Errorf("len(Neighbors(%d)) = %d, want %d", tt.v, got, tt.want)
		}
	}
	if !IsAdjacent(g, 0, 1) || IsAdjacent(g, 0, 4) {
		t.Errorf("IsAdjacent gives wrong answer on 3x3 grid")
	}
}

func TestParseMap(t *testing.T) {
	w, err := ParseMap(strings.NewReader(corridorMap))
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	if w.Width != 5 || w.Height != 3 {
		t.Fatalf("size = %dx%d, want 5x3", w.Width, w.Height)
	}
	if got := len(w.Nodes()); got != 6 {
		t.Errorf("free cells = %d, want 6", got)
	}
	if _, ok := w.NodeAt(Pos{X: 0, Y: 0}); ok {
		t.Errorf("obstacle (0,0) reported as node")
	}
	v, ok := w.NodeAt(Pos{X: 2, Y: 2})
	if !ok {
		t.Fatalf("(2,2) should be free")
	}
	if got := w.Pos(v); got != (Pos{X: 2, Y: 2}) {
		t.Errorf("Pos(%d) = %v", v, got)
	}
	if got := len(w.Neighbors(v)); got != 1 {
		t.Errorf("dead end has %d neighbors, want 1", got)
	}
}

func TestParseMapErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no size", "type octile\nmap\n..\n"},
		{"short rows", "height 2\nwidth 2\nmap\n..\n"},
		{"wide row", "height 1\nwidth 2\nmap\n...\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMap(strings.NewReader(tt.in)); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func TestPathDist(t *testing.T) {
	w, err := ParseMap(strings.NewReader(corridorMap))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := w.NodeAt(Pos{X: 0, Y: 1})
	b, _ := w.NodeAt(Pos{X: 4, Y: 1})
	c, _ := w.NodeAt(Pos{X: 2, Y: 2})

	if got := w.PathDist(a, b); got != 4 {
		t.Errorf("PathDist(a, b) = %d, want 4", got)
	}
	if got := w.PathDist(a, c); got != 3 {
		t.Errorf("PathDist(a, c) = %d, want 3", got)
	}
	if got := w.PathDist(a, 0); got != w.Size() {
		t.Errorf("distance to obstacle = %d, want sentinel %d", got, w.Size())
	}
}

func TestPathAvoidsBlocked(t *testing.T) {
	g := NewGrid(3, 3)
	// 0 1 2
	// 3 4 5
	// 6 7 8
	path := g.Path(0, 2, []NodeID{1})
	if len(path) != 5 {
		t.Fatalf("path = %v, want a 5-node detour", path)
	}
	for _, v := range path {
		if v == 1 {
			t.Errorf("path %v passes blocked node", path)
		}
	}
	if path[0] != 0 || path[len(path)-1] != 2 {
		t.Errorf("path %v has wrong endpoints", path)
	}

	if p := g.Path(0, 2, []NodeID{1, 4, 7}); p != nil {
		t.Errorf("expected no path, got %v", p)
	}
	if p := g.Path(4, 4, nil); len(p) != 1 {
		t.Errorf("Path(v, v) = %v, want single node", p)
	}
}

func TestLoadMapWithPD(t *testing.T) {
	dir := t.TempDir()
	mapPath := filepath.Join(dir, "tiny.map")
	if err := os.WriteFile(mapPath, []byte("type octile\nheight 2\nwidth 3\nmap\n...\n.@.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(mapPath+".pd", []byte("pd.\ne@a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := LoadMap(mapPath)
	if err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	if w.Name != "tiny.map" {
		t.Errorf("Name = %q", w.Name)
	}
	if got := len(w.Pickups()); got != 2 {
		t.Errorf("pickups = %d, want 2", got)
	}
	if got := len(w.Deliveries()); got != 2 {
		t.Errorf("deliveries = %d, want 2", got)
	}
	if got := len(w.NonTaskEndpoints()); got != 2 {
		t.Errorf("non-task endpoints = %d, want 2", got)
	}
	if got := len(w.Endpoints()); got != 4 {
		t.Errorf("endpoints = %d, want 4", got)
	}

	w.ClearMarks()
	if got := len(w.Pickups()); got != len(w.Nodes()) {
		t.Errorf("after ClearMarks pickups = %d, want every node", got)
	}
}
