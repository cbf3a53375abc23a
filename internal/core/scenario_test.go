package core

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseScenario(t *testing.T) {
	in := "# toy\r\nmap_file=toy.map\r\nagents=2\r\nseed=7\r\nmax_timestep=100\r\nmax_comp_time=500\r\n0,0,1,0\r\n1,1,0,1\r\n"
	sc, err := ParseScenario(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, "toy.map", sc.MapFile)
	assert.Equal(t, 2, sc.Agents)
	assert.Equal(t, uint64(7), sc.Seed)
	assert.Equal(t, 100, sc.MaxTimestep)
	assert.Equal(t, 500*time.Millisecond, sc.MaxCompTime)
	assert.Equal(t, DefaultTaskNum, sc.TaskNum)
	assert.Len(t, sc.Pairs, 2)
	assert.False(t, sc.RandomMAPF())
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no map", "agents=1\n"},
		{"no agents", "map_file=a.map\n"},
		{"bad number", "map_file=a.map\nagents=x\n"},
		{"bad coords", "map_file=a.map\nagents=1\n1,2,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrInvalidInstance)
		})
	}
}

func TestScenarioMAPF(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "toy.map"), "type octile\nheight 2\nwidth 2\nmap\n..\n..\n")
	writeFile(t, filepath.Join(dir, "toy.txt"), "map_file=toy.map\nagents=2\n0,0,1,0\n1,1,0,1\n")

	sc, err := LoadScenario(filepath.Join(dir, "toy.txt"))
	require.NoError(t, err)
	w, err := sc.LoadWorkspace()
	require.NoError(t, err)
	inst, err := sc.MAPF(w)
	require.NoError(t, err)

	assert.Equal(t, Config{0, 3}, inst.Starts)
	assert.Equal(t, Config{1, 2}, inst.Goals)
	assert.Equal(t, DefaultMaxTimestep, inst.MaxTimestep)

	var buf bytes.Buffer
	require.NoError(t, WriteScenario(&buf, inst, "toy.map"))
	again, err := ParseScenario(&buf)
	require.NoError(t, err)
	assert.Equal(t, sc.Pairs, again.Pairs)
	assert.Equal(t, inst.MaxCompTime, again.MaxCompTime)
}

func TestScenarioRandomMAPF(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "open.map"), "type octile\nheight 4\nwidth 4\nmap\n....\n....\n....\n....\n")
	writeFile(t, filepath.Join(dir, "rand.txt"), "map_file=open.map\nagents=5\nseed=3\nrandom_problem=1\n0,0,1,0\n")

	sc, err := LoadScenario(filepath.Join(dir, "rand.txt"))
	require.NoError(t, err)
	assert.True(t, sc.RandomMAPF())
	w, err := sc.LoadWorkspace()
	require.NoError(t, err)

	a, err := sc.MAPF(w)
	require.NoError(t, err)
	b, err := sc.MAPF(w)
	require.NoError(t, err)
	assert.Len(t, a.Starts, 5)
	assert.Equal(t, a.Starts, b.Starts, "same seed must give the same instance")
	assert.Equal(t, a.Goals, b.Goals)
}

func TestScenarioMAPD(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "wh.map"), "type octile\nheight 3\nwidth 4\nmap\n....\n....\n....\n")
	writeFile(t, filepath.Join(dir, "wh.map.pd"), "e..e\npdsp\ne..e\n")
	writeFile(t, filepath.Join(dir, "mapd.txt"), "map_file=wh.map\nagents=2\ntask_num=10\ntask_frequency=1\n")

	sc, err := LoadScenario(filepath.Join(dir, "mapd.txt"))
	require.NoError(t, err)
	w, err := sc.LoadWorkspace()
	require.NoError(t, err)
	inst, err := sc.MAPD(w)
	require.NoError(t, err)

	assert.Equal(t, 0, inst.Timestep)
	require.Len(t, inst.Open, 1)
	for _, v := range inst.Starts {
		assert.Equal(t, KindEndpoint, w.Vertex(v).Kind, "start should be a parking endpoint")
	}
	task := inst.Open[0]
	assert.NotZero(t, w.Vertex(task.Pickup).Kind&KindPickup)
	assert.NotZero(t, w.Vertex(task.Delivery).Kind&KindDelivery)
}
