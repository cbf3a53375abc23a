package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/pibt-mapd/internal/algo"
	"github.com/elektrokombinacija/pibt-mapd/internal/config"
	"github.com/elektrokombinacija/pibt-mapd/internal/core"
	"github.com/elektrokombinacija/pibt-mapd/internal/report"
	"github.com/elektrokombinacija/pibt-mapd/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path string, lines ...string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeMap(t *testing.T, dir, name string, rows ...string) {
	t.Helper()
	lines := []string{
		"type octile",
		"height " + strconv.Itoa(len(rows)),
		"width " + strconv.Itoa(len(rows[0])),
		"map",
	}
	writeFile(t, filepath.Join(dir, name), append(lines, rows...)...)
}

// gridInstance writes a 4x4 empty map and a two-agent instance on it.
func gridInstance(t *testing.T) (dir, instance string) {
	t.Helper()
	dir = t.TempDir()
	writeMap(t, dir, "grid.map", "....", "....", "....", "....")
	instance = writeFile(t, filepath.Join(dir, "grid.txt"),
		"map_file=grid.map",
		"agents=2",
		"seed=0",
		"random_problem=0",
		"max_timestep=100",
		"max_comp_time=10000",
		"0,0,3,3",
		"3,0,0,3",
	)
	return dir, instance
}

// warehouseInstance writes a 7x5 map with shelves on top and parking at the
// bottom, and a three-agent MAPD instance on it.
func warehouseInstance(t *testing.T) (dir, instance string) {
	t.Helper()
	dir = t.TempDir()
	writeMap(t, dir, "wh.map", ".......", ".......", ".......", ".......", ".......")
	writeFile(t, filepath.Join(dir, "wh.map.pd"), "sssssss", ".......", ".......", ".......", "eeeeeee")
	instance = writeFile(t, filepath.Join(dir, "wh.txt"),
		"map_file=wh.map",
		"agents=3",
		"seed=1",
		"max_timestep=1000",
		"max_comp_time=10000",
		"task_num=10",
		"task_frequency=1",
	)
	return dir, instance
}

func TestMAPFCommand(t *testing.T) {
	for _, solver := range algo.MAPFSolverNames() {
		t.Run(solver, func(t *testing.T) {
			dir, instance := gridInstance(t)
			result := filepath.Join(dir, "result.txt")

			out, err := execute(t, "mapf", "-i", instance, "-s", solver, "-o", result)
			require.NoError(t, err, out)
			assert.Contains(t, out, solver+" solved")

			l, err := report.ReadFile(result)
			require.NoError(t, err)
			assert.True(t, l.Solved)
			assert.Equal(t, solver, l.Solver)
			assert.Equal(t, 2, l.Agents)
			assert.Equal(t, "grid.map", l.MapFile)
			assert.NotEmpty(t, l.RunID)
			assert.NotEmpty(t, l.Solution)
			assert.Equal(t, []core.Pos{{X: 3, Y: 3}, {X: 0, Y: 3}}, l.Goals)
		})
	}
}

func TestMAPFCommand_ShortLogAndStore(t *testing.T) {
	dir, instance := gridInstance(t)
	result := filepath.Join(dir, "result.txt")
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, "mapf", "-i", instance, "-o", result, "-L", "--store", db)
	require.NoError(t, err, out)

	l, err := report.ReadFile(result)
	require.NoError(t, err)
	assert.Empty(t, l.Solution)

	st, err := store.NewStore(db)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, l.RunID, runs[0].ID)
	assert.Equal(t, "PIBT", runs[0].Solver)
	assert.True(t, runs[0].Solved)
}

func TestMAPFCommand_Errors(t *testing.T) {
	dir, instance := gridInstance(t)
	result := filepath.Join(dir, "result.txt")

	_, err := execute(t, "mapf", "-i", instance, "-s", "CBS", "-o", result)
	assert.True(t, errors.Is(err, algo.ErrUnknownSolver), "err = %v", err)

	_, err = execute(t, "mapf", "-o", result)
	assert.Error(t, err, "instance flag is required")

	_, err = execute(t, "mapf", "-i", filepath.Join(dir, "missing.txt"), "-o", result)
	assert.Error(t, err)
}

// Two agents swapping ends of a dead-end corridor never finish; the partial
// plan is still checked and logged.
func TestMAPFCommand_Unsolved(t *testing.T) {
	for _, solver := range algo.MAPFSolverNames() {
		t.Run(solver, func(t *testing.T) {
			dir := t.TempDir()
			writeMap(t, dir, "corridor.map", "....")
			instance := writeFile(t, filepath.Join(dir, "corridor.txt"),
				"map_file=corridor.map",
				"agents=2",
				"seed=0",
				"random_problem=0",
				"max_timestep=100",
				"max_comp_time=1000",
				"0,0,3,0",
				"3,0,0,0",
			)
			result := filepath.Join(dir, "result.txt")

			out, err := execute(t, "mapf", "-i", instance, "-s", solver, "-o", result, "--max-timestep", "3")
			require.NoError(t, err, out)
			assert.Contains(t, out, solver+" failed")

			l, err := report.ReadFile(result)
			require.NoError(t, err)
			assert.False(t, l.Solved)
			if len(l.Solution) == 0 {
				return
			}
			assert.Equal(t, l.Starts, l.Solution[0])
			assert.LessOrEqual(t, len(l.Solution), 4)

			out, err = execute(t, "validate", result)
			require.NoError(t, err, out)
		})
	}
}

func TestMAPDCommand(t *testing.T) {
	for _, solver := range algo.MAPDSolverNames() {
		t.Run(solver, func(t *testing.T) {
			dir, instance := warehouseInstance(t)
			result := filepath.Join(dir, "result.txt")

			out, err := execute(t, "mapd", "-i", instance, "-s", solver, "-o", result)
			require.NoError(t, err, out)
			assert.Contains(t, out, solver+" solved")

			l, err := report.ReadFile(result)
			require.NoError(t, err)
			assert.True(t, l.MAPD)
			assert.True(t, l.Solved)
			assert.Len(t, l.Tasks, 10)
			assert.Len(t, l.Targets, len(l.Solution))
		})
	}
}

func TestGenCommand(t *testing.T) {
	dir, _ := gridInstance(t)
	scen := filepath.Join(dir, "scen.txt")

	_, err := execute(t, "gen", "--map", filepath.Join(dir, "grid.map"), "--agents", "3", "--seed", "5", "-o", scen)
	require.NoError(t, err)

	sc, err := core.LoadScenario(scen)
	require.NoError(t, err)
	assert.Equal(t, "grid.map", sc.MapFile)
	assert.Equal(t, 3, sc.Agents)
	assert.Len(t, sc.Pairs, 3)
	assert.False(t, sc.RandomMAPF())

	out, err := execute(t, "mapf", "-i", scen, "-o", filepath.Join(dir, "result.txt"))
	require.NoError(t, err, out)
}

func TestGenCommand_NeedsSource(t *testing.T) {
	_, err := execute(t, "gen")
	assert.Error(t, err)
}

func TestBenchCommand(t *testing.T) {
	dir, _ := gridInstance(t)
	suite := writeFile(t, filepath.Join(dir, "suite.yaml"),
		"runs:",
		"  - instance: grid.txt",
		"    solvers: [PIBT, HCA]",
		"    seeds: [0, 1]",
		"  - instance: grid.txt",
		"    solvers: [NOPE]",
	)
	csvPath := filepath.Join(dir, "out", "bench.csv")

	out, err := execute(t, "bench", suite, "-o", csvPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "[5/5] NOPE")

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5, "header plus four successful runs")
	assert.Equal(t, report.CSVHeader, rows[0])
	var solvers []string
	for _, row := range rows[1:] {
		solvers = append(solvers, row[2]+"/"+row[3])
		assert.Equal(t, "1", row[5])
	}
	assert.Equal(t, []string{"PIBT/0", "PIBT/1", "HCA/0", "HCA/1"}, solvers)
}

func TestParseSuite(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		runs    int
		wantErr bool
	}{
		{"defaults", "runs:\n  - instance: a.txt\n    solvers: [PIBT]\n", 1, false},
		{"sweeps", "runs:\n  - instance: a.txt\n    solvers: [PIBT, HCA]\n    seeds: [1, 2, 3]\n    agents: [10, 20]\n", 12, false},
		{"mapd default kind", "kind: mapd\nruns:\n  - instance: a.txt\n    solvers: [TP]\n", 1, false},
		{"no runs", "kind: mapf\n", 0, true},
		{"empty", "", 0, true},
		{"missing instance", "runs:\n  - solvers: [PIBT]\n", 0, true},
		{"missing solvers", "runs:\n  - instance: a.txt\n", 0, true},
		{"bad kind", "runs:\n  - instance: a.txt\n    kind: cbs\n    solvers: [PIBT]\n", 0, true},
		{"unknown field", "runs:\n  - instance: a.txt\n    solver: PIBT\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSuite([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, s.Expand(), tt.runs)
		})
	}
}

func TestLoadSuite_ResolvesRelativeInstances(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "suite.yaml"),
		"runs:",
		"  - instance: sub/a.txt",
		"    solvers: [PIBT]",
		"  - instance: /abs/b.txt",
		"    solvers: [PIBT]",
	)
	s, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "a.txt"), s.Entries[0].Instance)
	assert.Equal(t, "/abs/b.txt", s.Entries[1].Instance)
	assert.Equal(t, kindMAPF, s.Entries[0].Kind)
}

func TestValidateCommand(t *testing.T) {
	dir, instance := gridInstance(t)
	result := filepath.Join(dir, "result.txt")
	_, err := execute(t, "mapf", "-i", instance, "-o", result)
	require.NoError(t, err)

	out, err := execute(t, "validate", result)
	require.NoError(t, err, out)
	assert.Contains(t, out, "valid: 2 agents")
}

func TestValidateCommand_Invalid(t *testing.T) {
	dir, _ := gridInstance(t)
	tests := []struct {
		name string
		log  []string
	}{
		{"jump", []string{
			"map_file=grid.map", "solver=PIBT", "solved=1",
			"starts=(0,0),", "goals=(2,0),",
			"solution=", "0:(0,0),", "1:(2,0),",
		}},
		{"vertex conflict", []string{
			"map_file=grid.map", "solver=PIBT", "solved=0",
			"solution=", "0:(0,0),(1,1),", "1:(1,0),(1,0),",
		}},
		{"off goal", []string{
			"map_file=grid.map", "solver=PIBT", "solved=1",
			"goals=(3,3),",
			"solution=", "0:(0,0),", "1:(1,0),",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(dir, "bad.txt"), tt.log...)
			_, err := execute(t, "validate", path)
			assert.True(t, errors.Is(err, ErrPlanInvalid), "err = %v", err)
		})
	}
}

func TestValidateCommand_ShortLog(t *testing.T) {
	dir, _ := gridInstance(t)
	path := writeFile(t, filepath.Join(dir, "short.txt"), "map_file=grid.map", "solver=PIBT", "solved=1")
	_, err := execute(t, "validate", path)
	assert.Error(t, err)
}

func TestSessionCloseReleasesSinks(t *testing.T) {
	a := &app{
		cfg: &config.Config{
			Metrics: config.MetricsConfig{Enabled: true, Addr: "127.0.0.1:0", Path: "/metrics"},
			Store:   config.StoreConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "runs.db")},
		},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	sess, err := a.openSession()
	require.NoError(t, err)
	require.NotNil(t, sess.server)

	require.NoError(t, sess.close())

	_, err = sess.store.ListRuns(context.Background(), store.Filter{})
	assert.Error(t, err, "store still open")
}
