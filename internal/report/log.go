// Package report writes and reads result logs and benchmark rows.
//
// A result log is a list of key=value lines followed by the plan:
//
//	instance=...
//	solver=PIBT
//	solved=1
//	...
//	starts=(0,0),(3,1),
//	goals=(2,2),(0,1),
//	solution=
//	0:(0,0),(3,1),
//	1:(1,0),(3,0),
//
// MAPD logs replace goals with a task= block and annotate every solution
// entry with the agent's target and task: (x,y)->(tx,ty):task,
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/elektrokombinacija/pibt-mapd/internal/algo"
	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

// ErrMalformedLog is wrapped by every parse failure.
var ErrMalformedLog = errors.New("malformed result log")

// TaskRecord is a closed MAPD task.
type TaskRecord struct {
	ID       core.TaskID
	Pickup   core.Pos
	Delivery core.Pos
	Appear   int
	Finished int
}

// Log is the content of a result log.
type Log struct {
	RunID    string
	Instance string
	Agents   int
	MapFile  string
	Solver   string
	Solved   bool
	MAPD     bool

	// MAPF
	SOC        int
	LBSOC      int
	LBMakespan int
	// MAPD, average over closed tasks
	ServiceTime float64

	Makespan          int
	CompTime          time.Duration
	PreprocessingTime time.Duration
	ComplementTime    time.Duration

	Starts   []core.Pos
	Goals    []core.Pos
	Tasks    []TaskRecord
	Solution [][]core.Pos
	Targets  [][]core.Pos
	TaskIDs  [][]core.TaskID
}

// FromMAPF builds the log of a MAPF run.
func FromMAPF(instance, mapFile string, inst *core.MAPFInstance, res *algo.Result) *Log {
	l := &Log{
		Instance:          instance,
		Agents:            inst.NumAgents(),
		MapFile:           mapFile,
		Solver:            res.Solver,
		Solved:            res.Solved,
		SOC:               res.Plan.SOC(),
		LBSOC:             res.LBSOC,
		Makespan:          res.Plan.Makespan(),
		LBMakespan:        res.LBMakespan,
		CompTime:          res.CompTime,
		PreprocessingTime: res.PreprocessingTime,
		ComplementTime:    res.ComplementTime,
		Starts:            positions(inst.G, inst.Starts),
		Goals:             positions(inst.G, inst.Goals),
	}
	for t := 0; t < res.Plan.Len(); t++ {
		l.Solution = append(l.Solution, positions(inst.G, res.Plan.Get(t)))
	}
	return l
}

// FromMAPD builds the log of a MAPD run.
func FromMAPD(instance, mapFile string, inst *core.MAPDInstance, res *algo.Result) *Log {
	l := &Log{
		Instance:          instance,
		Agents:            inst.NumAgents(),
		MapFile:           mapFile,
		Solver:            res.Solver,
		Solved:            res.Solved,
		MAPD:              true,
		ServiceTime:       inst.AverageServiceTime(),
		Makespan:          res.Plan.Makespan(),
		CompTime:          res.CompTime,
		PreprocessingTime: res.PreprocessingTime,
		Starts:            positions(inst.G, inst.Starts),
	}
	for _, task := range inst.Closed {
		l.Tasks = append(l.Tasks, TaskRecord{
			ID:       task.ID,
			Pickup:   inst.G.Pos(task.Pickup),
			Delivery: inst.G.Pos(task.Delivery),
			Appear:   task.Appear,
			Finished: task.Finished,
		})
	}
	for t := 0; t < res.Plan.Len(); t++ {
		l.Solution = append(l.Solution, positions(inst.G, res.Plan.Get(t)))
		if t < len(res.Targets) {
			l.Targets = append(l.Targets, positions(inst.G, res.Targets[t]))
			l.TaskIDs = append(l.TaskIDs, res.Tasks[t])
		}
	}
	return l
}

func positions(g core.Graph, c core.Config) []core.Pos {
	out := make([]core.Pos, len(c))
	for i, v := range c {
		out[i] = g.Pos(v)
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Write renders the log. With short set, starts, goals, tasks and the
// solution are omitted.
func (l *Log) Write(out io.Writer, short bool) error {
	w := bufio.NewWriter(out)
	if l.RunID != "" {
		fmt.Fprintf(w, "run_id=%s\n", l.RunID)
	}
	fmt.Fprintf(w, "instance=%s\n", l.Instance)
	fmt.Fprintf(w, "agents=%d\n", l.Agents)
	fmt.Fprintf(w, "map_file=%s\n", l.MapFile)
	fmt.Fprintf(w, "solver=%s\n", l.Solver)
	fmt.Fprintf(w, "solved=%d\n", boolInt(l.Solved))
	if l.MAPD {
		fmt.Fprintf(w, "service_time=%s\n", strconv.FormatFloat(l.ServiceTime, 'f', -1, 64))
		fmt.Fprintf(w, "makespan=%d\n", l.Makespan)
	} else {
		fmt.Fprintf(w, "soc=%d\n", l.SOC)
		fmt.Fprintf(w, "lb_soc=%d\n", l.LBSOC)
		fmt.Fprintf(w, "makespan=%d\n", l.Makespan)
		fmt.Fprintf(w, "lb_makespan=%d\n", l.LBMakespan)
	}
	fmt.Fprintf(w, "comp_time=%d\n", l.CompTime.Milliseconds())
	fmt.Fprintf(w, "preprocessing_comp_time=%d\n", l.PreprocessingTime.Milliseconds())
	if l.ComplementTime > 0 {
		fmt.Fprintf(w, "comp_time_complement=%d\n", l.ComplementTime.Milliseconds())
	}
	if short {
		return w.Flush()
	}

	fmt.Fprintf(w, "starts=%s\n", formatPositions(l.Starts))
	if l.MAPD {
		fmt.Fprintln(w, "task=")
		for _, task := range l.Tasks {
			fmt.Fprintf(w, "%d:%s->%s,appear=%d,finished=%d\n",
				task.ID, task.Pickup, task.Delivery, task.Appear, task.Finished)
		}
	} else {
		fmt.Fprintf(w, "goals=%s\n", formatPositions(l.Goals))
	}

	fmt.Fprintln(w, "solution=")
	for t, cfg := range l.Solution {
		fmt.Fprintf(w, "%d:", t)
		for i, p := range cfg {
			if l.MAPD && t < len(l.Targets) {
				fmt.Fprintf(w, "%s->%s:%d,", p, l.Targets[t][i], l.TaskIDs[t][i])
			} else {
				fmt.Fprintf(w, "%s,", p)
			}
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func formatPositions(ps []core.Pos) string {
	var b strings.Builder
	for _, p := range ps {
		b.WriteString(p.String())
		b.WriteByte(',')
	}
	return b.String()
}

// WriteFile writes the log to path.
func (l *Log) WriteFile(path string, short bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result log: %w", err)
	}
	if err := l.Write(f, short); err != nil {
		f.Close()
		return fmt.Errorf("write result log: %w", err)
	}
	return f.Close()
}
