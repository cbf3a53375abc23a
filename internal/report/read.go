package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
)

type section int

const (
	sectionHeader section = iota
	sectionTasks
	sectionSolution
)

// ReadFile parses a result log from disk.
func ReadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open result log: %w", err)
	}
	defer f.Close()
	l, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return l, nil
}

// Read parses a result log written by Log.Write.
func Read(r io.Reader) (*Log, error) {
	l := &Log{}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sec := sectionHeader
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		var err error
		switch {
		case line == "task=":
			l.MAPD = true
			sec = sectionTasks
		case line == "solution=":
			sec = sectionSolution
		case sec == sectionTasks:
			err = l.readTask(line)
		case sec == sectionSolution:
			err = l.readStep(line)
		default:
			err = l.readField(line)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedLog, lineNo, err)
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) readField(line string) error {
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", line)
	}
	var err error
	switch key {
	case "run_id":
		l.RunID = val
	case "instance":
		l.Instance = val
	case "map_file":
		l.MapFile = val
	case "solver":
		l.Solver = val
	case "agents":
		l.Agents, err = strconv.Atoi(val)
	case "solved":
		l.Solved = val == "1"
	case "soc":
		l.SOC, err = strconv.Atoi(val)
	case "lb_soc":
		l.LBSOC, err = strconv.Atoi(val)
	case "makespan":
		l.Makespan, err = strconv.Atoi(val)
	case "lb_makespan":
		l.LBMakespan, err = strconv.Atoi(val)
	case "service_time":
		l.MAPD = true
		l.ServiceTime, err = strconv.ParseFloat(val, 64)
	case "comp_time":
		l.CompTime, err = parseMillis(val)
	case "preprocessing_comp_time":
		l.PreprocessingTime, err = parseMillis(val)
	case "comp_time_complement":
		l.ComplementTime, err = parseMillis(val)
	case "starts":
		l.Starts, err = parsePositions(val)
	case "goals":
		l.Goals, err = parsePositions(val)
	}
	// Unknown keys are skipped so newer logs stay readable.
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// readTask parses "id:(px,py)->(dx,dy),appear=A,finished=F".
func (l *Log) readTask(line string) error {
	idStr, rest, ok := strings.Cut(line, ":")
	if !ok {
		return fmt.Errorf("task %q: missing id", line)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	c := cursor{s: rest}
	task := TaskRecord{ID: core.TaskID(id)}
	if task.Pickup, err = c.pos(); err != nil {
		return err
	}
	if err := c.expect("->"); err != nil {
		return err
	}
	if task.Delivery, err = c.pos(); err != nil {
		return err
	}
	for _, field := range strings.Split(strings.TrimPrefix(c.s, ","), ",") {
		key, val, _ := strings.Cut(field, "=")
		switch key {
		case "appear":
			task.Appear, err = strconv.Atoi(val)
		case "finished":
			task.Finished, err = strconv.Atoi(val)
		}
		if err != nil {
			return fmt.Errorf("task %d %s: %w", id, key, err)
		}
	}
	l.Tasks = append(l.Tasks, task)
	return nil
}

// readStep parses one solution line. Entries are "(x,y)," for MAPF and
// "(x,y)->(tx,ty):task," for MAPD.
func (l *Log) readStep(line string) error {
	tStr, rest, ok := strings.Cut(line, ":")
	if !ok {
		return fmt.Errorf("solution line %q: missing timestep", line)
	}
	t, err := strconv.Atoi(tStr)
	if err != nil {
		return fmt.Errorf("timestep: %w", err)
	}
	if t != len(l.Solution) {
		return fmt.Errorf("timestep %d out of order, expected %d", t, len(l.Solution))
	}

	var (
		cfg     []core.Pos
		targets []core.Pos
		tasks   []core.TaskID
	)
	c := cursor{s: rest}
	for !c.done() {
		p, err := c.pos()
		if err != nil {
			return err
		}
		cfg = append(cfg, p)
		if c.consume("->") {
			target, err := c.pos()
			if err != nil {
				return err
			}
			if err := c.expect(":"); err != nil {
				return err
			}
			id, err := c.int()
			if err != nil {
				return err
			}
			targets = append(targets, target)
			tasks = append(tasks, core.TaskID(id))
		}
		if err := c.expect(","); err != nil {
			return err
		}
	}
	l.Solution = append(l.Solution, cfg)
	if targets != nil {
		l.Targets = append(l.Targets, targets)
		l.TaskIDs = append(l.TaskIDs, tasks)
	}
	return nil
}

func parsePositions(s string) ([]core.Pos, error) {
	var out []core.Pos
	c := cursor{s: s}
	for !c.done() {
		p, err := c.pos()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		if err := c.expect(","); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type cursor struct {
	s string
}

func (c *cursor) done() bool { return c.s == "" }

func (c *cursor) consume(prefix string) bool {
	if strings.HasPrefix(c.s, prefix) {
		c.s = c.s[len(prefix):]
		return true
	}
	return false
}

func (c *cursor) expect(prefix string) error {
	if !c.consume(prefix) {
		return fmt.Errorf("expected %q at %q", prefix, c.s)
	}
	return nil
}

func (c *cursor) int() (int, error) {
	end := 0
	for end < len(c.s) && (c.s[end] == '-' || c.s[end] >= '0' && c.s[end] <= '9') {
		end++
	}
	n, err := strconv.Atoi(c.s[:end])
	if err != nil {
		return 0, fmt.Errorf("number at %q: %w", c.s, err)
	}
	c.s = c.s[end:]
	return n, nil
}

func (c *cursor) pos() (core.Pos, error) {
	var p core.Pos
	var err error
	if err = c.expect("("); err != nil {
		return p, err
	}
	if p.X, err = c.int(); err != nil {
		return p, err
	}
	if err = c.expect(","); err != nil {
		return p, err
	}
	if p.Y, err = c.int(); err != nil {
		return p, err
	}
	return p, c.expect(")")
}
