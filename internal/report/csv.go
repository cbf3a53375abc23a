package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVHeader names the columns of a benchmark row.
var CSVHeader = []string{
	"run_id", "instance", "solver", "seed", "agents", "solved",
	"soc", "lb_soc", "makespan", "lb_makespan", "service_time",
	"comp_time_ms", "preprocessing_ms", "complement_ms",
}

// CSVRow renders the log summary as one benchmark row.
func (l *Log) CSVRow(seed uint64) []string {
	return []string{
		l.RunID,
		l.Instance,
		l.Solver,
		strconv.FormatUint(seed, 10),
		strconv.Itoa(l.Agents),
		strconv.Itoa(boolInt(l.Solved)),
		strconv.Itoa(l.SOC),
		strconv.Itoa(l.LBSOC),
		strconv.Itoa(l.Makespan),
		strconv.Itoa(l.LBMakespan),
		strconv.FormatFloat(l.ServiceTime, 'f', 3, 64),
		strconv.FormatInt(l.CompTime.Milliseconds(), 10),
		strconv.FormatInt(l.PreprocessingTime.Milliseconds(), 10),
		strconv.FormatInt(l.ComplementTime.Milliseconds(), 10),
	}
}

// CSVWriter streams benchmark rows, writing the header first.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter writes the header to out.
func NewCSVWriter(out io.Writer) (*CSVWriter, error) {
	w := csv.NewWriter(out)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	return &CSVWriter{w: w}, nil
}

// Write appends one row and flushes it.
func (c *CSVWriter) Write(l *Log, seed uint64) error {
	if err := c.w.Write(l.CSVRow(seed)); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}
