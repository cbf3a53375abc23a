// Package store persists planning runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/elektrokombinacija/pibt-mapd/internal/report"
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// Run is one persisted planning run.
type Run struct {
	ID          string
	Instance    string
	MapFile     string
	Solver      string
	Seed        uint64
	Agents      int
	MAPD        bool
	Solved      bool
	SOC         int
	LBSOC       int
	Makespan    int
	LBMakespan  int
	ServiceTime float64
	TasksClosed int
	CompTime    time.Duration
	Preprocess  time.Duration
	Complement  time.Duration
	CreatedAt   time.Time
}

// RunFromLog copies the summary of a result log.
func RunFromLog(l *report.Log, seed uint64) *Run {
	return &Run{
		ID:          l.RunID,
		Instance:    l.Instance,
		MapFile:     l.MapFile,
		Solver:      l.Solver,
		Seed:        seed,
		Agents:      l.Agents,
		MAPD:        l.MAPD,
		Solved:      l.Solved,
		SOC:         l.SOC,
		LBSOC:       l.LBSOC,
		Makespan:    l.Makespan,
		LBMakespan:  l.LBMakespan,
		ServiceTime: l.ServiceTime,
		TasksClosed: len(l.Tasks),
		CompTime:    l.CompTime,
		Preprocess:  l.PreprocessingTime,
		Complement:  l.ComplementTime,
	}
}

// Store manages the run database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens dbPath, creating parent directories and applying
// migrations. ":memory:" opens a private in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.applyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return s, nil
}

func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun inserts run, assigning a fresh id and creation time when unset.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(id, instance, map_file, solver, seed, agents, mapd, solved, soc, lb_soc, makespan, lb_makespan,
		 service_time, tasks_closed, comp_time_ms, preprocessing_ms, complement_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Instance,
		run.MapFile,
		run.Solver,
		int64(run.Seed),
		run.Agents,
		run.MAPD,
		run.Solved,
		run.SOC,
		run.LBSOC,
		run.Makespan,
		run.LBMakespan,
		run.ServiceTime,
		run.TasksClosed,
		run.CompTime.Milliseconds(),
		run.Preprocess.Milliseconds(),
		run.Complement.Milliseconds(),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const runColumns = `id, instance, map_file, solver, seed, agents, mapd, solved, soc, lb_soc, makespan, lb_makespan,
	service_time, tasks_closed, comp_time_ms, preprocessing_ms, complement_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var seed, compMs, preMs, compleMs int64
	var mapFile sql.NullString
	err := row.Scan(
		&run.ID,
		&run.Instance,
		&mapFile,
		&run.Solver,
		&seed,
		&run.Agents,
		&run.MAPD,
		&run.Solved,
		&run.SOC,
		&run.LBSOC,
		&run.Makespan,
		&run.LBMakespan,
		&run.ServiceTime,
		&run.TasksClosed,
		&compMs,
		&preMs,
		&compleMs,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.MapFile = mapFile.String
	run.Seed = uint64(seed)
	run.CompTime = time.Duration(compMs) * time.Millisecond
	run.Preprocess = time.Duration(preMs) * time.Millisecond
	run.Complement = time.Duration(compleMs) * time.Millisecond
	return run, nil
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// Filter narrows ListRuns. Empty fields match everything.
type Filter struct {
	Instance string
	Solver   string
	Limit    int
}

// ListRuns returns matching runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, f Filter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any
	if f.Instance != "" {
		query += ` AND instance = ?`
		args = append(args, f.Instance)
	}
	if f.Solver != "" {
		query += ` AND solver = ?`
		args = append(args, f.Solver)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SolverStats aggregates runs of one solver.
type SolverStats struct {
	Solver       string
	Runs         int
	Solved       int
	MeanMakespan float64
	MeanCompTime time.Duration
}

// SuccessRate is the fraction of solved runs.
func (st SolverStats) SuccessRate() float64 {
	if st.Runs == 0 {
		return 0
	}
	return float64(st.Solved) / float64(st.Runs)
}

// Stats aggregates runs per solver, ordered by solver name.
func (s *Store) Stats(ctx context.Context) ([]SolverStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT solver, COUNT(*), SUM(solved),
		AVG(CASE WHEN solved THEN makespan END), AVG(comp_time_ms)
		FROM runs GROUP BY solver ORDER BY solver`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []SolverStats
	for rows.Next() {
		var st SolverStats
		var makespan, compMs sql.NullFloat64
		if err := rows.Scan(&st.Solver, &st.Runs, &st.Solved, &makespan, &compMs); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		st.MeanMakespan = makespan.Float64
		st.MeanCompTime = time.Duration(compMs.Float64 * float64(time.Millisecond))
		out = append(out, st)
	}
	return out, rows.Err()
}

// DeleteBefore removes runs created before t and reports how many were removed.
func (s *Store) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	return res.RowsAffected()
}
