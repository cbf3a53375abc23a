package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Run records",
		SQL: `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    instance TEXT NOT NULL,
    map_file TEXT,
    solver TEXT NOT NULL,
    seed INTEGER NOT NULL DEFAULT 0,
    agents INTEGER NOT NULL,
    solved BOOLEAN NOT NULL,
    soc INTEGER DEFAULT 0,
    lb_soc INTEGER DEFAULT 0,
    makespan INTEGER DEFAULT 0,
    lb_makespan INTEGER DEFAULT 0,
    comp_time_ms INTEGER DEFAULT 0,
    preprocessing_ms INTEGER DEFAULT 0,
    complement_ms INTEGER DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_instance ON runs(instance);
CREATE INDEX IF NOT EXISTS idx_runs_solver ON runs(solver);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`,
	},
	{
		Version:     2,
		Description: "MAPD columns",
		SQL: `
ALTER TABLE runs ADD COLUMN mapd BOOLEAN NOT NULL DEFAULT 0;
ALTER TABLE runs ADD COLUMN service_time REAL DEFAULT 0;
ALTER TABLE runs ADD COLUMN tasks_closed INTEGER DEFAULT 0;
`,
	},
}

func (s *Store) applyMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	applied, err := appliedVersionsTx(ctx, tx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return tx.Commit()
}

func appliedVersionsTx(ctx context.Context, tx *sql.Tx) (map[int]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT version FROM schema_version`)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer rows.Close()
	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// LatestVersion returns the highest applied schema version.
func (s *Store) LatestVersion() (int, error) {
	var v int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return v, nil
}
