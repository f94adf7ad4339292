package jobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"scenecast/internal/jobstore/migrations"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, storeError("stats", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, storeError("stats", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("stats", err)
	}
	return stats, nil
}

// Health describes the job database for diagnostic output.
type Health struct {
	DBPath         string `json:"dbPath"`
	DatabaseExists bool   `json:"databaseExists"`
	SchemaVersion  uint   `json:"schemaVersion"`
	Dirty          bool   `json:"dirty"`
	Integrity      string `json:"integrity"`
	Jobs           int    `json:"jobs"`
	Error          string `json:"error,omitempty"`
}

// Healthy reports whether the database is present, migrated and intact.
func (h Health) Healthy() bool {
	return h.DatabaseExists && !h.Dirty && h.Integrity == "ok" && h.Error == ""
}

// Health returns diagnostic information about the job database.
func (s *Store) Health(ctx context.Context) (Health, error) {
	health := Health{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("job database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat job database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("job database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping job database: %w", err)
	}

	migrator, err := migrations.NewMigrator(s.db, s.logger)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	version, dirty, err := migrator.Version(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version
	health.Dirty = dirty

	if err := s.db.QueryRowContext(connCtx, "PRAGMA quick_check").Scan(&health.Integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM jobs").Scan(&health.Jobs); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count jobs: %w", err)
	}
	return health, nil
}
