package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"scenecast/internal/config"
	"scenecast/internal/jobstore/migrations"
	"scenecast/internal/logging"
	"scenecast/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	// writeMu serializes every write so read-modify-write sequences never
	// interleave within the process.
	writeMu sync.Mutex
	now     func() time.Time
}

const (
	sqliteBusyCode          = 5
	sqliteCorruptCode       = 11
	sqliteNotADBCode        = 26
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open connects to the job database under the configured data directory.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobstore", "open", "config is required", nil)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrStoreIO, "jobstore", "open", "ensure directories", err)
	}
	return OpenPath(cfg.DatabasePath(), logger)
}

// OpenPath connects to the database at path, applying pragmas and migrations.
// A file SQLite cannot read is renamed aside and replaced by an empty one.
func OpenPath(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "jobstore")

	db, err := openDatabase(path, logger)
	if err != nil && isCorruption(err) {
		quarantined, qerr := quarantine(path)
		if qerr != nil {
			return nil, services.Wrap(services.ErrStoreIO, "jobstore", "open", "quarantine corrupt database", errors.Join(err, qerr))
		}
		logger.Warn("job database unreadable; starting with an empty collection",
			logging.String(logging.FieldEventType, "jobstore_quarantined"),
			logging.String("quarantined_path", quarantined),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the quarantined file or import it with jobs import"),
			logging.String(logging.FieldImpact, "previous job history is not visible"),
		)
		db, err = openDatabase(path, logger)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStoreIO, "jobstore", "open", path, err)
	}
	return &Store{db: db, path: path, logger: logger, now: time.Now}, nil
}

func openDatabase(path string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	if check != "ok" {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %s", errIntegrity, check)
	}

	migrator, err := migrations.NewMigrator(db, logger)
	if err == nil {
		err = migrator.Up(context.Background())
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

var errIntegrity = errors.New("integrity check failed")

func isCorruption(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errIntegrity) {
		return true
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		code := coder.Code() & 0xff
		if code == sqliteCorruptCode || code == sqliteNotADBCode {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "file is not a database") || strings.Contains(msg, "malformed")
}

// quarantine moves the database and its WAL companions aside.
func quarantine(path string) (string, error) {
	target := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return target, fmt.Errorf("remove %s: %w", filepath.Base(path+suffix), err)
		}
	}
	return target, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// withTx runs fn inside a transaction, retrying the whole unit when SQLite
// reports the database busy.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func storeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrNotFound) {
		return err
	}
	return services.Wrap(services.ErrStoreIO, "jobstore", operation, "", err)
}
