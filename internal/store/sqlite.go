// ABOUTME: SQLite implementation of the Store interface using database/sql
// ABOUTME: Owns the connection pool, schema creation, and the transaction helper

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Options configures NewSQLiteStore. The zero value is usable.
type Options struct {
	Driver       string        // DriverModernc (default) or DriverMattn
	BusyTimeout  time.Duration // how long a writer waits for the lock, default 5s
	MaxOpenConns int           // 0 leaves the database/sql default
	Logger       *slog.Logger
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the SQLite database at path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. ":memory:" opens a private
// in-memory database restricted to a single connection.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	if !isMemoryPath(path) {
		dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	dsn, err := buildDSN(driver, path, opts.BusyTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is its own database.
	if isMemoryPath(path) {
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database (driver %s): %w", driver, err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS holders (
			id         TEXT PRIMARY KEY,
			type       TEXT NOT NULL,
			owner_key  TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,

			UNIQUE(type, owner_key),
			CHECK (type IN ('individual', 'group', 'global'))
		);

		CREATE TABLE IF NOT EXISTS folders (
			id          TEXT PRIMARY KEY,
			holder_id   TEXT NOT NULL REFERENCES holders(id),
			name        TEXT NOT NULL,
			name_key    TEXT NOT NULL,
			description TEXT,
			icon        TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,

			UNIQUE(holder_id, name_key),
			UNIQUE(id, holder_id),
			CHECK (name <> '')
		);

		CREATE INDEX IF NOT EXISTS idx_folders_holder ON folders(holder_id, name_key);

		-- folder_id + holder_id together reference folders so a waypoint can
		-- never sit in a folder of another holder. SQLite skips the check while
		-- folder_id is NULL.
		CREATE TABLE IF NOT EXISTS waypoints (
			id               TEXT PRIMARY KEY,
			holder_id        TEXT NOT NULL REFERENCES holders(id),
			folder_id        TEXT,
			name             TEXT NOT NULL,
			name_key         TEXT NOT NULL,
			description      TEXT,
			location_world   TEXT NOT NULL,
			location_x       REAL NOT NULL,
			location_y       REAL NOT NULL,
			location_z       REAL NOT NULL,
			icon             TEXT NOT NULL DEFAULT '',
			visibility_token TEXT,
			creator_id       TEXT,
			created_at       TEXT NOT NULL,

			UNIQUE(holder_id, name_key),
			FOREIGN KEY (folder_id, holder_id) REFERENCES folders(id, holder_id),
			CHECK (name <> '')
		);

		CREATE INDEX IF NOT EXISTS idx_waypoints_holder ON waypoints(holder_id, name_key);
		CREATE INDEX IF NOT EXISTS idx_waypoints_folder ON waypoints(folder_id);

		CREATE TRIGGER IF NOT EXISTS folders_holder_immutable
		BEFORE UPDATE OF holder_id ON folders
		WHEN NEW.holder_id <> OLD.holder_id
		BEGIN
			SELECT RAISE(ABORT, 'folder holder is immutable');
		END;

		CREATE TRIGGER IF NOT EXISTS waypoints_holder_immutable
		BEFORE UPDATE OF holder_id ON waypoints
		WHEN NEW.holder_id <> OLD.holder_id
		BEGIN
			SELECT RAISE(ABORT, 'waypoint holder is immutable');
		END;

		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id    TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			operation   TEXT NOT NULL,
			holder_id   TEXT NOT NULL,
			entity_id   TEXT NOT NULL,
			entity_name TEXT NOT NULL DEFAULT '',
			ts          TEXT NOT NULL,
			detail_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_holder ON audit_log(holder_id);
		CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// inTx runs fn inside one transaction. The transaction is rolled back when fn
// returns an error or ctx is cancelled before Commit.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isConstraintViolation(err) {
			return classifyConstraint(err)
		}
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// newID returns a time-ordered UUID v7 so ties in name sort by creation.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "is immutable")
}

// classifyConstraint maps a constraint violation to the store's sentinel errors.
func classifyConstraint(err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "name_key"):
		return ErrDuplicateName
	case strings.Contains(errStr, "immutable"):
		return fmt.Errorf("%w: %v", ErrCrossHolder, err)
	default:
		return fmt.Errorf("constraint violation: %w", err)
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// timeLayout is fixed-width so stored timestamps sort and compare as text
// and keep the nanoseconds of the in-memory value.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// storedTime is t as it reads back from the database.
func storedTime(t time.Time) time.Time {
	return t.UTC().Round(0)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts rows written without fractional seconds.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
