// ABOUTME: SQL driver selection and DSN construction for the SQLite store
// ABOUTME: modernc.org/sqlite by default, mattn/go-sqlite3 when built with cgo

package store

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Supported driver names as registered with database/sql.
const (
	DriverModernc = "sqlite"  // pure Go, always available
	DriverMattn   = "sqlite3" // cgo, see driver_cgo.go
)

const defaultBusyTimeout = 5 * time.Second

// isMemoryPath reports whether the path names an in-memory database.
func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// buildDSN returns the data source name for the given driver. Pragmas are set
// through the DSN so every pooled connection gets them, not just the first.
// Transactions start IMMEDIATE so the duplicate-name check and the insert
// that follows it hold the write lock together.
func buildDSN(driver, path string, busyTimeout time.Duration) (string, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	ms := busyTimeout.Milliseconds()

	base := path
	if path == ":memory:" {
		base = "file::memory:"
	} else if !strings.HasPrefix(path, "file:") {
		base = "file:" + path
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}

	q := url.Values{}
	switch driver {
	case DriverModernc, "":
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", ms))
		if !isMemoryPath(path) {
			q.Add("_pragma", "journal_mode(WAL)")
		}
		q.Set("_txlock", "immediate")
	case DriverMattn:
		q.Set("_foreign_keys", "on")
		q.Set("_busy_timeout", fmt.Sprintf("%d", ms))
		if !isMemoryPath(path) {
			q.Set("_journal_mode", "WAL")
		}
		q.Set("_txlock", "immediate")
	default:
		return "", fmt.Errorf("unknown database driver %q", driver)
	}

	return base + sep + q.Encode(), nil
}
