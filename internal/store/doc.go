// Package store provides persistent storage for holders, folders and
// waypoints using SQLite.
//
// # Data Models
//
//   - Holder: owning scope, identified by (type, owner key)
//   - Folder: flat grouping of waypoints inside one holder
//   - Waypoint: named location in one holder and at most one folder
//   - AuditEntry: append-only history of folder and waypoint changes
//
// # Invariants
//
// Folder names and waypoint names are unique per holder, ignoring case.
// Waypoint names share one namespace across every folder of the holder.
// The comparison key is stored in name_key (see NameKey) and backed by a
// UNIQUE(holder_id, name_key) constraint. A waypoint's folder must belong to
// the same holder, enforced by a composite foreign key. holder_id never
// changes after insert; triggers reject the update.
//
// Every mutating method is one transaction. Read-then-write sequences such as
// the duplicate-name check and the insert that follows it run inside that
// transaction, which starts IMMEDIATE so concurrent writers serialize on the
// SQLite write lock.
//
// # SQLite Configuration
//
// Pragmas are passed in the DSN so that every pooled connection gets them:
//
//	foreign_keys=ON
//	journal_mode=WAL   (file databases only)
//	busy_timeout=5000  (configurable)
//
// Two drivers are supported: modernc.org/sqlite (pure Go, default) and
// github.com/mattn/go-sqlite3 when built with cgo.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateName: name already used in the holder
//   - ErrCrossHolder: folder and waypoint belong to different holders
//   - ErrHolderNotFound: unknown holder ID
//   - ErrInvalidPolicy: unknown folder cascade policy
//
// All methods accept context.Context; cancelling it before commit rolls the
// transaction back.
//
// # Testing
//
// Use NewSQLiteStore(":memory:", Options{}) or a file under t.TempDir().
package store
