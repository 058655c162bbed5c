// ABOUTME: Audit log entity and store methods for tracking folder and waypoint changes
// ABOUTME: Records which holder changed what entity, and how, for history and debugging

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string         // UUID v4
	Kind       string         // "folder" or "waypoint"
	Operation  string         // "create", "update", "move", "delete"
	HolderID   string         // owning holder of the entity
	EntityID   string         // ID of the affected folder or waypoint
	EntityName string         // name at the time of the change
	Timestamp  time.Time      // when it happened
	Detail     map[string]any // additional context (max 64KB JSON)
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since     *time.Time // entries after this time
	Until     *time.Time // entries before this time
	HolderID  *string    // filter by holder
	Kind      *string    // filter by entity kind
	Operation *string    // filter by operation
	EntityID  *string    // filter by entity ID
	Limit     int        // max results (default 100, max 1000)
}

const maxAuditDetailBytes = 64 << 10

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = storedTime(e.Timestamp)

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		if len(data) > maxAuditDetailBytes {
			return fmt.Errorf("audit detail exceeds %d bytes", maxAuditDetailBytes)
		}
		str := string(data)
		detailJSON = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, kind, operation, holder_id, entity_id, entity_name, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Kind,
		e.Operation,
		e.HolderID,
		e.EntityID,
		e.EntityName,
		formatTime(e.Timestamp),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"holder_id", e.HolderID,
		"operation", e.Kind+"."+e.Operation,
		"entity", e.EntityID,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(row scanner) (AuditEntry, error) {
	var e AuditEntry
	var tsStr string
	var detailJSON *string

	if err := row.Scan(
		&e.ID,
		&e.Kind,
		&e.Operation,
		&e.HolderID,
		&e.EntityID,
		&e.EntityName,
		&tsStr,
		&detailJSON,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	var err error
	e.Timestamp, err = parseTime(tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}

const auditLogQuery = `
	SELECT audit_id, kind, operation, holder_id, entity_id, entity_name, ts, detail_json
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR holder_id = ?)
	  AND (? IS NULL OR kind = ?)
	  AND (? IS NULL OR operation = ?)
	  AND (? IS NULL OR entity_id = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := normalizeAuditLimit(f.Limit)
	since := formatOptionalTime(f.Since)
	until := formatOptionalTime(f.Until)

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		since, since,
		until, until,
		f.HolderID, f.HolderID,
		f.Kind, f.Kind,
		f.Operation, f.Operation,
		f.EntityID, f.EntityID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
