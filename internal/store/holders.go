// ABOUTME: Holder rows: the owning scope of folders and waypoints
// ABOUTME: EnsureHolder is idempotent on (type, owner_key)

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnsureHolder returns the holder identified by (holderType, ownerKey),
// creating it on first use.
func (s *SQLiteStore) EnsureHolder(ctx context.Context, holderType, ownerKey string) (*Holder, error) {
	switch holderType {
	case HolderTypeIndividual, HolderTypeGroup, HolderTypeGlobal:
	default:
		return nil, fmt.Errorf("unknown holder type %q", holderType)
	}

	var h *Holder
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO holders (id, type, owner_key, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(type, owner_key) DO NOTHING
		`, newID(), holderType, ownerKey, formatTime(now))
		if err != nil {
			return fmt.Errorf("inserting holder: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.logger.Debug("created holder", "type", holderType, "owner_key", ownerKey)
		}

		row := tx.QueryRowContext(ctx, `
			SELECT id, type, owner_key, created_at
			FROM holders
			WHERE type = ? AND owner_key = ?
		`, holderType, ownerKey)
		h, err = scanHolder(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// GetHolder retrieves a holder by ID
func (s *SQLiteStore) GetHolder(ctx context.Context, id string) (*Holder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, owner_key, created_at
		FROM holders
		WHERE id = ?
	`, id)

	h, err := scanHolder(row)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrHolderNotFound
	}
	return h, err
}

// ListHolders returns every holder ordered by type, then owner key
func (s *SQLiteStore) ListHolders(ctx context.Context) ([]*Holder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, owner_key, created_at
		FROM holders
		ORDER BY type, owner_key
	`)
	if err != nil {
		return nil, fmt.Errorf("querying holders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	holders := []*Holder{}
	for rows.Next() {
		h, err := scanHolder(rows)
		if err != nil {
			return nil, err
		}
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating holders: %w", err)
	}
	return holders, nil
}

func scanHolder(row scanner) (*Holder, error) {
	var h Holder
	var createdAt string
	if err := row.Scan(&h.ID, &h.Type, &h.OwnerKey, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning holder: %w", err)
	}

	var err error
	h.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &h, nil
}
