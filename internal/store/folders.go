// ABOUTME: Folder rows and their store methods
// ABOUTME: Duplicate-name checks run inside the same transaction as the write they guard

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const folderColumns = `id, holder_id, name, description, icon, created_at`

// CreateFolder inserts a new folder. ID and CreatedAt are assigned when empty.
func (s *SQLiteStore) CreateFolder(ctx context.Context, f *Folder) error {
	if f.ID == "" {
		f.ID = newID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	f.CreatedAt = storedTime(f.CreatedAt)
	key := NameKey(f.Name)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		taken, err := nameTaken(ctx, tx, "folders", f.HolderID, key, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateName
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO folders (id, holder_id, name, name_key, description, icon, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, f.ID, f.HolderID, f.Name, key, nullString(f.Description), f.Icon, formatTime(f.CreatedAt))
		return execError("inserting folder", err)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created folder", "id", f.ID, "holder_id", f.HolderID, "name", f.Name)
	return nil
}

// GetFolder retrieves a folder by ID
func (s *SQLiteStore) GetFolder(ctx context.Context, id string) (*Folder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)
	return scanFolder(row)
}

// ListFolders returns a holder's folders ordered by name, then ID
func (s *SQLiteStore) ListFolders(ctx context.Context, holderID string) ([]*Folder, error) {
	return queryFolders(ctx, s.db, holderID)
}

func queryFolders(ctx context.Context, q querier, holderID string) ([]*Folder, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+folderColumns+`
		FROM folders
		WHERE holder_id = ?
		ORDER BY name_key, id
	`, holderID)
	if err != nil {
		return nil, fmt.Errorf("querying folders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	folders := []*Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating folders: %w", err)
	}
	return folders, nil
}

// CountFolders returns the number of folders a holder owns
func (s *SQLiteStore) CountFolders(ctx context.Context, holderID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folders WHERE holder_id = ?`, holderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting folders: %w", err)
	}
	return n, nil
}

// FolderNameExists reports whether the holder has a folder whose name
// matches case-insensitively
func (s *SQLiteStore) FolderNameExists(ctx context.Context, holderID, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM folders WHERE holder_id = ? AND name_key = ?)`,
		holderID, NameKey(name)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking folder name: %w", err)
	}
	return exists, nil
}

// UpdateFolder persists name, description and icon. The holder cannot change.
func (s *SQLiteStore) UpdateFolder(ctx context.Context, f *Folder) error {
	key := NameKey(f.Name)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var holderID string
		err := tx.QueryRowContext(ctx,
			`SELECT holder_id FROM folders WHERE id = ?`, f.ID).Scan(&holderID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading folder: %w", err)
		}

		taken, err := nameTaken(ctx, tx, "folders", holderID, key, f.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateName
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE folders
			SET name = ?, name_key = ?, description = ?, icon = ?
			WHERE id = ?
		`, f.Name, key, nullString(f.Description), f.Icon, f.ID)
		return execError("updating folder", err)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("updated folder", "id", f.ID, "name", f.Name)
	return nil
}

// DeleteFolder removes a folder and applies the cascade policy to its
// waypoints in the same transaction. It returns the IDs of the waypoints
// that were detached or deleted.
func (s *SQLiteStore) DeleteFolder(ctx context.Context, id string, policy CascadePolicy) ([]string, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}

	var affected []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM folders WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("loading folder: %w", err)
		}
		if !exists {
			return ErrNotFound
		}

		ids, err := waypointIDsInFolder(ctx, tx, id)
		if err != nil {
			return err
		}
		affected = ids

		switch policy {
		case CascadeDelete:
			_, err = tx.ExecContext(ctx, `DELETE FROM waypoints WHERE folder_id = ?`, id)
		default:
			_, err = tx.ExecContext(ctx, `UPDATE waypoints SET folder_id = NULL WHERE folder_id = ?`, id)
		}
		if err != nil {
			return fmt.Errorf("cascading folder waypoints: %w", err)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
		return execError("deleting folder", err)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("deleted folder", "id", id, "policy", policy, "waypoints", len(affected))
	return affected, nil
}

func waypointIDsInFolder(ctx context.Context, tx *sql.Tx, folderID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM waypoints WHERE folder_id = ? ORDER BY name_key, id`, folderID)
	if err != nil {
		return nil, fmt.Errorf("querying folder waypoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning waypoint id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating folder waypoints: %w", err)
	}
	return ids, nil
}

// nameTaken checks for another row in table with the same name key.
// table is one of the two fixed names; it is never user input.
func nameTaken(ctx context.Context, tx *sql.Tx, table, holderID, key, exceptID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE holder_id = ? AND name_key = ? AND id <> ?)`,
		holderID, key, exceptID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking %s name: %w", table, err)
	}
	return exists, nil
}

// execError wraps a statement error, translating constraint violations.
func execError(action string, err error) error {
	if err == nil {
		return nil
	}
	if isConstraintViolation(err) {
		return classifyConstraint(err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func scanFolder(row scanner) (*Folder, error) {
	var f Folder
	var description sql.NullString
	var createdAt string

	if err := row.Scan(&f.ID, &f.HolderID, &f.Name, &description, &f.Icon, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning folder: %w", err)
	}
	f.Description = description.String

	var err error
	f.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &f, nil
}
