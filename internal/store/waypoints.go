// ABOUTME: Waypoint rows and their store methods
// ABOUTME: Listing, counting, visibility aggregates, moves, and deletes

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const waypointColumns = `id, holder_id, folder_id, name, description,
	location_world, location_x, location_y, location_z,
	icon, visibility_token, creator_id, created_at`

// waypointScope is the WHERE clause shared by listings and counts.
// Arguments: holder_id, top_level flag, folder_id, folder_id.
const waypointScope = `
	WHERE holder_id = ?
	  AND (? = 0 OR folder_id IS NULL)
	  AND (? IS NULL OR folder_id = ?)
`

func (f WaypointFilter) args() []any {
	topLevel := 0
	var folderID *string
	if f.TopLevel {
		topLevel = 1
	} else {
		folderID = f.FolderID
	}
	return []any{f.HolderID, topLevel, folderID, folderID}
}

// CreateWaypoint inserts a new waypoint. ID and CreatedAt are assigned when empty.
// A folder, if set, must exist and belong to the same holder.
func (s *SQLiteStore) CreateWaypoint(ctx context.Context, w *Waypoint) error {
	if w.ID == "" {
		w.ID = newID()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	w.CreatedAt = storedTime(w.CreatedAt)
	key := NameKey(w.Name)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if w.FolderID != nil {
			if err := checkFolderHolder(ctx, tx, *w.FolderID, w.HolderID); err != nil {
				return err
			}
		}

		taken, err := nameTaken(ctx, tx, "waypoints", w.HolderID, key, "")
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateName
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO waypoints (`+waypointColumns+`, name_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			w.ID, w.HolderID, w.FolderID, w.Name, nullString(w.Description),
			w.World, w.X, w.Y, w.Z,
			w.Icon, nullString(w.Visibility), nullString(w.CreatedBy), formatTime(w.CreatedAt),
			key,
		)
		return execError("inserting waypoint", err)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created waypoint", "id", w.ID, "holder_id", w.HolderID, "name", w.Name)
	return nil
}

// GetWaypoint retrieves a waypoint by ID
func (s *SQLiteStore) GetWaypoint(ctx context.Context, id string) (*Waypoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+waypointColumns+` FROM waypoints WHERE id = ?`, id)
	return scanWaypoint(row)
}

// ListWaypoints returns the waypoints in scope ordered by name, then ID
func (s *SQLiteStore) ListWaypoints(ctx context.Context, filter WaypointFilter) ([]*Waypoint, error) {
	return queryWaypoints(ctx, s.db, filter)
}

// ListHolderContents reads a holder's folders and all of its waypoints in
// one transaction, so a waypoint's folder is always among the folders.
func (s *SQLiteStore) ListHolderContents(ctx context.Context, holderID string) ([]*Folder, []*Waypoint, error) {
	var folders []*Folder
	var waypoints []*Waypoint
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if folders, err = queryFolders(ctx, tx, holderID); err != nil {
			return err
		}
		waypoints, err = queryWaypoints(ctx, tx, WaypointFilter{HolderID: holderID})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return folders, waypoints, nil
}

func queryWaypoints(ctx context.Context, q querier, filter WaypointFilter) ([]*Waypoint, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+waypointColumns+` FROM waypoints`+waypointScope+`ORDER BY name_key, id`,
		filter.args()...)
	if err != nil {
		return nil, fmt.Errorf("querying waypoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	waypoints := []*Waypoint{}
	for rows.Next() {
		w, err := scanWaypoint(rows)
		if err != nil {
			return nil, err
		}
		waypoints = append(waypoints, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating waypoints: %w", err)
	}
	return waypoints, nil
}

// CountWaypoints counts the waypoints in scope with a single aggregate
func (s *SQLiteStore) CountWaypoints(ctx context.Context, filter WaypointFilter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM waypoints`+waypointScope, filter.args()...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting waypoints: %w", err)
	}
	return n, nil
}

// CountWaypointsByVisibility groups the waypoints in scope by visibility
// token. Waypoints without a token are counted under "".
func (s *SQLiteStore) CountWaypointsByVisibility(ctx context.Context, filter WaypointFilter) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(visibility_token, ''), COUNT(*) FROM waypoints`+waypointScope+
			`GROUP BY COALESCE(visibility_token, '')`,
		filter.args()...)
	if err != nil {
		return nil, fmt.Errorf("counting waypoints by visibility: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var token string
		var n int
		if err := rows.Scan(&token, &n); err != nil {
			return nil, fmt.Errorf("scanning visibility count: %w", err)
		}
		counts[token] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visibility counts: %w", err)
	}
	return counts, nil
}

// WaypointNameExists reports whether the holder has a waypoint whose name
// matches case-insensitively, in any folder
func (s *SQLiteStore) WaypointNameExists(ctx context.Context, holderID, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM waypoints WHERE holder_id = ? AND name_key = ?)`,
		holderID, NameKey(name)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking waypoint name: %w", err)
	}
	return exists, nil
}

// UpdateWaypoint persists the mutable attributes of a waypoint.
// Holder and folder are left untouched; use MoveWaypoint to change the folder.
func (s *SQLiteStore) UpdateWaypoint(ctx context.Context, w *Waypoint) error {
	key := NameKey(w.Name)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		holderID, _, err := loadWaypointScope(ctx, tx, w.ID)
		if err != nil {
			return err
		}

		taken, err := nameTaken(ctx, tx, "waypoints", holderID, key, w.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateName
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE waypoints
			SET name = ?, name_key = ?, description = ?,
			    location_world = ?, location_x = ?, location_y = ?, location_z = ?,
			    icon = ?, visibility_token = ?
			WHERE id = ?
		`,
			w.Name, key, nullString(w.Description),
			w.World, w.X, w.Y, w.Z,
			w.Icon, nullString(w.Visibility),
			w.ID,
		)
		return execError("updating waypoint", err)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("updated waypoint", "id", w.ID, "name", w.Name)
	return nil
}

// MoveWaypoint assigns a waypoint to a folder of the same holder, or to the
// top level when folderID is nil. It reports false without writing when the
// persisted row is already in that folder.
func (s *SQLiteStore) MoveWaypoint(ctx context.Context, id string, folderID *string) (bool, error) {
	moved := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		holderID, current, err := loadWaypointScope(ctx, tx, id)
		if err != nil {
			return err
		}
		if derefOr(current, "") == derefOr(folderID, "") {
			return nil
		}
		if folderID != nil {
			if err := checkFolderHolder(ctx, tx, *folderID, holderID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE waypoints SET folder_id = ? WHERE id = ?`, folderID, id); err != nil {
			return execError("moving waypoint", err)
		}
		moved = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if moved {
		s.logger.Debug("moved waypoint", "id", id, "folder_id", derefOr(folderID, ""))
	}
	return moved, nil
}

// DeleteWaypoint removes a waypoint
func (s *SQLiteStore) DeleteWaypoint(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM waypoints WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting waypoint: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("deleted waypoint", "id", id)
	return nil
}

// loadWaypointScope returns the holder and folder of a waypoint inside tx.
func loadWaypointScope(ctx context.Context, tx *sql.Tx, id string) (string, *string, error) {
	var holderID string
	var folderID sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT holder_id, folder_id FROM waypoints WHERE id = ?`, id).Scan(&holderID, &folderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("loading waypoint: %w", err)
	}
	if folderID.Valid {
		return holderID, &folderID.String, nil
	}
	return holderID, nil, nil
}

// checkFolderHolder verifies the folder exists and belongs to holderID.
func checkFolderHolder(ctx context.Context, tx *sql.Tx, folderID, holderID string) error {
	var folderHolder string
	err := tx.QueryRowContext(ctx,
		`SELECT holder_id FROM folders WHERE id = ?`, folderID).Scan(&folderHolder)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading folder: %w", err)
	}
	if folderHolder != holderID {
		return ErrCrossHolder
	}
	return nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func scanWaypoint(row scanner) (*Waypoint, error) {
	var w Waypoint
	var folderID, description, visibility, creator sql.NullString
	var createdAt string

	if err := row.Scan(
		&w.ID, &w.HolderID, &folderID, &w.Name, &description,
		&w.World, &w.X, &w.Y, &w.Z,
		&w.Icon, &visibility, &creator, &createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning waypoint: %w", err)
	}

	if folderID.Valid {
		w.FolderID = &folderID.String
	}
	w.Description = description.String
	w.Visibility = visibility.String
	w.CreatedBy = creator.String

	var err error
	w.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &w, nil
}
