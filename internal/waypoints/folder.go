// ABOUTME: Folder is the live handle of one folder row
// ABOUTME: Every setter is its own persisted unit of work; Delete applies the cascade policy

package waypoints

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wordmann/waypoints/internal/events"
	"github.com/wordmann/waypoints/internal/store"
)

// Folder is a live folder handle. Getters return the state as of the last
// operation through this handle.
type Folder struct {
	holder *Holder

	mu      sync.RWMutex
	rec     store.Folder
	deleted bool
}

func newFolder(h *Holder, rec *store.Folder) *Folder {
	return &Folder{holder: h, rec: *rec}
}

func (f *Folder) Holder() *Holder { return f.holder }

func (f *Folder) ID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rec.ID
}

func (f *Folder) Name() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rec.Name
}

func (f *Folder) Description() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rec.Description
}

func (f *Folder) Icon() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rec.Icon
}

func (f *Folder) CreatedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rec.CreatedAt
}

// Deleted reports whether Delete succeeded through this handle.
func (f *Folder) Deleted() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.deleted
}

func (f *Folder) snapshot() (store.Folder, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.rec, f.deleted
}

// refresh replaces the handle state with the persisted row.
func (f *Folder) refresh(ctx context.Context, op string) error {
	rec, err := f.holder.m.store.GetFolder(ctx, f.ID())
	if err != nil {
		return classify(ctx, op, err)
	}
	f.mu.Lock()
	f.rec = *rec
	f.mu.Unlock()
	return nil
}

func (f *Folder) event(op events.Operation) events.Event {
	rec, _ := f.snapshot()
	return events.Event{
		Kind:       events.KindFolder,
		Op:         op,
		HolderID:   rec.HolderID,
		EntityID:   rec.ID,
		EntityName: rec.Name,
		Entity:     rec,
	}
}

// SetName renames the folder. The new name must be unused in the holder,
// ignoring case; a change of case only is allowed.
func (f *Folder) SetName(ctx context.Context, name string) *Task[Unit] {
	name = strings.TrimSpace(name)
	if name == "" {
		return failed[Unit](invalidArgument("folder name must not be empty"))
	}
	return f.update(ctx, "rename folder", func(r *store.Folder) { r.Name = name })
}

// SetDescription replaces the description. Empty clears it.
func (f *Folder) SetDescription(ctx context.Context, description string) *Task[Unit] {
	return f.update(ctx, "describe folder", func(r *store.Folder) { r.Description = description })
}

// SetIcon replaces the display icon.
func (f *Folder) SetIcon(ctx context.Context, icon string) *Task[Unit] {
	return f.update(ctx, "set folder icon", func(r *store.Folder) { r.Icon = icon })
}

// update reloads the row under the holder lock, applies change, and
// persists it. The handle is refreshed only after commit.
func (f *Folder) update(ctx context.Context, op string, change func(*store.Folder)) *Task[Unit] {
	h := f.holder
	return Go(ctx, func(ctx context.Context) (Unit, error) {
		snap, deleted := f.snapshot()
		if deleted {
			return Unit{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		var next *store.Folder
		err := h.withLock(ctx, op, func(ctx context.Context) error {
			cur, err := h.m.store.GetFolder(ctx, snap.ID)
			if err != nil {
				return classify(ctx, op, err)
			}
			change(cur)
			if err := h.m.store.UpdateFolder(ctx, cur); err != nil {
				return classify(ctx, op, err)
			}
			next = cur
			return nil
		})
		if err != nil {
			return Unit{}, err
		}

		f.mu.Lock()
		f.rec = *next
		f.mu.Unlock()

		h.notify(ctx, f.event(events.OpUpdate))
		return Unit{}, nil
	})
}

// Waypoints lists the folder's waypoints visible to caps, ordered by name.
// A nil caps sees everything.
func (f *Folder) Waypoints(ctx context.Context, caps Capabilities) *Task[[]*Waypoint] {
	return Go(ctx, func(ctx context.Context) ([]*Waypoint, error) {
		id := f.ID()
		return f.holder.listWaypoints(ctx, store.WaypointFilter{HolderID: f.holder.id, FolderID: &id}, caps)
	})
}

// CountWaypoints counts every waypoint in the folder.
func (f *Folder) CountWaypoints(ctx context.Context) *Task[int] {
	return Go(ctx, func(ctx context.Context) (int, error) {
		id := f.ID()
		n, err := f.holder.m.store.CountWaypoints(ctx, store.WaypointFilter{HolderID: f.holder.id, FolderID: &id})
		return n, classify(ctx, "count folder waypoints", err)
	})
}

// CountVisibleWaypoints counts the folder's waypoints visible to caps.
func (f *Folder) CountVisibleWaypoints(ctx context.Context, caps Capabilities) *Task[int] {
	return Go(ctx, func(ctx context.Context) (int, error) {
		id := f.ID()
		return f.holder.countVisible(ctx, store.WaypointFilter{HolderID: f.holder.id, FolderID: &id}, caps)
	})
}

// Delete removes the folder after observers approve. Its waypoints are
// detached or deleted according to the manager's cascade policy. A veto
// returns ErrCancelled and leaves everything in place.
func (f *Folder) Delete(ctx context.Context) *Task[Unit] {
	h := f.holder
	policy := h.m.policy
	return Go(ctx, func(ctx context.Context) (Unit, error) {
		const op = "delete folder"
		if f.Deleted() {
			return Unit{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		if err := f.refresh(ctx, op); err != nil {
			return Unit{}, err
		}
		pre := f.event(events.OpDelete)
		pre.Detail = map[string]any{"policy": string(policy)}
		if err := h.veto(ctx, op, pre); err != nil {
			return Unit{}, err
		}

		var affected []string
		err := h.withLock(ctx, op, func(ctx context.Context) error {
			ids, err := h.m.store.DeleteFolder(ctx, f.ID(), policy)
			if err != nil {
				return classify(ctx, op, err)
			}
			affected = ids
			return nil
		})
		if err != nil {
			return Unit{}, err
		}

		f.mu.Lock()
		f.deleted = true
		f.mu.Unlock()

		post := f.event(events.OpDelete)
		post.Affected = affected
		post.Detail = map[string]any{"policy": string(policy)}
		h.notify(ctx, post)
		return Unit{}, nil
	})
}
