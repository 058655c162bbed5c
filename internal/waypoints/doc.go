// Package waypoints is the holder store: the mutation and query surface for
// the folders and waypoints owned by individual, group and global holders.
//
// A Manager resolves holders by (type, owner key) and hands out one live
// Holder per identity. Every operation returns a *Task, which runs
// asynchronously; Wait is the blocking adapter.
//
//	h, err := m.Individual(ctx, "alice").Wait()
//	trips, err := h.CreateFolder(ctx, "Trips").Wait()
//	paris, err := h.CreateWaypoint(ctx, "Paris", loc, InFolder(trips)).Wait()
//
// # Invariants
//
// Folder and waypoint names are unique per holder, ignoring case. Waypoint
// names form one namespace across all folders of a holder. Entities never
// change holder, and a waypoint can only be moved into a folder of its own
// holder.
//
// Mutations of one holder are serialized by a per-holder lock; the
// duplicate-name check and the write it guards share one transaction.
// Operations on different holders run independently.
//
// # Cancellation
//
// Task.Cancel cancels the task's context. It takes effect only before the
// store commits; a committed write is reported as a success. A veto by a
// pre-event observer is reported as ErrCancelled, never as context.Canceled.
//
// # Visibility
//
// Group holders enforce waypoint visibility tokens against a caller's
// Capabilities. A nil Capabilities means a trusted caller. Waypoints without
// a token are visible to everyone.
package waypoints
