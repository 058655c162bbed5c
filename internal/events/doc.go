// Package events provides the lifecycle event bus for folders and waypoints.
//
// Destructive operations (delete, move) emit a PreEvent before any write.
// Observers run synchronously in registration order and may call Cancel to
// veto the operation; the caller then reports a cancellation without touching
// storage. After a successful commit a post Event is emitted to the post
// observers. Their errors and panics are logged and never undo the commit.
//
// Create and update operations emit post events only.
//
// A Bus is constructed explicitly and injected where it is needed. Register
// observers at startup and call Close at shutdown.
package events
