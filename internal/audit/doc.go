// Package audit records folder and waypoint changes in the store's audit log.
//
// A Recorder attaches to an events.Bus as a post-event observer, so only
// committed operations are recorded. Write failures are returned to the bus,
// which logs them; the originating operation is never affected.
//
//	rec := audit.NewRecorder(st, logger)
//	if err := rec.Attach(ctx, mgr.Bus()); err != nil {
//		return err
//	}
//	defer rec.Detach()
package audit
