// ABOUTME: Audit recorder that turns committed folder and waypoint changes into audit_log rows
// ABOUTME: Subscribes to post events on the bus and appends one entry per event

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wordmann/waypoints/internal/events"
	"github.com/wordmann/waypoints/internal/store"
)

// AuditStore is the store subset the recorder writes to.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, entry *store.AuditEntry) error
}

// Recorder appends an audit entry for every post event it sees.
type Recorder struct {
	store  AuditStore
	logger *slog.Logger

	mu    sync.Mutex
	bus   *events.Bus
	subID string
}

// NewRecorder creates a recorder writing to st. Pass nil logger for default.
func NewRecorder(st AuditStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  st,
		logger: logger.With("component", "audit"),
	}
}

// Attach subscribes the recorder to all post events on bus. The subscription
// ends when ctx is done or Detach is called. Attaching twice replaces the
// earlier subscription.
func (r *Recorder) Attach(ctx context.Context, bus *events.Bus) error {
	r.Detach()

	subID := bus.OnPost(ctx, events.Filter{}, r.record)
	if subID == "" {
		return fmt.Errorf("attaching audit recorder: event bus is closed")
	}

	r.mu.Lock()
	r.bus = bus
	r.subID = subID
	r.mu.Unlock()
	return nil
}

// Detach removes the recorder's subscription, if any.
func (r *Recorder) Detach() {
	r.mu.Lock()
	bus, subID := r.bus, r.subID
	r.bus, r.subID = nil, ""
	r.mu.Unlock()

	if bus != nil {
		bus.Unsubscribe(subID)
	}
}

func (r *Recorder) record(ctx context.Context, e events.Event) error {
	if err := r.store.AppendAuditLog(ctx, Entry(e)); err != nil {
		return fmt.Errorf("recording %s %s: %w", e.Kind, e.Op, err)
	}
	r.logger.Debug("audit entry recorded",
		"kind", e.Kind,
		"operation", e.Op,
		"entity_id", e.EntityID,
	)
	return nil
}

// Entry converts an event into an audit entry. Affected IDs are kept
// under the "affected" detail key.
func Entry(e events.Event) *store.AuditEntry {
	var detail map[string]any
	if len(e.Detail) > 0 || len(e.Affected) > 0 {
		detail = make(map[string]any, len(e.Detail)+1)
		for k, v := range e.Detail {
			detail[k] = v
		}
		if len(e.Affected) > 0 {
			detail["affected"] = e.Affected
		}
	}

	return &store.AuditEntry{
		Kind:       string(e.Kind),
		Operation:  string(e.Op),
		HolderID:   e.HolderID,
		EntityID:   e.EntityID,
		EntityName: e.EntityName,
		Detail:     detail,
	}
}
