// ABOUTME: In-process event bus for folder and waypoint lifecycle notifications
// ABOUTME: Pre-events are vetoable and dispatched synchronously before commit; post-events follow it

package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Kind is the entity kind an event is about.
type Kind string

const (
	KindFolder   Kind = "folder"
	KindWaypoint Kind = "waypoint"
)

// Operation is the lifecycle transition an event reports.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpMove   Operation = "move"
	OpDelete Operation = "delete"
)

// Event describes one lifecycle transition.
type Event struct {
	Kind       Kind
	Op         Operation
	HolderID   string
	EntityID   string
	EntityName string
	// Entity is a snapshot of the folder or waypoint taken when the event was
	// emitted. Observers must treat it as read-only.
	Entity any
	// Affected lists dependent entity IDs, e.g. the waypoints detached or
	// deleted together with a folder.
	Affected []string
	Detail   map[string]any
}

// PreEvent is delivered before a vetoable operation commits.
type PreEvent struct {
	Event

	mu        sync.Mutex
	cancelled bool
	reason    string
}

// Cancel vetoes the operation. The first reason given is kept.
func (p *PreEvent) Cancel(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cancelled {
		p.reason = reason
	}
	p.cancelled = true
}

// Cancelled reports whether any observer vetoed the operation.
func (p *PreEvent) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

// Reason returns the reason given by the vetoing observer.
func (p *PreEvent) Reason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reason
}

// PreObserver inspects a pending operation and may call Cancel.
type PreObserver func(ctx context.Context, e *PreEvent)

// PostObserver is told about a committed operation. Its error is logged only.
type PostObserver func(ctx context.Context, e Event) error

// Filter selects events by kind and operation. Empty fields match everything.
type Filter struct {
	Kind Kind
	Op   Operation
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	return (f.Kind == "" || f.Kind == e.Kind) && (f.Op == "" || f.Op == e.Op)
}

type preSub struct {
	id     string
	filter Filter
	fn     PreObserver
}

type postSub struct {
	id     string
	filter Filter
	fn     PostObserver
}

// Bus dispatches lifecycle events to registered observers in registration
// order. Registration and removal are safe to call concurrently with
// dispatch; a dispatch in progress uses the observer list it started with.
type Bus struct {
	mu     sync.RWMutex
	pre    []preSub
	post   []postSub
	closed bool
	logger *slog.Logger
}

// NewBus creates a bus. Pass nil logger for default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger.With("component", "events"),
	}
}

// OnPre registers a pre-event observer and returns its subscription ID.
// The subscription is removed when ctx is done. Returns "" once the bus is closed.
func (b *Bus) OnPre(ctx context.Context, filter Filter, fn PreObserver) string {
	subID := uuid.New().String()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ""
	}
	b.pre = append(b.pre, preSub{id: subID, filter: filter, fn: fn})
	b.mu.Unlock()

	b.logger.Debug("pre observer added", "sub_id", subID, "kind", filter.Kind, "op", filter.Op)
	b.unsubscribeOnDone(ctx, subID)
	return subID
}

// OnPost registers a post-event observer and returns its subscription ID.
// The subscription is removed when ctx is done. Returns "" once the bus is closed.
func (b *Bus) OnPost(ctx context.Context, filter Filter, fn PostObserver) string {
	subID := uuid.New().String()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ""
	}
	b.post = append(b.post, postSub{id: subID, filter: filter, fn: fn})
	b.mu.Unlock()

	b.logger.Debug("post observer added", "sub_id", subID, "kind", filter.Kind, "op", filter.Op)
	b.unsubscribeOnDone(ctx, subID)
	return subID
}

func (b *Bus) unsubscribeOnDone(ctx context.Context, subID string) {
	done := ctx.Done()
	if done == nil {
		return
	}
	go func() {
		<-done
		b.Unsubscribe(subID)
	}()
}

// Unsubscribe removes a subscription. It reports whether the ID was known.
func (b *Bus) Unsubscribe(subID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.pre {
		if s.id == subID {
			b.pre = append(b.pre[:i:i], b.pre[i+1:]...)
			b.logger.Debug("pre observer removed", "sub_id", subID)
			return true
		}
	}
	for i, s := range b.post {
		if s.id == subID {
			b.post = append(b.post[:i:i], b.post[i+1:]...)
			b.logger.Debug("post observer removed", "sub_id", subID)
			return true
		}
	}
	return false
}

// EmitPre dispatches a pre-event synchronously to every matching observer,
// in registration order. Every observer sees the event even after an
// earlier one cancelled it. A panicking observer vetoes the operation.
func (b *Bus) EmitPre(ctx context.Context, e Event) *PreEvent {
	pe := &PreEvent{Event: e}

	b.mu.RLock()
	targets := make([]preSub, 0, len(b.pre))
	for _, s := range b.pre {
		if s.filter.Matches(e) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.callPre(ctx, s, pe)
	}

	if pe.Cancelled() {
		b.logger.Debug("operation vetoed",
			"kind", e.Kind, "op", e.Op, "entity_id", e.EntityID, "reason", pe.Reason())
	}
	return pe
}

func (b *Bus) callPre(ctx context.Context, s preSub, pe *PreEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("pre observer panicked",
				"sub_id", s.id, "kind", pe.Kind, "op", pe.Op, "panic", r)
			pe.Cancel(fmt.Sprintf("observer panic: %v", r))
		}
	}()
	s.fn(ctx, pe)
}

// EmitPost dispatches a post-event to every matching observer, in
// registration order. Observer errors and panics are logged and swallowed.
func (b *Bus) EmitPost(ctx context.Context, e Event) {
	b.mu.RLock()
	targets := make([]postSub, 0, len(b.post))
	for _, s := range b.post {
		if s.filter.Matches(e) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		b.callPost(ctx, s, e)
	}
}

func (b *Bus) callPost(ctx context.Context, s postSub, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("post observer panicked",
				"sub_id", s.id, "kind", e.Kind, "op", e.Op, "panic", r)
		}
	}()
	if err := s.fn(ctx, e); err != nil {
		b.logger.Warn("post observer failed",
			"sub_id", s.id, "kind", e.Kind, "op", e.Op, "entity_id", e.EntityID, "error", err)
	}
}

// Close removes every observer. Later registrations are ignored and
// emissions reach no one.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pre = nil
	b.post = nil
	b.closed = true

	b.logger.Debug("event bus closed")
}
