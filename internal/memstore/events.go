package memstore

import (
	"context"
	"sync"

	"fitclass/internal/events"
)

// Recorder captures audit events and notifications.
type Recorder struct {
	mu            sync.Mutex
	audit         []events.AuditEvent
	notifications []events.Notification
	Err           error
}

func (r *Recorder) Record(ctx context.Context, ev events.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.audit = append(r.audit, ev)
	return nil
}

func (r *Recorder) Notify(ctx context.Context, n events.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *Recorder) Audit() []events.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.AuditEvent(nil), r.audit...)
}

func (r *Recorder) Notifications() []events.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Notification(nil), r.notifications...)
}

func (r *Recorder) Actions() []events.Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]events.Action, 0, len(r.audit))
	for _, ev := range r.audit {
		out = append(out, ev.Action)
	}
	return out
}
