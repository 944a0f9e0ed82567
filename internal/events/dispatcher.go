package events

import (
	"context"
	"time"

	"fitclass/internal/logger"
)

const deliveryTimeout = 5 * time.Second

// Dispatcher hands events to the collaborators after a commit. Delivery
// errors are logged and never returned; either collaborator may be nil.
type Dispatcher struct {
	audit    AuditSink
	notifier Notifier
}

func NewDispatcher(audit AuditSink, notifier Notifier) *Dispatcher {
	return &Dispatcher{audit: audit, notifier: notifier}
}

func (d *Dispatcher) Audit(ctx context.Context, ev AuditEvent) {
	if d == nil || d.audit == nil {
		return
	}

	ctx, cancel := detached(ctx)
	defer cancel()

	if err := d.audit.Record(ctx, ev); err != nil {
		logger.Error("audit event dropped",
			"event_id", ev.ID.String(),
			"action", ev.Action,
			"target_id", ev.TargetID,
			"error", err,
		)
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if d == nil || d.notifier == nil {
		return
	}

	ctx, cancel := detached(ctx)
	defer cancel()

	if err := d.notifier.Notify(ctx, n); err != nil {
		logger.Error("notification dropped",
			"notification_id", n.ID.String(),
			"kind", n.Kind,
			"recipient_id", n.RecipientID,
			"error", err,
		)
	}
}

// detached keeps request values and drops the request's cancellation.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
}
