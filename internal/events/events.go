// Package events defines what the engine hands to the audit log and to
// notification delivery once a unit of work has committed.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Version is bumped whenever a payload changes shape.
const Version = 1

type Action string

const (
	ActionBookingCreated     Action = "booking.created"
	ActionBookingCancelled   Action = "booking.cancelled"
	ActionBookingPromoted    Action = "booking.promoted"
	ActionAttendanceMarked   Action = "booking.attendance_marked"
	ActionSubmissionReviewed Action = "credit_submission.reviewed"
	ActionCycleRun           Action = "credit_cycle.run"
)

// Payload is implemented by each action's details type.
type Payload interface {
	Action() Action
	Target() (kind string, id string)
}

type AuditEvent struct {
	ID         uuid.UUID `json:"id"`
	Version    int       `json:"version"`
	Action     Action    `json:"action"`
	ActorID    int       `json:"actor_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Details    Payload   `json:"details"`
}

func NewAuditEvent(actorID int, p Payload, at time.Time) AuditEvent {
	kind, id := p.Target()
	return AuditEvent{
		ID:         uuid.New(),
		Version:    Version,
		Action:     p.Action(),
		ActorID:    actorID,
		TargetType: kind,
		TargetID:   id,
		OccurredAt: at,
		Details:    p,
	}
}

type NotificationKind string

const (
	NotifyBookingConfirmed NotificationKind = "booking_confirmed"
	NotifyWaitlistJoined   NotificationKind = "waitlist_joined"
	NotifyBookingCancelled NotificationKind = "booking_cancelled"
	NotifyWaitlistPromoted NotificationKind = "waitlist_promoted"
)

type Notification struct {
	ID               uuid.UUID        `json:"id"`
	Version          int              `json:"version"`
	Kind             NotificationKind `json:"kind"`
	RecipientID      int              `json:"recipient_id"`
	ClassName        string           `json:"class_name"`
	StartsAt         time.Time        `json:"starts_at"`
	Timezone         string           `json:"timezone"`
	WaitlistPosition *int             `json:"waitlist_position,omitempty"`
	LateCancel       bool             `json:"late_cancel,omitempty"`
}

func NewNotification(kind NotificationKind, recipientID int, className string, startsAt time.Time, tz string) Notification {
	return Notification{
		ID:          uuid.New(),
		Version:     Version,
		Kind:        kind,
		RecipientID: recipientID,
		ClassName:   className,
		StartsAt:    startsAt,
		Timezone:    tz,
	}
}

type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
