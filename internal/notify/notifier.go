// Package notify turns engine notifications into queued emails.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitclass/internal/events"
	"fitclass/internal/user"
)

const whenLayout = "Jan 2, 2006 at 3:04 PM"

// Notifier resolves the recipient and queues one email per notification.
type Notifier struct {
	users user.Directory
	queue *Queue
	brand string
}

func NewNotifier(users user.Directory, queue *Queue, brand string) *Notifier {
	return &Notifier{users: users, queue: queue, brand: brand}
}

func (n *Notifier) Notify(ctx context.Context, note events.Notification) error {
	recipient, err := n.users.FindByID(ctx, note.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient %d: %w", note.RecipientID, err)
	}

	subject, body, err := n.render(note, recipient.Name)
	if err != nil {
		return err
	}

	return n.queue.Enqueue(ctx, Job{
		Kind:    string(note.Kind),
		To:      recipient.Email,
		Name:    recipient.Name,
		Subject: subject,
		Body:    body,
	})
}

func (n *Notifier) render(note events.Notification, name string) (string, string, error) {
	when := localTime(note.StartsAt, note.Timezone).Format(whenLayout)

	var subject, lead string
	switch note.Kind {
	case events.NotifyBookingConfirmed:
		subject = "Booking Confirmed - " + note.ClassName
		lead = "Your spot is confirmed."
	case events.NotifyWaitlistJoined:
		subject = "Waitlisted - " + note.ClassName
		lead = "The class is full, so you are on the waitlist."
		if note.WaitlistPosition != nil {
			lead = fmt.Sprintf("The class is full, so you are number %d on the waitlist.", *note.WaitlistPosition)
		}
	case events.NotifyWaitlistPromoted:
		subject = "You're In - " + note.ClassName
		lead = "A spot opened up and you have been moved off the waitlist."
	case events.NotifyBookingCancelled:
		subject = "Booking Cancelled - " + note.ClassName
		lead = "Your booking has been cancelled."
		if note.LateCancel {
			lead += " It was a late cancellation."
		}
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", note.Kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n%s\n\nClass: %s\nTime: %s\n\n- %s Team", name, lead, note.ClassName, when, n.brand)
	return subject, b.String(), nil
}

func localTime(t time.Time, tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return t
	}
	return t.In(loc)
}
