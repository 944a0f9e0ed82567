package booking

import (
	"context"
	"time"
)

type Repository interface {
	// Create inserts b and returns ErrDuplicateActive when the client
	// already has a BOOKED or WAITLISTED row for the session.
	Create(ctx context.Context, b *Booking) (*Booking, error)
	GetByID(ctx context.Context, id int) (*Booking, error)
	LockByID(ctx context.Context, id int) (*Booking, error)
	// FindActive returns nil when the client has no active booking for the session.
	FindActive(ctx context.Context, sessionID, clientID int) (*Booking, error)
	CountByStatus(ctx context.Context, sessionID int, status Status) (int, error)
	// NextWaitlisted returns the lowest-position waitlisted booking, or nil.
	NextWaitlisted(ctx context.Context, sessionID int) (*Booking, error)
	Cancel(ctx context.Context, id int, status Status, at time.Time) (*Booking, error)
	Promote(ctx context.Context, id int, productID *int, credits int, at time.Time) (*Booking, error)
	// CompactWaitlist closes the gap left by position above.
	CompactWaitlist(ctx context.Context, sessionID, above int) error
	MarkAttendance(ctx context.Context, id int, status Status, at time.Time) (*Booking, error)
	Delete(ctx context.Context, id int) error
	ListByClient(ctx context.Context, clientID, limit, offset int) ([]BookingWithSession, error)
	ListBySession(ctx context.Context, sessionID int) ([]Booking, error)
}
