package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fitclass/internal/db"
)

const bookingColumns = `id, session_id, client_id, status, waitlist_position, source, credit_product_id,
	credits_charged, cancelled_at, attendance_marked_at, created_at, updated_at`

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) Create(ctx context.Context, b *Booking) (*Booking, error) {
	query := `
		INSERT INTO class_bookings (session_id, client_id, status, waitlist_position, source,
			credit_product_id, credits_charged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + bookingColumns

	var out Booking
	err := r.db.GetContext(ctx, &out, query,
		b.SessionID, b.ClientID, b.Status, b.WaitlistPosition, b.Source,
		b.CreditProductID, b.CreditsCharged, b.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateActive
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return &out, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM class_bookings WHERE id = $1`, id)
}

func (r *repository) LockByID(ctx context.Context, id int) (*Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM class_bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) get(ctx context.Context, query string, args ...interface{}) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

func (r *repository) FindActive(ctx context.Context, sessionID, clientID int) (*Booking, error) {
	b, err := r.get(ctx, `
		SELECT `+bookingColumns+`
		FROM class_bookings
		WHERE session_id = $1 AND client_id = $2 AND status IN ('BOOKED', 'WAITLISTED')`,
		sessionID, clientID,
	)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, nil
	}
	return b, err
}

func (r *repository) CountByStatus(ctx context.Context, sessionID int, status Status) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM class_bookings WHERE session_id = $1 AND status = $2`,
		sessionID, status,
	)
	if err != nil {
		return 0, fmt.Errorf("count bookings: %w", err)
	}
	return count, nil
}

func (r *repository) NextWaitlisted(ctx context.Context, sessionID int) (*Booking, error) {
	b, err := r.get(ctx, `
		SELECT `+bookingColumns+`
		FROM class_bookings
		WHERE session_id = $1 AND status = 'WAITLISTED'
		ORDER BY waitlist_position ASC, created_at ASC, id ASC
		LIMIT 1
		FOR UPDATE`,
		sessionID,
	)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, nil
	}
	return b, err
}

func (r *repository) Cancel(ctx context.Context, id int, status Status, at time.Time) (*Booking, error) {
	b, err := r.get(ctx, `
		UPDATE class_bookings
		SET status = $2, waitlist_position = NULL, cancelled_at = $3, updated_at = $3
		WHERE id = $1 AND status IN ('BOOKED', 'WAITLISTED')
		RETURNING `+bookingColumns,
		id, status, at,
	)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, ErrBookingNotCancellable
	}
	return b, err
}

func (r *repository) Promote(ctx context.Context, id int, productID *int, credits int, at time.Time) (*Booking, error) {
	b, err := r.get(ctx, `
		UPDATE class_bookings
		SET status = 'BOOKED', waitlist_position = NULL, credit_product_id = $2, credits_charged = $3, updated_at = $4
		WHERE id = $1 AND status = 'WAITLISTED'
		RETURNING `+bookingColumns,
		id, productID, credits, at,
	)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, ErrNotWaitlisted
	}
	return b, err
}

func (r *repository) CompactWaitlist(ctx context.Context, sessionID, above int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE class_bookings
		SET waitlist_position = waitlist_position - 1
		WHERE session_id = $1 AND status = 'WAITLISTED' AND waitlist_position > $2`,
		sessionID, above,
	)
	if err != nil {
		return fmt.Errorf("compact waitlist of session %d: %w", sessionID, err)
	}
	return nil
}

func (r *repository) MarkAttendance(ctx context.Context, id int, status Status, at time.Time) (*Booking, error) {
	b, err := r.get(ctx, `
		UPDATE class_bookings
		SET status = $2, attendance_marked_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'BOOKED'
		RETURNING `+bookingColumns,
		id, status, at,
	)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, ErrAttendanceNotAllowed
	}
	return b, err
}

func (r *repository) Delete(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM class_bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking %d: %w", id, err)
	}
	return nil
}

func (r *repository) ListByClient(ctx context.Context, clientID, limit, offset int) ([]BookingWithSession, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT b.id, b.session_id, b.client_id, b.status, b.waitlist_position, b.source, b.credit_product_id,
			b.credits_charged, b.cancelled_at, b.attendance_marked_at, b.created_at, b.updated_at,
			t.name AS class_name, t.location,
			s.starts_at AS session_starts_at, s.ends_at AS session_ends_at
		FROM class_bookings b
		JOIN class_sessions s ON s.id = b.session_id
		JOIN class_templates t ON t.id = s.template_id
		WHERE b.client_id = $1
		ORDER BY s.starts_at DESC
		LIMIT $2 OFFSET $3
	`

	bookings := []BookingWithSession{}
	if err := r.db.SelectContext(ctx, &bookings, query, clientID, limit, offset); err != nil {
		return nil, fmt.Errorf("list bookings of client %d: %w", clientID, err)
	}
	return bookings, nil
}

func (r *repository) ListBySession(ctx context.Context, sessionID int) ([]Booking, error) {
	bookings := []Booking{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+`
		FROM class_bookings
		WHERE session_id = $1
		ORDER BY
			CASE status WHEN 'BOOKED' THEN 0 WHEN 'WAITLISTED' THEN 1 ELSE 2 END,
			waitlist_position ASC NULLS LAST,
			created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings of session %d: %w", sessionID, err)
	}
	return bookings, nil
}
