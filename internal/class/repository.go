package class

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fitclass/internal/db"
)

var (
	ErrTemplateNotFound = errors.New("class template not found")
	ErrSessionNotFound  = errors.New("session not found")
)

const templateColumns = `id, coach_id, name, class_type, visibility, cohort_id, location, capacity,
	waitlist_enabled, waitlist_capacity, booking_opens_hours, booking_closes_minutes,
	cancel_cutoff_minutes, credits_required, credit_product_id, is_active, created_at, updated_at`

const sessionColumns = `id, template_id, starts_at, ends_at, capacity_override, instructor_id, status, created_at`

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) CreateTemplate(ctx context.Context, t *Template) (*Template, error) {
	query := `
		INSERT INTO class_templates (coach_id, name, class_type, visibility, cohort_id, location, capacity,
			waitlist_enabled, waitlist_capacity, booking_opens_hours, booking_closes_minutes,
			cancel_cutoff_minutes, credits_required, credit_product_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + templateColumns

	var out Template
	err := r.db.GetContext(ctx, &out, query,
		t.CoachID, t.Name, t.ClassType, t.Visibility, t.CohortID, t.Location, t.Capacity,
		t.WaitlistEnabled, t.WaitlistCapacity, t.BookingOpensHours, t.BookingClosesMinutes,
		t.CancelCutoffMinutes, t.CreditsRequired, t.CreditProductID, t.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("insert class template: %w", err)
	}
	return &out, nil
}

func (r *repository) GetTemplateByID(ctx context.Context, id int) (*Template, error) {
	var t Template
	err := r.db.GetContext(ctx, &t, `SELECT `+templateColumns+` FROM class_templates WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get class template %d: %w", id, err)
	}
	return &t, nil
}

func (r *repository) ListTemplates(ctx context.Context, coachID *int) ([]Template, error) {
	query := `SELECT ` + templateColumns + ` FROM class_templates`
	args := []interface{}{}

	if coachID != nil {
		query += " WHERE coach_id = $1"
		args = append(args, *coachID)
	}
	query += " ORDER BY name ASC"

	templates := []Template{}
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, fmt.Errorf("list class templates: %w", err)
	}
	return templates, nil
}

func (r *repository) SetTemplateActive(ctx context.Context, id int, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE class_templates SET is_active = $1, updated_at = NOW() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("update class template %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *repository) CreateSession(ctx context.Context, s *Session) (*Session, error) {
	query := `
		INSERT INTO class_sessions (template_id, starts_at, ends_at, capacity_override, instructor_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + sessionColumns

	status := s.Status
	if status == "" {
		status = SessionScheduled
	}

	var out Session
	err := r.db.GetContext(ctx, &out, query, s.TemplateID, s.StartsAt, s.EndsAt, s.CapacityOverride, s.InstructorID, status)
	if err != nil {
		return nil, fmt.Errorf("insert class session: %w", err)
	}
	return &out, nil
}

func (r *repository) GetSessionByID(ctx context.Context, id int) (*Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM class_sessions WHERE id = $1`, id)
}

func (r *repository) LockSession(ctx context.Context, id int) (*Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM class_sessions WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) getSession(ctx context.Context, query string, id int) (*Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get class session %d: %w", id, err)
	}
	return &s, nil
}

func (r *repository) UpdateSessionStatus(ctx context.Context, id int, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE class_sessions SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update class session %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *repository) ListUpcomingSessions(ctx context.Context, from time.Time, limit int) ([]SessionListing, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT s.id, s.template_id, s.starts_at, s.ends_at, s.capacity_override, s.instructor_id, s.status, s.created_at,
			t.name AS class_name, t.location, t.is_active AS template_active, t.waitlist_enabled, t.capacity AS template_capacity,
			(SELECT COUNT(*) FROM class_bookings b WHERE b.session_id = s.id AND b.status = 'BOOKED') AS booked_count,
			(SELECT COUNT(*) FROM class_bookings b WHERE b.session_id = s.id AND b.status = 'WAITLISTED') AS waitlist_count
		FROM class_sessions s
		JOIN class_templates t ON t.id = s.template_id
		WHERE s.starts_at >= $1 AND s.status = 'SCHEDULED'
		ORDER BY s.starts_at ASC
		LIMIT $2
	`

	listings := []SessionListing{}
	if err := r.db.SelectContext(ctx, &listings, query, from, limit); err != nil {
		return nil, fmt.Errorf("list upcoming sessions: %w", err)
	}
	return listings, nil
}
