package class

import (
	"time"

	"fitclass/internal/policy"
)

const (
	SessionScheduled = "SCHEDULED"
	SessionCancelled = "CANCELLED"
	SessionCompleted = "COMPLETED"

	VisibilityFacility = "facility"
	VisibilityCohort   = "cohort"
)

type Template struct {
	ID                   int       `db:"id" json:"id"`
	CoachID              int       `db:"coach_id" json:"coach_id"`
	Name                 string    `db:"name" json:"name"`
	ClassType            string    `db:"class_type" json:"class_type"`
	Visibility           string    `db:"visibility" json:"visibility"`
	CohortID             *int      `db:"cohort_id" json:"cohort_id,omitempty"`
	Location             string    `db:"location" json:"location"`
	Capacity             *int      `db:"capacity" json:"capacity,omitempty"`
	WaitlistEnabled      bool      `db:"waitlist_enabled" json:"waitlist_enabled"`
	WaitlistCapacity     *int      `db:"waitlist_capacity" json:"waitlist_capacity,omitempty"`
	BookingOpensHours    *int      `db:"booking_opens_hours" json:"booking_opens_hours,omitempty"`
	BookingClosesMinutes *int      `db:"booking_closes_minutes" json:"booking_closes_minutes,omitempty"`
	CancelCutoffMinutes  *int      `db:"cancel_cutoff_minutes" json:"cancel_cutoff_minutes,omitempty"`
	CreditsRequired      int       `db:"credits_required" json:"credits_required"`
	CreditProductID      *int      `db:"credit_product_id" json:"credit_product_id,omitempty"`
	IsActive             bool      `db:"is_active" json:"is_active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Policy extracts the template-level policy fields.
func (t *Template) Policy() policy.TemplatePolicy {
	return policy.TemplatePolicy{
		BookingOpensHours:    t.BookingOpensHours,
		BookingClosesMinutes: t.BookingClosesMinutes,
		CancelCutoffMinutes:  t.CancelCutoffMinutes,
		WaitlistCapacity:     t.WaitlistCapacity,
		Capacity:             t.Capacity,
	}
}

type Session struct {
	ID               int       `db:"id" json:"id"`
	TemplateID       int       `db:"template_id" json:"template_id"`
	StartsAt         time.Time `db:"starts_at" json:"starts_at"`
	EndsAt           time.Time `db:"ends_at" json:"ends_at"`
	CapacityOverride *int      `db:"capacity_override" json:"capacity_override,omitempty"`
	InstructorID     *int      `db:"instructor_id" json:"instructor_id,omitempty"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// SessionListing is a session joined with its template and current counts.
type SessionListing struct {
	Session
	ClassName       string `db:"class_name" json:"class_name"`
	Location        string `db:"location" json:"location"`
	TemplateActive  bool   `db:"template_active" json:"-"`
	WaitlistEnabled bool   `db:"waitlist_enabled" json:"waitlist_enabled"`
	BookedCount     int    `db:"booked_count" json:"booked_count"`
	WaitlistCount   int    `db:"waitlist_count" json:"waitlist_count"`

	TemplateCapacity *int `db:"template_capacity" json:"-"`

	Capacity  int  `db:"-" json:"capacity"`
	Available int  `db:"-" json:"available"`
	IsFull    bool `db:"-" json:"is_full"`
}

type CreateTemplateRequest struct {
	Name                 string `json:"name" binding:"required"`
	ClassType            string `json:"class_type" binding:"required"`
	Visibility           string `json:"visibility" binding:"omitempty,oneof=facility cohort"`
	CohortID             *int   `json:"cohort_id"`
	Location             string `json:"location"`
	Capacity             *int   `json:"capacity" binding:"omitempty,min=1"`
	WaitlistEnabled      bool   `json:"waitlist_enabled"`
	WaitlistCapacity     *int   `json:"waitlist_capacity" binding:"omitempty,min=0"`
	BookingOpensHours    *int   `json:"booking_opens_hours" binding:"omitempty,min=0"`
	BookingClosesMinutes *int   `json:"booking_closes_minutes" binding:"omitempty,min=0"`
	CancelCutoffMinutes  *int   `json:"cancel_cutoff_minutes" binding:"omitempty,min=0"`
	CreditsRequired      int    `json:"credits_required" binding:"min=0"`
	CreditProductID      *int   `json:"credit_product_id"`
}

type CreateSessionRequest struct {
	StartsAt         string `json:"starts_at" binding:"required,timestamp"`
	EndsAt           string `json:"ends_at" binding:"required,timestamp"`
	CapacityOverride *int   `json:"capacity_override" binding:"omitempty,min=1"`
	InstructorID     *int   `json:"instructor_id"`
}

type UpdateSessionStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=SCHEDULED CANCELLED COMPLETED"`
}
