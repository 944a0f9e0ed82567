package booking

import (
	"time"
)

type Status string
type Source string
type Result string

const (
	StatusBooked     Status = "BOOKED"
	StatusWaitlisted Status = "WAITLISTED"
	StatusCancelled  Status = "CANCELLED"
	StatusLateCancel Status = "LATE_CANCEL"
	StatusAttended   Status = "ATTENDED"
	StatusNoShow     Status = "NO_SHOW"

	SourceClient Source = "CLIENT"
	SourceCoach  Source = "COACH"
	SourceAdmin  Source = "ADMIN"

	ResultBooked        Result = "booked"
	ResultWaitlisted    Result = "waitlisted"
	ResultAlreadyExists Result = "already_exists"
)

// Active reports whether the booking still holds a seat or a waitlist place.
func (s Status) Active() bool {
	return s == StatusBooked || s == StatusWaitlisted
}

func (s Status) Cancelled() bool {
	return s == StatusCancelled || s == StatusLateCancel
}

type Booking struct {
	ID                 int        `db:"id" json:"id"`
	SessionID          int        `db:"session_id" json:"session_id"`
	ClientID           int        `db:"client_id" json:"client_id"`
	Status             Status     `db:"status" json:"status"`
	WaitlistPosition   *int       `db:"waitlist_position" json:"waitlist_position,omitempty"`
	Source             Source     `db:"source" json:"source"`
	CreditProductID    *int       `db:"credit_product_id" json:"credit_product_id,omitempty"`
	CreditsCharged     int        `db:"credits_charged" json:"credits_charged"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	AttendanceMarkedAt *time.Time `db:"attendance_marked_at" json:"attendance_marked_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

type BookingWithSession struct {
	Booking
	ClassName      string    `db:"class_name" json:"class_name"`
	Location       string    `db:"location" json:"location"`
	SessionStartAt time.Time `db:"session_starts_at" json:"session_starts_at"`
	SessionEndAt   time.Time `db:"session_ends_at" json:"session_ends_at"`
}

type BookRequest struct {
	SessionID            int
	ClientID             int
	Source               Source
	ActorID              int
	SkipCreditValidation bool
	EnforceBookingWindow bool
}

type BookResult struct {
	Result  Result   `json:"result"`
	Booking *Booking `json:"booking"`
}

type CancelResult struct {
	Booking          *Booking  `json:"booking"`
	Promoted         []Booking `json:"promoted"`
	LateCancel       bool      `json:"late_cancel"`
	AlreadyCancelled bool      `json:"already_cancelled"`
	// PromotionError is set when a seat freed up but the next waitlisted
	// client could not be promoted. The cancellation itself still succeeded.
	PromotionError error `json:"-"`
}

type BookSessionRequest struct {
	ClientID             *int `json:"client_id"`
	SkipCreditValidation bool `json:"skip_credit_validation"`
}

type MarkAttendanceRequest struct {
	Status Status `json:"status" binding:"required,oneof=ATTENDED NO_SHOW"`
}

type CancelBookingResponse struct {
	Booking          *Booking  `json:"booking"`
	Promoted         []Booking `json:"promoted"`
	LateCancel       bool      `json:"late_cancel"`
	AlreadyCancelled bool      `json:"already_cancelled"`
	PromotionError   string    `json:"promotion_error,omitempty"`
}
