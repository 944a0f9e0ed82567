package credit

import "time"

type CreditMode string
type EntryKind string
type SubscriptionStatus string

const (
	ModeOneOff  CreditMode = "ONE_OFF"
	ModeMonthly CreditMode = "MONTHLY"

	PeriodMonth = "MONTH"

	KindGrant   EntryKind = "GRANT"
	KindConsume EntryKind = "CONSUME"
	KindRefund  EntryKind = "REFUND"
	KindExpire  EntryKind = "EXPIRE"

	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Product is a credit bundle a client can hold a balance of.
// CreditsPerPeriod is the monthly grant for MONTHLY products and the
// grant per approved purchase for ONE_OFF products.
type Product struct {
	ID                  int        `db:"id" json:"id"`
	CoachID             *int       `db:"coach_id" json:"coach_id,omitempty"`
	Name                string     `db:"name" json:"name"`
	CreditMode          CreditMode `db:"credit_mode" json:"credit_mode"`
	CreditsPerPeriod    *int       `db:"credits_per_period" json:"credits_per_period,omitempty"`
	PeriodType          string     `db:"period_type" json:"period_type"`
	EligibleForBookings bool       `db:"eligible_for_bookings" json:"eligible_for_bookings"`
	PurchaseRestricted  bool       `db:"purchase_restricted" json:"purchase_restricted"`
	IsActive            bool       `db:"is_active" json:"is_active"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

func (p *Product) Periodic() bool {
	return p.CreditMode == ModeMonthly
}

// Validate checks the product invariants before it is stored.
func (p *Product) Validate() error {
	switch p.CreditMode {
	case ModeOneOff, ModeMonthly:
	default:
		return ErrInvalidProduct
	}
	if p.Periodic() && (p.CreditsPerPeriod == nil || *p.CreditsPerPeriod <= 0) {
		return ErrInvalidProduct
	}
	if p.CreditsPerPeriod != nil && *p.CreditsPerPeriod < 0 {
		return ErrInvalidProduct
	}
	return nil
}

// UsableBy reports whether bookings of a class run by coachID may draw on this product.
func (p *Product) UsableBy(coachID int) bool {
	return p.IsActive && p.EligibleForBookings && (p.CoachID == nil || *p.CoachID == coachID)
}

type Balance struct {
	ClientID  int       `db:"client_id" json:"client_id"`
	ProductID int       `db:"product_id" json:"product_id"`
	Balance   int       `db:"balance" json:"balance"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Entry is one line of the append-only ledger. Delta is signed.
type Entry struct {
	ID             int       `db:"id" json:"id"`
	ClientID       int       `db:"client_id" json:"client_id"`
	ProductID      int       `db:"product_id" json:"product_id"`
	Kind           EntryKind `db:"kind" json:"kind"`
	Delta          int       `db:"delta" json:"delta"`
	BalanceAfter   int       `db:"balance_after" json:"balance_after"`
	BookingID      *int      `db:"booking_id" json:"booking_id,omitempty"`
	SubmissionID   *int      `db:"submission_id" json:"submission_id,omitempty"`
	RunID          *string   `db:"run_id" json:"run_id,omitempty"`
	PeriodKey      *string   `db:"period_key" json:"period_key,omitempty"`
	IdempotencyKey string    `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type Subscription struct {
	ID         int                `db:"id" json:"id"`
	ClientID   int                `db:"client_id" json:"client_id"`
	ProductID  int                `db:"product_id" json:"product_id"`
	Status     SubscriptionStatus `db:"status" json:"status"`
	ValidFrom  time.Time          `db:"valid_from" json:"valid_from"`
	ValidUntil *time.Time         `db:"valid_until" json:"valid_until,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether the subscription entitles the client to a grant at t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	if s.Status != SubscriptionActive || t.Before(s.ValidFrom) {
		return false
	}
	return s.ValidUntil == nil || t.Before(*s.ValidUntil)
}

type ExpireResult struct {
	Clients int `json:"clients"`
	Credits int `json:"credits"`
}

type CreateProductRequest struct {
	CoachID             *int       `json:"coach_id"`
	Name                string     `json:"name" binding:"required"`
	CreditMode          CreditMode `json:"credit_mode" binding:"required,oneof=ONE_OFF MONTHLY"`
	CreditsPerPeriod    *int       `json:"credits_per_period" binding:"omitempty,min=1"`
	EligibleForBookings bool       `json:"eligible_for_bookings"`
	PurchaseRestricted  bool       `json:"purchase_restricted"`
}

type CreateSubscriptionRequest struct {
	ClientID   int     `json:"client_id" binding:"required"`
	ValidFrom  string  `json:"valid_from" binding:"required,timestamp"`
	ValidUntil *string `json:"valid_until" binding:"omitempty,timestamp"`
}

type BalanceResponse struct {
	ProductID int `json:"product_id"`
	Balance   int `json:"balance"`
}
