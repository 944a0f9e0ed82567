package submission

import "time"

type Status string
type Action string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"

	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// Submission is a client's claim that they bought credits outside the platform.
type Submission struct {
	ID             int        `db:"id" json:"id"`
	ClientID       int        `db:"client_id" json:"client_id"`
	ProductID      int        `db:"product_id" json:"product_id"`
	Reference      string     `db:"reference" json:"reference"`
	Note           string     `db:"note" json:"note"`
	Status         Status     `db:"status" json:"status"`
	ReviewerID     *int       `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewedAt     *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreditsApplied *int       `db:"credits_applied" json:"credits_applied,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type SubmitRequest struct {
	ProductID int    `json:"product_id" binding:"required"`
	Reference string `json:"reference" binding:"required,max=128"`
	Note      string `json:"note" binding:"max=1000"`
}

type ReviewRequest struct {
	Action Action `json:"action" binding:"required,oneof=APPROVE REJECT"`
}
