package events

import "strconv"

type BookingCreated struct {
	BookingID        int    `json:"booking_id"`
	SessionID        int    `json:"session_id"`
	ClientID         int    `json:"client_id"`
	Result           string `json:"result"`
	Source           string `json:"source"`
	WaitlistPosition *int   `json:"waitlist_position,omitempty"`
	CreditsCharged   int    `json:"credits_charged"`
}

func (BookingCreated) Action() Action { return ActionBookingCreated }
func (p BookingCreated) Target() (string, string) {
	return "booking", strconv.Itoa(p.BookingID)
}

type BookingCancelled struct {
	BookingID       int    `json:"booking_id"`
	SessionID       int    `json:"session_id"`
	ClientID        int    `json:"client_id"`
	Status          string `json:"status"`
	LateCancel      bool   `json:"late_cancel"`
	CreditsRefunded int    `json:"credits_refunded"`
	PromotedCount   int    `json:"promoted_count"`
	PromotionFailed bool   `json:"promotion_failed,omitempty"`
}

func (BookingCancelled) Action() Action { return ActionBookingCancelled }
func (p BookingCancelled) Target() (string, string) {
	return "booking", strconv.Itoa(p.BookingID)
}

type BookingPromoted struct {
	BookingID      int `json:"booking_id"`
	SessionID      int `json:"session_id"`
	ClientID       int `json:"client_id"`
	FreedBy        int `json:"freed_by_booking_id"`
	CreditsCharged int `json:"credits_charged"`
}

func (BookingPromoted) Action() Action { return ActionBookingPromoted }
func (p BookingPromoted) Target() (string, string) {
	return "booking", strconv.Itoa(p.BookingID)
}

type AttendanceMarked struct {
	BookingID int    `json:"booking_id"`
	SessionID int    `json:"session_id"`
	ClientID  int    `json:"client_id"`
	Status    string `json:"status"`
}

func (AttendanceMarked) Action() Action { return ActionAttendanceMarked }
func (p AttendanceMarked) Target() (string, string) {
	return "booking", strconv.Itoa(p.BookingID)
}

type SubmissionReviewed struct {
	SubmissionID   int    `json:"submission_id"`
	ClientID       int    `json:"client_id"`
	ProductID      int    `json:"product_id"`
	Decision       string `json:"decision"`
	CreditsApplied int    `json:"credits_applied"`
}

func (SubmissionReviewed) Action() Action { return ActionSubmissionReviewed }
func (p SubmissionReviewed) Target() (string, string) {
	return "credit_submission", strconv.Itoa(p.SubmissionID)
}

type CycleRun struct {
	RunID             string `json:"run_id"`
	PeriodKey         string `json:"period_key"`
	ProductsProcessed int    `json:"products_processed"`
	GrantsIssued      int    `json:"grants_issued"`
	CreditsExpired    int    `json:"credits_expired"`
	Failures          int    `json:"failures"`
}

func (CycleRun) Action() Action { return ActionCycleRun }
func (p CycleRun) Target() (string, string) {
	return "credit_cycle", p.RunID
}
