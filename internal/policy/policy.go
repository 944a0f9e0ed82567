// Package policy computes booking windows, cancellation cutoffs and capacity
// for a class from its template fields and the facility defaults.
// Everything here is pure; callers pass the clock value in.
package policy

import "time"

const (
	DefaultBookingOpensHours    = 336
	DefaultBookingClosesMinutes = 0
	DefaultCancelCutoffMinutes  = 60
	DefaultWaitlistCapacity     = 10
	DefaultCapacity             = 20
)

// TemplatePolicy holds the policy fields a class template may set. Nil means unset.
type TemplatePolicy struct {
	BookingOpensHours    *int
	BookingClosesMinutes *int
	CancelCutoffMinutes  *int
	WaitlistCapacity     *int
	Capacity             *int
}

// Defaults are the facility-wide values, loaded once from configuration.
type Defaults struct {
	BookingOpensHours    *int
	BookingClosesMinutes *int
	CancelCutoffMinutes  *int
	WaitlistCapacity     *int
	Capacity             *int

	LateCancelForfeitsCredit bool
}

type Effective struct {
	BookingOpensHours    int
	BookingClosesMinutes int
	CancelCutoffMinutes  int
	WaitlistCapacity     int
	Capacity             int

	// LateCancelForfeitsCredit decides whether a late cancellation keeps the consumed credit.
	LateCancelForfeitsCredit bool
}

func Resolve(t TemplatePolicy, d Defaults) Effective {
	return Effective{
		BookingOpensHours:        pick(t.BookingOpensHours, d.BookingOpensHours, DefaultBookingOpensHours),
		BookingClosesMinutes:     pick(t.BookingClosesMinutes, d.BookingClosesMinutes, DefaultBookingClosesMinutes),
		CancelCutoffMinutes:      pick(t.CancelCutoffMinutes, d.CancelCutoffMinutes, DefaultCancelCutoffMinutes),
		WaitlistCapacity:         pick(t.WaitlistCapacity, d.WaitlistCapacity, DefaultWaitlistCapacity),
		Capacity:                 pick(t.Capacity, d.Capacity, DefaultCapacity),
		LateCancelForfeitsCredit: d.LateCancelForfeitsCredit,
	}
}

func pick(template, facility *int, fallback int) int {
	if template != nil {
		return *template
	}
	if facility != nil {
		return *facility
	}
	return fallback
}

// EffectiveCapacity returns the session override when set, otherwise the resolved template capacity.
func EffectiveCapacity(p Effective, sessionOverride *int) int {
	if sessionOverride != nil {
		return *sessionOverride
	}
	return p.Capacity
}

func BookingWindow(startsAt time.Time, p Effective) (opensAt, closesAt time.Time) {
	opensAt = startsAt.Add(-time.Duration(p.BookingOpensHours) * time.Hour)
	closesAt = startsAt.Add(-time.Duration(p.BookingClosesMinutes) * time.Minute)
	return opensAt, closesAt
}

// IsBookingOpen reports whether now falls inside the window, both ends included.
func IsBookingOpen(now, startsAt time.Time, p Effective) bool {
	opensAt, closesAt := BookingWindow(startsAt, p)
	return !now.Before(opensAt) && !now.After(closesAt)
}

func LateCancelCutoff(startsAt time.Time, p Effective) time.Time {
	return startsAt.Add(-time.Duration(p.CancelCutoffMinutes) * time.Minute)
}

// IsLateCancel is true only strictly after the cutoff.
func IsLateCancel(now, startsAt time.Time, p Effective) bool {
	return now.After(LateCancelCutoff(startsAt, p))
}

func CanJoinWaitlist(waitlisted int, p Effective) bool {
	return waitlisted < p.WaitlistCapacity
}
