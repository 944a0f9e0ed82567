package booking

import (
	"errors"

	"fitclass/internal/class"
	"fitclass/internal/credit"
)

var (
	ErrSessionNotFound       = class.ErrSessionNotFound
	ErrSessionNotBookable    = errors.New("session is not open for booking")
	ErrBookingWindowClosed   = errors.New("booking window is closed")
	ErrSessionFull           = errors.New("session is full")
	ErrInsufficientCredit    = credit.ErrInsufficientCredit
	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingNotCancellable = errors.New("booking can no longer be cancelled")
	ErrDuplicateActive       = errors.New("client already holds an active booking for this session")
	ErrNotWaitlisted         = errors.New("booking is not waitlisted")
	ErrAttendanceNotAllowed  = errors.New("attendance can only be marked on a booked seat")
	ErrNotOwner              = errors.New("booking belongs to another client")
)
