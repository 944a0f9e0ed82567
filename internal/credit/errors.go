package credit

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCredit    = errors.New("insufficient credit")
	ErrNoMatchingConsumption = errors.New("no matching consumption to refund")
	ErrDuplicateGrant        = errors.New("credits already granted for this cause")
	ErrDuplicateEntry        = errors.New("ledger entry already recorded")
	ErrPeriodOpen            = errors.New("period has not closed yet")
	ErrProductNotFound       = errors.New("credit product not found")
	ErrInvalidProduct        = errors.New("invalid credit product")
	ErrInvalidAmount         = errors.New("credit amount must be positive")
	ErrInvalidPeriodKey      = errors.New("invalid period key")
	ErrInvalidSubscription   = errors.New("invalid subscription")
)

// InsufficientCreditError carries the balance that fell short.
// A zero ProductID means no usable product had enough credit.
type InsufficientCreditError struct {
	ClientID  int
	ProductID int
	Required  int
	Available int
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit: client %d product %d needs %d, has %d",
		e.ClientID, e.ProductID, e.Required, e.Available)
}

func (e *InsufficientCreditError) Unwrap() error {
	return ErrInsufficientCredit
}
