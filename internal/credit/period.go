package credit

import (
	"fmt"
	"time"
)

const periodLayout = "2006-01"

// PeriodKey returns the calendar month of t in loc, e.g. "2026-03".
func PeriodKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(periodLayout)
}

// PeriodBounds returns the half-open interval [start, end) covered by key.
func PeriodBounds(key string, loc *time.Location) (start, end time.Time, err error) {
	start, err = time.ParseInLocation(periodLayout, key, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriodKey, key)
	}
	return start, start.AddDate(0, 1, 0), nil
}

func PreviousPeriodKey(key string, loc *time.Location) (string, error) {
	start, _, err := PeriodBounds(key, loc)
	if err != nil {
		return "", err
	}
	return start.AddDate(0, -1, 0).Format(periodLayout), nil
}

func ConsumeKey(bookingID int) string {
	return fmt.Sprintf("consume:%d", bookingID)
}

func RefundKey(bookingID int) string {
	return fmt.Sprintf("refund:%d", bookingID)
}

func GrantKey(productID, clientID int, periodKey string) string {
	return fmt.Sprintf("grant:%d:%d:%s", productID, clientID, periodKey)
}

func SubmissionKey(submissionID int) string {
	return fmt.Sprintf("submission:%d", submissionID)
}

func ExpireKey(productID, clientID int, periodKey string) string {
	return fmt.Sprintf("expire:%d:%d:%s", productID, clientID, periodKey)
}
