package credit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodKey_UsesFacilityZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on the 1st is still the previous evening in New York.
	t0 := time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-04", PeriodKey(t0, time.UTC))
	assert.Equal(t, "2026-03", PeriodKey(t0, loc))
}

func TestPeriodBounds(t *testing.T) {
	start, end, err := PeriodBounds("2026-12", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, err = PeriodBounds("2026-13", time.UTC)
	assert.ErrorIs(t, err, ErrInvalidPeriodKey)

	_, _, err = PeriodBounds("march", time.UTC)
	assert.ErrorIs(t, err, ErrInvalidPeriodKey)
}

func TestPreviousPeriodKey(t *testing.T) {
	tests := map[string]string{
		"2026-03": "2026-02",
		"2026-01": "2025-12",
	}
	for in, want := range tests {
		got, err := PreviousPeriodKey(in, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := PreviousPeriodKey("", time.UTC)
	assert.ErrorIs(t, err, ErrInvalidPeriodKey)
}

func TestIdempotencyKeys(t *testing.T) {
	assert.Equal(t, "consume:12", ConsumeKey(12))
	assert.Equal(t, "refund:12", RefundKey(12))
	assert.Equal(t, "grant:3:7:2026-03", GrantKey(3, 7, "2026-03"))
	assert.Equal(t, "submission:9", SubmissionKey(9))
	assert.Equal(t, "expire:3:7:2026-02", ExpireKey(3, 7, "2026-02"))
}

func TestProductValidate(t *testing.T) {
	eight := 8
	zero := 0

	tests := []struct {
		name    string
		product Product
		wantErr bool
	}{
		{"one-off without amount", Product{CreditMode: ModeOneOff}, false},
		{"monthly with amount", Product{CreditMode: ModeMonthly, CreditsPerPeriod: &eight}, false},
		{"monthly without amount", Product{CreditMode: ModeMonthly}, true},
		{"monthly with zero", Product{CreditMode: ModeMonthly, CreditsPerPeriod: &zero}, true},
		{"unknown mode", Product{CreditMode: "WEEKLY"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProduct)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProductUsableBy(t *testing.T) {
	coach := 4
	p := Product{IsActive: true, EligibleForBookings: true, CoachID: &coach}

	assert.True(t, p.UsableBy(4))
	assert.False(t, p.UsableBy(5))

	p.CoachID = nil
	assert.True(t, p.UsableBy(5))

	p.EligibleForBookings = false
	assert.False(t, p.UsableBy(5))
}

func TestSubscriptionActiveAt(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s := Subscription{Status: SubscriptionActive, ValidFrom: from, ValidUntil: &until}

	assert.False(t, s.ActiveAt(from.Add(-time.Second)))
	assert.True(t, s.ActiveAt(from))
	assert.False(t, s.ActiveAt(until))

	s.Status = SubscriptionCancelled
	assert.False(t, s.ActiveAt(from.AddDate(0, 1, 0)))
}
