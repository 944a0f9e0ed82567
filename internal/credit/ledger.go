package credit

import (
	"context"
	"errors"
	"time"

	"fitclass/internal/logger"
	"fitclass/internal/metrics"
)

// Ledger is the only writer of client balances. It works against whatever
// Repository it is given, so a ledger built inside a unit of work shares
// that unit's transaction.
type Ledger struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

func NewLedger(repo Repository, loc *time.Location, now func() time.Time) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, loc: loc, now: now}
}

func (l *Ledger) GetBalance(ctx context.Context, clientID, productID int) (int, error) {
	b, err := l.repo.GetBalance(ctx, clientID, productID)
	if err != nil {
		return 0, err
	}
	return b.Balance, nil
}

// Consume debits amount for a booking. Calling it again for the same booking
// returns the original entry without debiting twice.
func (l *Ledger) Consume(ctx context.Context, clientID, productID, amount, bookingID int) (*Entry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	key := ConsumeKey(bookingID)
	bal, err := l.repo.LockBalance(ctx, clientID, productID)
	if err != nil {
		return nil, err
	}

	existing, err := l.repo.GetEntryByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if bal.Balance < amount {
		return nil, &InsufficientCreditError{ClientID: clientID, ProductID: productID, Required: amount, Available: bal.Balance}
	}

	entry, err := l.apply(ctx, &Entry{
		ClientID:       clientID,
		ProductID:      productID,
		Kind:           KindConsume,
		Delta:          -amount,
		BookingID:      &bookingID,
		IdempotencyKey: key,
	})
	if errors.Is(err, ErrInsufficientCredit) {
		return nil, &InsufficientCreditError{ClientID: clientID, ProductID: productID, Required: amount, Available: bal.Balance}
	}
	return entry, err
}

// Refund credits back a booking's consumption. It needs a consumption of
// exactly amount for the same client and product and no earlier refund.
func (l *Ledger) Refund(ctx context.Context, clientID, productID, amount, bookingID int) (*Entry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := l.repo.LockBalance(ctx, clientID, productID); err != nil {
		return nil, err
	}

	consumed, err := l.repo.GetEntryByKey(ctx, ConsumeKey(bookingID))
	if err != nil {
		return nil, err
	}
	if consumed == nil || consumed.ClientID != clientID || consumed.ProductID != productID || -consumed.Delta != amount {
		return nil, ErrNoMatchingConsumption
	}

	key := RefundKey(bookingID)
	refunded, err := l.repo.GetEntryByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if refunded != nil {
		return nil, ErrNoMatchingConsumption
	}

	// A refund returns credits to the period the consumption drew them from.
	period := PeriodKey(consumed.CreatedAt, l.loc)
	entry, err := l.apply(ctx, &Entry{
		ClientID:       clientID,
		ProductID:      productID,
		Kind:           KindRefund,
		Delta:          amount,
		BookingID:      &bookingID,
		PeriodKey:      &period,
		IdempotencyKey: key,
	})
	if errors.Is(err, ErrDuplicateEntry) {
		return nil, ErrNoMatchingConsumption
	}
	return entry, err
}

// GrantPeriodic grants amount once per client, product and period.
// granted is false when the period was already granted.
func (l *Ledger) GrantPeriodic(ctx context.Context, clientID, productID, amount int, periodKey string) (granted bool, err error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	if _, _, err := PeriodBounds(periodKey, l.loc); err != nil {
		return false, err
	}

	key := GrantKey(productID, clientID, periodKey)
	if _, err := l.repo.LockBalance(ctx, clientID, productID); err != nil {
		return false, err
	}

	existing, err := l.repo.GetEntryByKey(ctx, key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	_, err = l.apply(ctx, &Entry{
		ClientID:       clientID,
		ProductID:      productID,
		Kind:           KindGrant,
		Delta:          amount,
		PeriodKey:      &periodKey,
		IdempotencyKey: key,
	})
	if errors.Is(err, ErrDuplicateEntry) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GrantForSubmission grants the credits of an approved purchase claim.
func (l *Ledger) GrantForSubmission(ctx context.Context, clientID, productID, amount, submissionID int) (*Entry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	key := SubmissionKey(submissionID)
	if _, err := l.repo.LockBalance(ctx, clientID, productID); err != nil {
		return nil, err
	}

	existing, err := l.repo.GetEntryByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateGrant
	}

	entry, err := l.apply(ctx, &Entry{
		ClientID:       clientID,
		ProductID:      productID,
		Kind:           KindGrant,
		Delta:          amount,
		SubmissionID:   &submissionID,
		IdempotencyKey: key,
	})
	if errors.Is(err, ErrDuplicateEntry) {
		return nil, ErrDuplicateGrant
	}
	return entry, err
}

// ExpireUnused expires, for every holder of the product, the credits left
// over from periodKey. asOf must be at or after the end of that period.
func (l *Ledger) ExpireUnused(ctx context.Context, productID int, periodKey string, asOf time.Time, runID string) (ExpireResult, error) {
	var res ExpireResult

	holders, err := l.repo.ListHolders(ctx, productID)
	if err != nil {
		return res, err
	}

	for _, clientID := range holders {
		n, err := l.ExpireUnusedForClient(ctx, clientID, productID, periodKey, asOf, runID)
		if err != nil {
			return res, err
		}
		if n > 0 {
			res.Clients++
			res.Credits += n
		}
	}

	return res, nil
}

// ExpireUnusedForClient expires what remains of the credits the client held
// when periodKey closed. Consumption is taken from the oldest credits first,
// so anything added after the close is never expired. Grants for a later
// period count as added after the close whenever they were recorded.
func (l *Ledger) ExpireUnusedForClient(ctx context.Context, clientID, productID int, periodKey string, asOf time.Time, runID string) (int, error) {
	_, end, err := PeriodBounds(periodKey, l.loc)
	if err != nil {
		return 0, err
	}
	if asOf.Before(end) {
		return 0, ErrPeriodOpen
	}

	key := ExpireKey(productID, clientID, periodKey)
	bal, err := l.repo.LockBalance(ctx, clientID, productID)
	if err != nil {
		return 0, err
	}

	existing, err := l.repo.GetEntryByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, nil
	}

	added, err := l.repo.SumAddedAfterClose(ctx, clientID, productID, periodKey, end)
	if err != nil {
		return 0, err
	}

	expirable := bal.Balance - added
	if expirable <= 0 {
		return 0, nil
	}

	var run *string
	if runID != "" {
		run = &runID
	}
	_, err = l.apply(ctx, &Entry{
		ClientID:       clientID,
		ProductID:      productID,
		Kind:           KindExpire,
		Delta:          -expirable,
		RunID:          run,
		PeriodKey:      &periodKey,
		IdempotencyKey: key,
	})
	if errors.Is(err, ErrDuplicateEntry) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return expirable, nil
}

// SelectProduct picks the first product usable for a class run by coachID
// on which the client can afford amount.
func (l *Ledger) SelectProduct(ctx context.Context, clientID, coachID, amount int) (*Product, error) {
	balances, err := l.repo.ListBalances(ctx, clientID)
	if err != nil {
		return nil, err
	}

	best := 0
	for _, b := range balances {
		if b.Balance > best {
			best = b.Balance
		}
		if b.Balance < amount {
			continue
		}
		p, err := l.repo.GetProduct(ctx, b.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.UsableBy(coachID) {
			return p, nil
		}
	}

	return nil, &InsufficientCreditError{ClientID: clientID, Required: amount, Available: best}
}

func (l *Ledger) apply(ctx context.Context, e *Entry) (*Entry, error) {
	e.CreatedAt = l.now()

	out, err := l.repo.ApplyEntry(ctx, e)
	if err != nil {
		return nil, err
	}

	metrics.LedgerEntriesTotal.WithLabelValues(string(e.Kind)).Inc()
	metrics.LedgerCreditsTotal.WithLabelValues(string(e.Kind)).Add(float64(abs(e.Delta)))
	logger.Debug("ledger entry applied",
		"client_id", e.ClientID,
		"product_id", e.ProductID,
		"kind", e.Kind,
		"delta", e.Delta,
		"balance_after", out.BalanceAfter,
	)
	return out, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
