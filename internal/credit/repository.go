package credit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fitclass/internal/db"
)

const productColumns = `id, coach_id, name, credit_mode, credits_per_period, period_type,
	eligible_for_bookings, purchase_restricted, is_active, created_at`

const entryColumns = `id, client_id, product_id, kind, delta, balance_after, booking_id,
	submission_id, run_id, period_key, idempotency_key, created_at`

const subscriptionColumns = `id, client_id, product_id, status, valid_from, valid_until, created_at`

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	periodType := p.PeriodType
	if periodType == "" {
		periodType = PeriodMonth
	}

	var out Product
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO credit_products (coach_id, name, credit_mode, credits_per_period, period_type,
			eligible_for_bookings, purchase_restricted, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		p.CoachID, p.Name, p.CreditMode, p.CreditsPerPeriod, periodType,
		p.EligibleForBookings, p.PurchaseRestricted, p.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("insert credit product: %w", err)
	}
	return &out, nil
}

func (r *repository) GetProduct(ctx context.Context, id int) (*Product, error) {
	var p Product
	err := r.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM credit_products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credit product %d: %w", id, err)
	}
	return &p, nil
}

func (r *repository) ListProducts(ctx context.Context) ([]Product, error) {
	products := []Product{}
	err := r.db.SelectContext(ctx, &products, `SELECT `+productColumns+` FROM credit_products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list credit products: %w", err)
	}
	return products, nil
}

func (r *repository) ListActivePeriodicProducts(ctx context.Context) ([]Product, error) {
	products := []Product{}
	err := r.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM credit_products WHERE is_active AND credit_mode = $1 ORDER BY id`,
		ModeMonthly,
	)
	if err != nil {
		return nil, fmt.Errorf("list periodic credit products: %w", err)
	}
	return products, nil
}

func (r *repository) GetBalance(ctx context.Context, clientID, productID int) (*Balance, error) {
	var b Balance
	err := r.db.GetContext(ctx, &b, `
		SELECT client_id, product_id, balance, updated_at
		FROM credit_balances
		WHERE client_id = $1 AND product_id = $2`,
		clientID, productID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &Balance{ClientID: clientID, ProductID: productID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

func (r *repository) LockBalance(ctx context.Context, clientID, productID int) (*Balance, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credit_balances (client_id, product_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (client_id, product_id) DO NOTHING`,
		clientID, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure balance row: %w", err)
	}

	var b Balance
	err = r.db.GetContext(ctx, &b, `
		SELECT client_id, product_id, balance, updated_at
		FROM credit_balances
		WHERE client_id = $1 AND product_id = $2
		FOR UPDATE`,
		clientID, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("lock balance: %w", err)
	}
	return &b, nil
}

func (r *repository) ListBalances(ctx context.Context, clientID int) ([]Balance, error) {
	balances := []Balance{}
	err := r.db.SelectContext(ctx, &balances, `
		SELECT client_id, product_id, balance, updated_at
		FROM credit_balances
		WHERE client_id = $1
		ORDER BY product_id`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return balances, nil
}

func (r *repository) ListHolders(ctx context.Context, productID int) ([]int, error) {
	var clients []int
	err := r.db.SelectContext(ctx, &clients,
		`SELECT client_id FROM credit_balances WHERE product_id = $1 AND balance > 0 ORDER BY client_id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list holders of product %d: %w", productID, err)
	}
	return clients, nil
}

func (r *repository) ApplyEntry(ctx context.Context, e *Entry) (*Entry, error) {
	var out Entry
	err := r.db.GetContext(ctx, &out, `
		WITH moved AS (
			UPDATE credit_balances
			SET balance = balance + $3, updated_at = $10
			WHERE client_id = $1 AND product_id = $2 AND balance + $3 >= 0
			RETURNING balance
		)
		INSERT INTO credit_entries (client_id, product_id, kind, delta, balance_after, booking_id,
			submission_id, run_id, period_key, idempotency_key, created_at)
		SELECT $1, $2, $4::text, $3, moved.balance, $5::int, $6::int, $7::text, $8::text, $9::text, $10 FROM moved
		RETURNING `+entryColumns,
		e.ClientID, e.ProductID, e.Delta, e.Kind, e.BookingID,
		e.SubmissionID, e.RunID, e.PeriodKey, e.IdempotencyKey, e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInsufficientCredit
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEntry
	}
	if err != nil {
		return nil, fmt.Errorf("apply ledger entry %s: %w", e.IdempotencyKey, err)
	}
	return &out, nil
}

func (r *repository) GetEntryByKey(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := r.db.GetContext(ctx, &e, `SELECT `+entryColumns+` FROM credit_entries WHERE idempotency_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %s: %w", key, err)
	}
	return &e, nil
}

func (r *repository) SumAddedAfterClose(ctx context.Context, clientID, productID int, periodKey string, closedAt time.Time) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(delta), 0)
		FROM credit_entries
		WHERE client_id = $1 AND product_id = $2 AND delta > 0
		  AND CASE WHEN period_key IS NULL THEN created_at >= $3 ELSE period_key > $4 END`,
		clientID, productID, closedAt, periodKey,
	)
	if err != nil {
		return 0, fmt.Errorf("sum ledger additions: %w", err)
	}
	return total, nil
}

func (r *repository) ListEntries(ctx context.Context, clientID, productID, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM credit_entries
		WHERE client_id = $1 AND product_id = $2
		ORDER BY id DESC
		LIMIT $3 OFFSET $4`,
		clientID, productID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

func (r *repository) CreateSubscription(ctx context.Context, s *Subscription) (*Subscription, error) {
	status := s.Status
	if status == "" {
		status = SubscriptionActive
	}

	var out Subscription
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO credit_subscriptions (client_id, product_id, status, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+subscriptionColumns,
		s.ClientID, s.ProductID, status, s.ValidFrom, s.ValidUntil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert credit subscription: %w", err)
	}
	return &out, nil
}

func (r *repository) ListActiveSubscriptions(ctx context.Context, productID int, at time.Time) ([]Subscription, error) {
	subs := []Subscription{}
	err := r.db.SelectContext(ctx, &subs, `
		SELECT `+subscriptionColumns+`
		FROM credit_subscriptions
		WHERE product_id = $1
		  AND status = 'active'
		  AND valid_from <= $2
		  AND (valid_until IS NULL OR valid_until > $2)
		ORDER BY client_id`,
		productID, at,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions of product %d: %w", productID, err)
	}
	return subs, nil
}

func (r *repository) ListSubscriptionsByClient(ctx context.Context, clientID int) ([]Subscription, error) {
	subs := []Subscription{}
	err := r.db.SelectContext(ctx, &subs,
		`SELECT `+subscriptionColumns+` FROM credit_subscriptions WHERE client_id = $1 ORDER BY created_at DESC`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions of client %d: %w", clientID, err)
	}
	return subs, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
