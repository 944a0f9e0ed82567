package credit

import (
	"context"
	"time"
)

type Repository interface {
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	GetProduct(ctx context.Context, id int) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListActivePeriodicProducts(ctx context.Context) ([]Product, error)

	GetBalance(ctx context.Context, clientID, productID int) (*Balance, error)
	// LockBalance creates the balance row when missing and locks it for the unit of work.
	LockBalance(ctx context.Context, clientID, productID int) (*Balance, error)
	ListBalances(ctx context.Context, clientID int) ([]Balance, error)
	// ListHolders returns clients with a positive balance of the product.
	ListHolders(ctx context.Context, productID int) ([]int, error)

	// ApplyEntry moves the balance by e.Delta and appends e in one statement.
	// It returns ErrInsufficientCredit when the balance would go negative and
	// ErrDuplicateEntry when the idempotency key is taken.
	ApplyEntry(ctx context.Context, e *Entry) (*Entry, error)
	GetEntryByKey(ctx context.Context, key string) (*Entry, error)
	// SumAddedAfterClose totals the positive deltas that belong after periodKey:
	// entries tagged with a later period, and untagged entries recorded at or
	// after closedAt.
	SumAddedAfterClose(ctx context.Context, clientID, productID int, periodKey string, closedAt time.Time) (int, error)
	ListEntries(ctx context.Context, clientID, productID, limit, offset int) ([]Entry, error)

	CreateSubscription(ctx context.Context, s *Subscription) (*Subscription, error)
	ListActiveSubscriptions(ctx context.Context, productID int, at time.Time) ([]Subscription, error)
	ListSubscriptionsByClient(ctx context.Context, clientID int) ([]Subscription, error)
}
