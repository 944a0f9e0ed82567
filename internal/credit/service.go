package credit

import (
	"context"
	"fmt"
	"time"
)

// Service covers the read side of the ledger and the catalogue of products.
// Balance changes are made by Ledger only.
type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetBalances(ctx context.Context, clientID int) ([]BalanceResponse, error)
	ListEntries(ctx context.Context, clientID, productID, limit, offset int) ([]Entry, error)
	CreateSubscription(ctx context.Context, productID int, req CreateSubscriptionRequest) (*Subscription, error)
	ListSubscriptions(ctx context.Context, clientID int) ([]Subscription, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}
}

func (s *service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	p := &Product{
		CoachID:             req.CoachID,
		Name:                req.Name,
		CreditMode:          req.CreditMode,
		CreditsPerPeriod:    req.CreditsPerPeriod,
		EligibleForBookings: req.EligibleForBookings,
		PurchaseRestricted:  req.PurchaseRestricted,
		IsActive:            true,
		CreatedAt:           s.now(),
	}
	if p.Periodic() {
		p.PeriodType = PeriodMonth
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *service) GetBalances(ctx context.Context, clientID int) ([]BalanceResponse, error) {
	balances, err := s.repo.ListBalances(ctx, clientID)
	if err != nil {
		return nil, err
	}

	out := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, BalanceResponse{ProductID: b.ProductID, Balance: b.Balance})
	}
	return out, nil
}

func (s *service) ListEntries(ctx context.Context, clientID, productID, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListEntries(ctx, clientID, productID, limit, offset)
}

func (s *service) CreateSubscription(ctx context.Context, productID int, req CreateSubscriptionRequest) (*Subscription, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Periodic() || !p.IsActive {
		return nil, fmt.Errorf("%w: product %d does not grant monthly credits", ErrInvalidSubscription, productID)
	}

	from, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_from: %v", ErrInvalidSubscription, err)
	}

	sub := &Subscription{
		ClientID:  req.ClientID,
		ProductID: productID,
		Status:    SubscriptionActive,
		ValidFrom: from,
		CreatedAt: s.now(),
	}

	if req.ValidUntil != nil {
		until, err := time.Parse(time.RFC3339, *req.ValidUntil)
		if err != nil {
			return nil, fmt.Errorf("%w: valid_until: %v", ErrInvalidSubscription, err)
		}
		if !until.After(from) {
			return nil, fmt.Errorf("%w: valid_until must be after valid_from", ErrInvalidSubscription)
		}
		sub.ValidUntil = &until
	}

	return s.repo.CreateSubscription(ctx, sub)
}

func (s *service) ListSubscriptions(ctx context.Context, clientID int) ([]Subscription, error) {
	return s.repo.ListSubscriptionsByClient(ctx, clientID)
}
