package memstore

import (
	"context"
	"sort"
	"time"

	"fitclass/internal/credit"
)

type creditRepo struct {
	s *Store
}

func (r *creditRepo) CreateProduct(ctx context.Context, p *credit.Product) (*credit.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := *p
	out.ID = r.s.id()
	if out.PeriodType == "" {
		out.PeriodType = credit.PeriodMonth
	}
	out.CreatedAt = time.Now()
	r.s.st.products[out.ID] = out
	return &out, nil
}

func (r *creditRepo) GetProduct(ctx context.Context, id int) (*credit.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.st.products[id]
	if !ok {
		return nil, credit.ErrProductNotFound
	}
	return &p, nil
}

func (r *creditRepo) ListProducts(ctx context.Context) ([]credit.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []credit.Product{}
	for _, p := range r.s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *creditRepo) ListActivePeriodicProducts(ctx context.Context) ([]credit.Product, error) {
	all, _ := r.ListProducts(ctx)

	out := []credit.Product{}
	for _, p := range all {
		if p.IsActive && p.Periodic() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *creditRepo) GetBalance(ctx context.Context, clientID, productID int) (*credit.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.st.balances[balanceKey{clientID, productID}]
	if !ok {
		return &credit.Balance{ClientID: clientID, ProductID: productID}, nil
	}
	return &b, nil
}

func (r *creditRepo) LockBalance(ctx context.Context, clientID, productID int) (*credit.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := balanceKey{clientID, productID}
	b, ok := r.s.st.balances[k]
	if !ok {
		b = credit.Balance{ClientID: clientID, ProductID: productID, UpdatedAt: time.Now()}
		r.s.st.balances[k] = b
	}
	return &b, nil
}

func (r *creditRepo) ListBalances(ctx context.Context, clientID int) ([]credit.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []credit.Balance{}
	for k, b := range r.s.st.balances {
		if k.clientID == clientID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *creditRepo) ListHolders(ctx context.Context, productID int) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []int
	for k, b := range r.s.st.balances {
		if k.productID == productID && b.Balance > 0 {
			out = append(out, k.clientID)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (r *creditRepo) ApplyEntry(ctx context.Context, e *credit.Entry) (*credit.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.st.entryKeys[e.IdempotencyKey]; taken {
		return nil, credit.ErrDuplicateEntry
	}

	k := balanceKey{e.ClientID, e.ProductID}
	b, ok := r.s.st.balances[k]
	if !ok || b.Balance+e.Delta < 0 {
		return nil, credit.ErrInsufficientCredit
	}

	b.Balance += e.Delta
	b.UpdatedAt = e.CreatedAt
	r.s.st.balances[k] = b

	out := *e
	out.ID = r.s.id()
	out.BalanceAfter = b.Balance
	r.s.st.entryKeys[out.IdempotencyKey] = len(r.s.st.entries)
	r.s.st.entries = append(r.s.st.entries, out)
	return &out, nil
}

func (r *creditRepo) GetEntryByKey(ctx context.Context, key string) (*credit.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	i, ok := r.s.st.entryKeys[key]
	if !ok {
		return nil, nil
	}
	e := r.s.st.entries[i]
	return &e, nil
}

func (r *creditRepo) SumAddedAfterClose(ctx context.Context, clientID, productID int, periodKey string, closedAt time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	total := 0
	for _, e := range r.s.st.entries {
		if e.ClientID != clientID || e.ProductID != productID || e.Delta <= 0 {
			continue
		}
		if e.PeriodKey != nil {
			if *e.PeriodKey > periodKey {
				total += e.Delta
			}
			continue
		}
		if !e.CreatedAt.Before(closedAt) {
			total += e.Delta
		}
	}
	return total, nil
}

func (r *creditRepo) ListEntries(ctx context.Context, clientID, productID, limit, offset int) ([]credit.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []credit.Entry{}
	for i := len(r.s.st.entries) - 1; i >= 0; i-- {
		e := r.s.st.entries[i]
		if e.ClientID == clientID && e.ProductID == productID {
			out = append(out, e)
		}
	}

	if offset >= len(out) {
		return []credit.Entry{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *creditRepo) CreateSubscription(ctx context.Context, sub *credit.Subscription) (*credit.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := *sub
	out.ID = r.s.id()
	if out.Status == "" {
		out.Status = credit.SubscriptionActive
	}
	out.CreatedAt = time.Now()
	r.s.st.subs = append(r.s.st.subs, out)
	return &out, nil
}

func (r *creditRepo) ListActiveSubscriptions(ctx context.Context, productID int, at time.Time) ([]credit.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []credit.Subscription{}
	for _, sub := range r.s.st.subs {
		if sub.ProductID == productID && sub.ActiveAt(at) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (r *creditRepo) ListSubscriptionsByClient(ctx context.Context, clientID int) ([]credit.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []credit.Subscription{}
	for i := len(r.s.st.subs) - 1; i >= 0; i-- {
		if r.s.st.subs[i].ClientID == clientID {
			out = append(out, r.s.st.subs[i])
		}
	}
	return out, nil
}
