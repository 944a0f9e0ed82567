// Package memstore keeps every repository of the engine in memory.
// It backs the engine tests and mirrors the row-level behaviour of the
// SQL repositories: unique active bookings, non-negative balances and
// unique ledger idempotency keys.
package memstore

import (
	"context"
	"sync"

	"fitclass/internal/booking"
	"fitclass/internal/class"
	"fitclass/internal/credit"
	"fitclass/internal/db"
	"fitclass/internal/submission"
)

type balanceKey struct {
	clientID  int
	productID int
}

type state struct {
	nextID      int
	templates   map[int]class.Template
	sessions    map[int]class.Session
	bookings    map[int]booking.Booking
	products    map[int]credit.Product
	balances    map[balanceKey]credit.Balance
	entries     []credit.Entry
	entryKeys   map[string]int
	subs        []credit.Subscription
	submissions map[int]submission.Submission
}

func newState() state {
	return state{
		templates:   map[int]class.Template{},
		sessions:    map[int]class.Session{},
		bookings:    map[int]booking.Booking{},
		products:    map[int]credit.Product{},
		balances:    map[balanceKey]credit.Balance{},
		entryKeys:   map[string]int{},
		submissions: map[int]submission.Submission{},
	}
}

func (s state) clone() state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.templates {
		c.templates[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	c.entries = append([]credit.Entry(nil), s.entries...)
	for k, v := range s.entryKeys {
		c.entryKeys[k] = v
	}
	c.subs = append([]credit.Subscription(nil), s.subs...)
	for k, v := range s.submissions {
		c.submissions[k] = v
	}
	return c
}

// Store is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) id() int {
	s.st.nextID++
	return s.st.nextID
}

func (s *Store) Classes() class.Repository          { return &classRepo{s: s} }
func (s *Store) Bookings() booking.Repository       { return &bookingRepo{s: s} }
func (s *Store) Credits() credit.Repository         { return &creditRepo{s: s} }
func (s *Store) Submissions() submission.Repository { return &submissionRepo{s: s} }

// BookingRepos returns a factory suitable for booking.NewService.
func (s *Store) BookingRepos() func(db.Querier) booking.Repos {
	return func(db.Querier) booking.Repos {
		return booking.Repos{Classes: s.Classes(), Bookings: s.Bookings(), Credits: s.Credits()}
	}
}

// CreditRepo returns a factory that ignores the querier.
func (s *Store) CreditRepo() func(db.Querier) credit.Repository {
	return func(db.Querier) credit.Repository { return s.Credits() }
}

// SubmissionRepos returns a factory suitable for submission.NewService.
func (s *Store) SubmissionRepos() func(db.Querier) submission.Repos {
	return func(db.Querier) submission.Repos {
		return submission.Repos{Submissions: s.Submissions(), Credits: s.Credits()}
	}
}

// UnitOfWork serializes units and restores the previous state when a unit
// fails, which is what a transaction with row locks gives the engine.
type UnitOfWork struct {
	s    *Store
	mode db.Mode
}

func (s *Store) Transactional() *UnitOfWork {
	return &UnitOfWork{s: s, mode: db.ModeTransactional}
}

// BestEffort runs units without isolation or rollback.
func (s *Store) BestEffort() *UnitOfWork {
	return &UnitOfWork{s: s, mode: db.ModeBestEffort}
}

func (u *UnitOfWork) Mode() db.Mode { return u.mode }

func (u *UnitOfWork) Run(ctx context.Context, fn func(ctx context.Context, q db.Querier) error) error {
	if u.mode == db.ModeBestEffort {
		return fn(ctx, nil)
	}

	u.s.txMu.Lock()
	defer u.s.txMu.Unlock()

	u.s.mu.Lock()
	snapshot := u.s.st.clone()
	u.s.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		u.s.mu.Lock()
		u.s.st = snapshot
		u.s.mu.Unlock()
		return err
	}
	return nil
}

// Entries returns a copy of the ledger log.
func (s *Store) Entries() []credit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]credit.Entry(nil), s.st.entries...)
}

// AllBookings returns a copy of every booking of a session.
func (s *Store) AllBookings(sessionID int) []booking.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []booking.Booking
	for _, b := range s.st.bookings {
		if b.SessionID == sessionID {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out
}
