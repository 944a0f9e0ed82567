// Package cycle runs the monthly credit top-up and expiry for periodic
// credit products. It is triggered from outside, by cmd/creditcycle or the
// admin endpoint, and is safe to re-run for the same period.
package cycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fitclass/internal/credit"
	"fitclass/internal/db"
	"fitclass/internal/events"
	"fitclass/internal/logger"
	"fitclass/internal/metrics"
)

const (
	StageProduct = "product"
	StageGrant   = "grant"
	StageExpire  = "expire"

	defaultConcurrency = 4
)

type Failure struct {
	ProductID int    `json:"product_id"`
	ClientID  int    `json:"client_id,omitempty"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
}

type Report struct {
	RunID             string    `json:"run_id"`
	PeriodKey         string    `json:"period_key"`
	ExpiredPeriodKey  string    `json:"expired_period_key"`
	ProductsProcessed int       `json:"products_processed"`
	GrantsIssued      int       `json:"grants_issued"`
	CreditsExpired    int       `json:"credits_expired"`
	ClientsExpired    int       `json:"clients_expired"`
	Failures          []Failure `json:"failures"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Status is "ok" when nothing failed and "partial" otherwise.
func (r *Report) Status() string {
	if len(r.Failures) == 0 {
		return "ok"
	}
	return "partial"
}

type Config struct {
	Location    *time.Location
	Concurrency int
	Now         func() time.Time
}

type Job struct {
	uow         db.UnitOfWork
	repo        func(db.Querier) credit.Repository
	dispatcher  *events.Dispatcher
	loc         *time.Location
	concurrency int
	now         func() time.Time
}

func NewJob(uow db.UnitOfWork, repo func(db.Querier) credit.Repository, dispatcher *events.Dispatcher, cfg Config) *Job {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Job{
		uow:         uow,
		repo:        repo,
		dispatcher:  dispatcher,
		loc:         cfg.Location,
		concurrency: cfg.Concurrency,
		now:         cfg.Now,
	}
}

// productResult is what one product contributes to the report.
type productResult struct {
	grants         int
	creditsExpired int
	clientsExpired int
	failures       []Failure
}

// Run grants the period of runAt to every active subscriber of each monthly
// product and expires what is left of the previous period. Products are
// processed independently; a failing product or client is reported and the
// run carries on. Only a failure to list the products fails the run.
func (j *Job) Run(ctx context.Context, runAt time.Time) (*Report, error) {
	start := j.now()

	periodKey := credit.PeriodKey(runAt, j.loc)
	prevKey, err := credit.PreviousPeriodKey(periodKey, j.loc)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:            uuid.NewString(),
		PeriodKey:        periodKey,
		ExpiredPeriodKey: prevKey,
		Failures:         []Failure{},
		StartedAt:        start,
	}

	var products []credit.Product
	err = j.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		products, err = j.repo(q).ListActivePeriodicProducts(ctx)
		return err
	})
	if err != nil {
		metrics.RecordCycleRun("failed", j.now().Sub(start).Seconds())
		logger.Error("credit cycle aborted", "run_id", report.RunID, "error", err)
		return nil, err
	}

	logger.Info("credit cycle started",
		"run_id", report.RunID,
		"period", periodKey,
		"expiring_period", prevKey,
		"products", len(products),
	)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(j.concurrency)

	for _, p := range products {
		p := p
		g.Go(func() error {
			res := j.processProduct(ctx, p, runAt, periodKey, prevKey, report.RunID)

			mu.Lock()
			defer mu.Unlock()
			report.ProductsProcessed++
			report.GrantsIssued += res.grants
			report.CreditsExpired += res.creditsExpired
			report.ClientsExpired += res.clientsExpired
			report.Failures = append(report.Failures, res.failures...)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Failures, func(a, b int) bool {
		fa, fb := report.Failures[a], report.Failures[b]
		if fa.ProductID != fb.ProductID {
			return fa.ProductID < fb.ProductID
		}
		return fa.ClientID < fb.ClientID
	})
	report.FinishedAt = j.now()

	metrics.RecordCycleRun(report.Status(), report.FinishedAt.Sub(start).Seconds())
	logger.Info("credit cycle finished",
		"run_id", report.RunID,
		"products", report.ProductsProcessed,
		"grants", report.GrantsIssued,
		"credits_expired", report.CreditsExpired,
		"failures", len(report.Failures),
	)

	j.dispatcher.Audit(ctx, events.NewAuditEvent(0, events.CycleRun{
		RunID:             report.RunID,
		PeriodKey:         report.PeriodKey,
		ProductsProcessed: report.ProductsProcessed,
		GrantsIssued:      report.GrantsIssued,
		CreditsExpired:    report.CreditsExpired,
		Failures:          len(report.Failures),
	}, report.FinishedAt))

	return report, nil
}

func (j *Job) processProduct(ctx context.Context, p credit.Product, runAt time.Time, periodKey, prevKey, runID string) productResult {
	var res productResult

	fail := func(clientID int, stage string, err error) {
		res.failures = append(res.failures, Failure{ProductID: p.ID, ClientID: clientID, Stage: stage, Error: err.Error()})
		logger.Warn("credit cycle step failed",
			"run_id", runID,
			"product_id", p.ID,
			"client_id", clientID,
			"stage", stage,
			"error", err,
		)
	}

	if p.CreditsPerPeriod == nil || *p.CreditsPerPeriod <= 0 {
		fail(0, StageProduct, credit.ErrInvalidProduct)
		return res
	}
	amount := *p.CreditsPerPeriod

	var (
		subs    []credit.Subscription
		holders []int
	)
	err := j.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		repo := j.repo(q)
		var err error
		if subs, err = repo.ListActiveSubscriptions(ctx, p.ID, runAt); err != nil {
			return err
		}
		holders, err = repo.ListHolders(ctx, p.ID)
		return err
	})
	if err != nil {
		fail(0, StageProduct, err)
		return res
	}

	for _, sub := range subs {
		var granted bool
		err := j.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
			var err error
			granted, err = j.ledger(q).GrantPeriodic(ctx, sub.ClientID, p.ID, amount, periodKey)
			return err
		})
		if err != nil {
			fail(sub.ClientID, StageGrant, err)
			continue
		}
		if granted {
			res.grants++
		}
	}

	// Clients whose subscription ended still lose last period's leftovers.
	for _, clientID := range expiryClients(subs, holders) {
		var expired int
		err := j.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
			var err error
			expired, err = j.ledger(q).ExpireUnusedForClient(ctx, clientID, p.ID, prevKey, runAt, runID)
			return err
		})
		if err != nil {
			fail(clientID, StageExpire, err)
			continue
		}
		if expired > 0 {
			res.creditsExpired += expired
			res.clientsExpired++
		}
	}

	return res
}

func (j *Job) ledger(q db.Querier) *credit.Ledger {
	return credit.NewLedger(j.repo(q), j.loc, j.now)
}

func expiryClients(subs []credit.Subscription, holders []int) []int {
	seen := make(map[int]bool, len(subs)+len(holders))
	var out []int
	for _, s := range subs {
		if !seen[s.ClientID] {
			seen[s.ClientID] = true
			out = append(out, s.ClientID)
		}
	}
	for _, id := range holders {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
