package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitclass/internal/credit"
	"fitclass/internal/db"
	"fitclass/internal/events"
	"fitclass/internal/logger"
	"fitclass/internal/metrics"
)

var (
	ErrProductNotAvailable = errors.New("credit product cannot be claimed")
	ErrInvalidAction       = errors.New("review action must be APPROVE or REJECT")
)

type Repos struct {
	Submissions Repository
	Credits     credit.Repository
}

func SQLRepos(q db.Querier) Repos {
	return Repos{
		Submissions: NewRepository(q),
		Credits:     credit.NewRepository(q),
	}
}

type Config struct {
	Location *time.Location
	Now      func() time.Time
}

type Service interface {
	Submit(ctx context.Context, clientID int, req SubmitRequest) (*Submission, error)
	Review(ctx context.Context, submissionID int, action Action, reviewerID int) (*Submission, error)
	ListPending(ctx context.Context, limit, offset int) ([]Submission, error)
	ListByClient(ctx context.Context, clientID int) ([]Submission, error)
}

type service struct {
	uow        db.UnitOfWork
	repos      func(db.Querier) Repos
	dispatcher *events.Dispatcher
	loc        *time.Location
	now        func() time.Time
}

func NewService(uow db.UnitOfWork, repos func(db.Querier) Repos, dispatcher *events.Dispatcher, cfg Config) Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &service{
		uow:        uow,
		repos:      repos,
		dispatcher: dispatcher,
		loc:        cfg.Location,
		now:        cfg.Now,
	}
}

func (s *service) Submit(ctx context.Context, clientID int, req SubmitRequest) (*Submission, error) {
	var out *Submission
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		r := s.repos(q)

		p, err := r.Credits.GetProduct(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if !p.IsActive || p.PurchaseRestricted {
			return ErrProductNotAvailable
		}

		out, err = r.Submissions.Create(ctx, &Submission{
			ClientID:  clientID,
			ProductID: req.ProductID,
			Reference: req.Reference,
			Note:      req.Note,
			Status:    StatusPending,
			CreatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("credit submission received",
		"submission_id", out.ID,
		"client_id", clientID,
		"product_id", req.ProductID,
	)
	return out, nil
}

// Review approves or rejects a pending submission. Approval grants the
// product's per-purchase credits once; a retry after a partial failure
// finds the grant already recorded and only finishes the status change.
func (s *service) Review(ctx context.Context, submissionID int, action Action, reviewerID int) (*Submission, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, ErrInvalidAction
	}

	var out *Submission
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		r := s.repos(q)

		sub, err := r.Submissions.LockByID(ctx, submissionID)
		if err != nil {
			return err
		}
		if sub.Status != StatusPending {
			return ErrSubmissionNotPending
		}

		if action == ActionReject {
			out, err = r.Submissions.Resolve(ctx, sub.ID, StatusRejected, reviewerID, nil, s.now())
			return err
		}

		p, err := r.Credits.GetProduct(ctx, sub.ProductID)
		if err != nil {
			return err
		}
		if p.CreditsPerPeriod == nil || *p.CreditsPerPeriod <= 0 {
			return fmt.Errorf("%w: product %d has no credit amount", credit.ErrInvalidProduct, p.ID)
		}
		amount := *p.CreditsPerPeriod

		ledger := credit.NewLedger(r.Credits, s.loc, s.now)
		if _, err := ledger.GrantForSubmission(ctx, sub.ClientID, sub.ProductID, amount, sub.ID); err != nil && !errors.Is(err, credit.ErrDuplicateGrant) {
			return err
		}

		out, err = r.Submissions.Resolve(ctx, sub.ID, StatusApproved, reviewerID, &amount, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSubmissionReview(string(action))

	applied := 0
	if out.CreditsApplied != nil {
		applied = *out.CreditsApplied
	}
	logger.Info("credit submission reviewed",
		"submission_id", out.ID,
		"decision", out.Status,
		"reviewer_id", reviewerID,
		"credits_applied", applied,
	)

	s.dispatcher.Audit(ctx, events.NewAuditEvent(reviewerID, events.SubmissionReviewed{
		SubmissionID:   out.ID,
		ClientID:       out.ClientID,
		ProductID:      out.ProductID,
		Decision:       string(out.Status),
		CreditsApplied: applied,
	}, s.now()))

	return out, nil
}

func (s *service) ListPending(ctx context.Context, limit, offset int) ([]Submission, error) {
	var out []Submission
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		out, err = s.repos(q).Submissions.ListByStatus(ctx, StatusPending, limit, offset)
		return err
	})
	return out, err
}

func (s *service) ListByClient(ctx context.Context, clientID int) ([]Submission, error) {
	var out []Submission
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		out, err = s.repos(q).Submissions.ListByClient(ctx, clientID)
		return err
	})
	return out, err
}
