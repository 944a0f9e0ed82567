package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fitclass/internal/db"
)

var (
	ErrSubmissionNotFound   = errors.New("credit submission not found")
	ErrSubmissionNotPending = errors.New("credit submission is not pending")
	ErrDuplicatePending     = errors.New("an identical credit submission is already pending")
)

const submissionColumns = `id, client_id, product_id, reference, note, status, reviewer_id, reviewed_at, credits_applied, created_at`

type repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &repository{db: q}
}

func (r *repository) Create(ctx context.Context, s *Submission) (*Submission, error) {
	var out Submission
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO credit_submissions (client_id, product_id, reference, note, status, created_at)
		VALUES ($1, $2, $3, $4, 'PENDING', $5)
		RETURNING `+submissionColumns,
		s.ClientID, s.ProductID, s.Reference, s.Note, s.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicatePending
		}
		return nil, fmt.Errorf("insert credit submission: %w", err)
	}
	return &out, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Submission, error) {
	return r.get(ctx, `SELECT `+submissionColumns+` FROM credit_submissions WHERE id = $1`, id)
}

func (r *repository) LockByID(ctx context.Context, id int) (*Submission, error) {
	return r.get(ctx, `SELECT `+submissionColumns+` FROM credit_submissions WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) get(ctx context.Context, query string, args ...interface{}) (*Submission, error) {
	var s Submission
	err := r.db.GetContext(ctx, &s, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credit submission: %w", err)
	}
	return &s, nil
}

func (r *repository) Resolve(ctx context.Context, id int, status Status, reviewerID int, creditsApplied *int, at time.Time) (*Submission, error) {
	s, err := r.get(ctx, `
		UPDATE credit_submissions
		SET status = $2, reviewer_id = $3, credits_applied = $4, reviewed_at = $5
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+submissionColumns,
		id, status, reviewerID, creditsApplied, at,
	)
	if errors.Is(err, ErrSubmissionNotFound) {
		return nil, ErrSubmissionNotPending
	}
	return s, err
}

func (r *repository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Submission, error) {
	if limit <= 0 {
		limit = 50
	}

	subs := []Submission{}
	err := r.db.SelectContext(ctx, &subs, `
		SELECT `+submissionColumns+`
		FROM credit_submissions
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`,
		status, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list credit submissions: %w", err)
	}
	return subs, nil
}

func (r *repository) ListByClient(ctx context.Context, clientID int) ([]Submission, error) {
	subs := []Submission{}
	err := r.db.SelectContext(ctx, &subs,
		`SELECT `+submissionColumns+` FROM credit_submissions WHERE client_id = $1 ORDER BY created_at DESC`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credit submissions of client %d: %w", clientID, err)
	}
	return subs, nil
}
