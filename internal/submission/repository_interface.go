package submission

import (
	"context"
	"time"
)

type Repository interface {
	// Create returns ErrDuplicatePending when the same claim is already waiting for review.
	Create(ctx context.Context, s *Submission) (*Submission, error)
	GetByID(ctx context.Context, id int) (*Submission, error)
	LockByID(ctx context.Context, id int) (*Submission, error)
	// Resolve moves a PENDING submission to status.
	Resolve(ctx context.Context, id int, status Status, reviewerID int, creditsApplied *int, at time.Time) (*Submission, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Submission, error)
	ListByClient(ctx context.Context, clientID int) ([]Submission, error)
}
