package memstore

import (
	"context"
	"sort"
	"time"

	"fitclass/internal/submission"
)

type submissionRepo struct {
	s *Store
}

func (r *submissionRepo) Create(ctx context.Context, sub *submission.Submission) (*submission.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, other := range r.s.st.submissions {
		if other.Status == submission.StatusPending && other.ClientID == sub.ClientID &&
			other.ProductID == sub.ProductID && other.Reference == sub.Reference {
			return nil, submission.ErrDuplicatePending
		}
	}

	out := *sub
	out.ID = r.s.id()
	out.Status = submission.StatusPending
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	r.s.st.submissions[out.ID] = out
	return &out, nil
}

func (r *submissionRepo) GetByID(ctx context.Context, id int) (*submission.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.st.submissions[id]
	if !ok {
		return nil, submission.ErrSubmissionNotFound
	}
	return &sub, nil
}

func (r *submissionRepo) LockByID(ctx context.Context, id int) (*submission.Submission, error) {
	return r.GetByID(ctx, id)
}

func (r *submissionRepo) Resolve(ctx context.Context, id int, status submission.Status, reviewerID int, creditsApplied *int, at time.Time) (*submission.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.st.submissions[id]
	if !ok || sub.Status != submission.StatusPending {
		return nil, submission.ErrSubmissionNotPending
	}
	sub.Status = status
	sub.ReviewerID = &reviewerID
	sub.CreditsApplied = creditsApplied
	sub.ReviewedAt = &at
	r.s.st.submissions[id] = sub
	return &sub, nil
}

func (r *submissionRepo) ListByStatus(ctx context.Context, status submission.Status, limit, offset int) ([]submission.Submission, error) {
	return r.list(func(s submission.Submission) bool { return s.Status == status }, limit, offset), nil
}

func (r *submissionRepo) ListByClient(ctx context.Context, clientID int) ([]submission.Submission, error) {
	return r.list(func(s submission.Submission) bool { return s.ClientID == clientID }, 0, 0), nil
}

func (r *submissionRepo) list(keep func(submission.Submission) bool, limit, offset int) []submission.Submission {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []submission.Submission{}
	for _, sub := range r.s.st.submissions {
		if keep(sub) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if offset >= len(out) {
		return []submission.Submission{}
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
