package class

import (
	"context"
	"errors"
	"time"

	"fitclass/internal/policy"
)

var (
	ErrTemplateInvalid = errors.New("invalid class template")
	ErrSessionInvalid  = errors.New("invalid class session")
)

type Service interface {
	CreateTemplate(ctx context.Context, coachID int, req CreateTemplateRequest) (*Template, error)
	ListTemplates(ctx context.Context, coachID *int) ([]Template, error)
	SetTemplateActive(ctx context.Context, id int, active bool) error
	CreateSession(ctx context.Context, templateID int, req CreateSessionRequest) (*Session, error)
	UpdateSessionStatus(ctx context.Context, id int, status string) error
	ListUpcomingSessions(ctx context.Context, limit int) ([]SessionListing, error)
}

type service struct {
	repo     Repository
	defaults policy.Defaults
	now      func() time.Time
}

func NewService(repo Repository, defaults policy.Defaults, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     repo,
		defaults: defaults,
		now:      now,
	}
}

func (s *service) CreateTemplate(ctx context.Context, coachID int, req CreateTemplateRequest) (*Template, error) {
	visibility := req.Visibility
	if visibility == "" {
		visibility = VisibilityFacility
	}
	if visibility == VisibilityCohort && req.CohortID == nil {
		return nil, ErrTemplateInvalid
	}
	if req.CreditsRequired < 0 {
		return nil, ErrTemplateInvalid
	}

	return s.repo.CreateTemplate(ctx, &Template{
		CoachID:              coachID,
		Name:                 req.Name,
		ClassType:            req.ClassType,
		Visibility:           visibility,
		CohortID:             req.CohortID,
		Location:             req.Location,
		Capacity:             req.Capacity,
		WaitlistEnabled:      req.WaitlistEnabled,
		WaitlistCapacity:     req.WaitlistCapacity,
		BookingOpensHours:    req.BookingOpensHours,
		BookingClosesMinutes: req.BookingClosesMinutes,
		CancelCutoffMinutes:  req.CancelCutoffMinutes,
		CreditsRequired:      req.CreditsRequired,
		CreditProductID:      req.CreditProductID,
		IsActive:             true,
	})
}

func (s *service) ListTemplates(ctx context.Context, coachID *int) ([]Template, error) {
	return s.repo.ListTemplates(ctx, coachID)
}

func (s *service) SetTemplateActive(ctx context.Context, id int, active bool) error {
	return s.repo.SetTemplateActive(ctx, id, active)
}

func (s *service) CreateSession(ctx context.Context, templateID int, req CreateSessionRequest) (*Session, error) {
	if _, err := s.repo.GetTemplateByID(ctx, templateID); err != nil {
		return nil, err
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	if !endsAt.After(startsAt) {
		return nil, ErrSessionInvalid
	}

	if req.CapacityOverride != nil && *req.CapacityOverride <= 0 {
		return nil, ErrSessionInvalid
	}

	return s.repo.CreateSession(ctx, &Session{
		TemplateID:       templateID,
		StartsAt:         startsAt,
		EndsAt:           endsAt,
		CapacityOverride: req.CapacityOverride,
		InstructorID:     req.InstructorID,
		Status:           SessionScheduled,
	})
}

func (s *service) UpdateSessionStatus(ctx context.Context, id int, status string) error {
	switch status {
	case SessionScheduled, SessionCancelled, SessionCompleted:
	default:
		return ErrSessionInvalid
	}

	session, err := s.repo.GetSessionByID(ctx, id)
	if err != nil {
		return err
	}
	// CANCELLED and COMPLETED are final.
	if session.Status != SessionScheduled && session.Status != status {
		return ErrSessionInvalid
	}

	return s.repo.UpdateSessionStatus(ctx, id, status)
}

func (s *service) ListUpcomingSessions(ctx context.Context, limit int) ([]SessionListing, error) {
	listings, err := s.repo.ListUpcomingSessions(ctx, s.now(), limit)
	if err != nil {
		return nil, err
	}

	out := listings[:0]
	for _, l := range listings {
		if !l.TemplateActive {
			continue
		}
		p := policy.Resolve(policy.TemplatePolicy{Capacity: l.TemplateCapacity}, s.defaults)
		l.Capacity = policy.EffectiveCapacity(p, l.CapacityOverride)
		l.Available = l.Capacity - l.BookedCount
		if l.Available < 0 {
			l.Available = 0
		}
		l.IsFull = l.Available == 0
		out = append(out, l)
	}

	return out, nil
}
