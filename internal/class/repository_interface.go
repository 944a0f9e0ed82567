package class

import (
	"context"
	"time"
)

type Repository interface {
	CreateTemplate(ctx context.Context, t *Template) (*Template, error)
	GetTemplateByID(ctx context.Context, id int) (*Template, error)
	ListTemplates(ctx context.Context, coachID *int) ([]Template, error)
	SetTemplateActive(ctx context.Context, id int, active bool) error
	CreateSession(ctx context.Context, s *Session) (*Session, error)
	GetSessionByID(ctx context.Context, id int) (*Session, error)
	// LockSession loads the session and holds a row lock until the unit of work ends.
	LockSession(ctx context.Context, id int) (*Session, error)
	UpdateSessionStatus(ctx context.Context, id int, status string) error
	ListUpcomingSessions(ctx context.Context, from time.Time, limit int) ([]SessionListing, error)
}
