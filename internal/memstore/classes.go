package memstore

import (
	"context"
	"sort"
	"time"

	"fitclass/internal/booking"
	"fitclass/internal/class"
)

type classRepo struct {
	s *Store
}

func (r *classRepo) CreateTemplate(ctx context.Context, t *class.Template) (*class.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := *t
	out.ID = r.s.id()
	if out.Visibility == "" {
		out.Visibility = class.VisibilityFacility
	}
	now := time.Now()
	out.CreatedAt, out.UpdatedAt = now, now
	r.s.st.templates[out.ID] = out
	return &out, nil
}

func (r *classRepo) GetTemplateByID(ctx context.Context, id int) (*class.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.st.templates[id]
	if !ok {
		return nil, class.ErrTemplateNotFound
	}
	return &t, nil
}

func (r *classRepo) ListTemplates(ctx context.Context, coachID *int) ([]class.Template, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []class.Template{}
	for _, t := range r.s.st.templates {
		if coachID == nil || t.CoachID == *coachID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *classRepo) SetTemplateActive(ctx context.Context, id int, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.st.templates[id]
	if !ok {
		return class.ErrTemplateNotFound
	}
	t.IsActive = active
	r.s.st.templates[id] = t
	return nil
}

func (r *classRepo) CreateSession(ctx context.Context, sess *class.Session) (*class.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.templates[sess.TemplateID]; !ok {
		return nil, class.ErrTemplateNotFound
	}
	if !sess.EndsAt.After(sess.StartsAt) {
		return nil, class.ErrSessionInvalid
	}

	out := *sess
	out.ID = r.s.id()
	if out.Status == "" {
		out.Status = class.SessionScheduled
	}
	out.CreatedAt = time.Now()
	r.s.st.sessions[out.ID] = out
	return &out, nil
}

func (r *classRepo) GetSessionByID(ctx context.Context, id int) (*class.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.st.sessions[id]
	if !ok {
		return nil, class.ErrSessionNotFound
	}
	return &sess, nil
}

func (r *classRepo) LockSession(ctx context.Context, id int) (*class.Session, error) {
	return r.GetSessionByID(ctx, id)
}

func (r *classRepo) UpdateSessionStatus(ctx context.Context, id int, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sess, ok := r.s.st.sessions[id]
	if !ok {
		return class.ErrSessionNotFound
	}
	sess.Status = status
	r.s.st.sessions[id] = sess
	return nil
}

func (r *classRepo) ListUpcomingSessions(ctx context.Context, from time.Time, limit int) ([]class.SessionListing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	out := []class.SessionListing{}
	for _, sess := range r.s.st.sessions {
		if sess.StartsAt.Before(from) || sess.Status != class.SessionScheduled {
			continue
		}
		t := r.s.st.templates[sess.TemplateID]
		l := class.SessionListing{
			Session:          sess,
			ClassName:        t.Name,
			Location:         t.Location,
			TemplateActive:   t.IsActive,
			WaitlistEnabled:  t.WaitlistEnabled,
			TemplateCapacity: t.Capacity,
		}
		for _, b := range r.s.st.bookings {
			if b.SessionID != sess.ID {
				continue
			}
			switch b.Status {
			case booking.StatusBooked:
				l.BookedCount++
			case booking.StatusWaitlisted:
				l.WaitlistCount++
			}
		}
		out = append(out, l)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
