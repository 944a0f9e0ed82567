package memstore

import (
	"context"
	"sort"
	"time"

	"fitclass/internal/booking"
)

type bookingRepo struct {
	s *Store
}

func sortBookings(bs []booking.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].CreatedAt.Before(bs[j].CreatedAt)
		}
		return bs[i].ID < bs[j].ID
	})
}

func (r *bookingRepo) Create(ctx context.Context, b *booking.Booking) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if b.Status.Active() {
		for _, other := range r.s.st.bookings {
			if other.SessionID == b.SessionID && other.ClientID == b.ClientID && other.Status.Active() {
				return nil, booking.ErrDuplicateActive
			}
		}
	}

	out := *b
	out.ID = r.s.id()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	out.UpdatedAt = out.CreatedAt
	r.s.st.bookings[out.ID] = out
	return &out, nil
}

func (r *bookingRepo) GetByID(ctx context.Context, id int) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.st.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return &b, nil
}

func (r *bookingRepo) LockByID(ctx context.Context, id int) (*booking.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *bookingRepo) FindActive(ctx context.Context, sessionID, clientID int) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, b := range r.s.st.bookings {
		if b.SessionID == sessionID && b.ClientID == clientID && b.Status.Active() {
			return &b, nil
		}
	}
	return nil, nil
}

func (r *bookingRepo) CountByStatus(ctx context.Context, sessionID int, status booking.Status) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, b := range r.s.st.bookings {
		if b.SessionID == sessionID && b.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *bookingRepo) NextWaitlisted(ctx context.Context, sessionID int) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var next *booking.Booking
	for _, b := range r.s.st.bookings {
		if b.SessionID != sessionID || b.Status != booking.StatusWaitlisted || b.WaitlistPosition == nil {
			continue
		}
		if next == nil || *b.WaitlistPosition < *next.WaitlistPosition ||
			(*b.WaitlistPosition == *next.WaitlistPosition && b.ID < next.ID) {
			candidate := b
			next = &candidate
		}
	}
	return next, nil
}

func (r *bookingRepo) Cancel(ctx context.Context, id int, status booking.Status, at time.Time) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.st.bookings[id]
	if !ok || !b.Status.Active() {
		return nil, booking.ErrBookingNotCancellable
	}
	b.Status = status
	b.WaitlistPosition = nil
	b.CancelledAt = &at
	b.UpdatedAt = at
	r.s.st.bookings[id] = b
	return &b, nil
}

func (r *bookingRepo) Promote(ctx context.Context, id int, productID *int, credits int, at time.Time) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.st.bookings[id]
	if !ok || b.Status != booking.StatusWaitlisted {
		return nil, booking.ErrNotWaitlisted
	}
	b.Status = booking.StatusBooked
	b.WaitlistPosition = nil
	b.CreditProductID = productID
	b.CreditsCharged = credits
	b.UpdatedAt = at
	r.s.st.bookings[id] = b
	return &b, nil
}

func (r *bookingRepo) CompactWaitlist(ctx context.Context, sessionID, above int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, b := range r.s.st.bookings {
		if b.SessionID == sessionID && b.Status == booking.StatusWaitlisted && b.WaitlistPosition != nil && *b.WaitlistPosition > above {
			pos := *b.WaitlistPosition - 1
			b.WaitlistPosition = &pos
			r.s.st.bookings[id] = b
		}
	}
	return nil
}

func (r *bookingRepo) MarkAttendance(ctx context.Context, id int, status booking.Status, at time.Time) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.st.bookings[id]
	if !ok || b.Status != booking.StatusBooked {
		return nil, booking.ErrAttendanceNotAllowed
	}
	b.Status = status
	b.AttendanceMarkedAt = &at
	b.UpdatedAt = at
	r.s.st.bookings[id] = b
	return &b, nil
}

func (r *bookingRepo) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.st.bookings, id)
	return nil
}

func (r *bookingRepo) ListByClient(ctx context.Context, clientID, limit, offset int) ([]booking.BookingWithSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []booking.BookingWithSession{}
	for _, b := range r.s.st.bookings {
		if b.ClientID != clientID {
			continue
		}
		sess := r.s.st.sessions[b.SessionID]
		t := r.s.st.templates[sess.TemplateID]
		out = append(out, booking.BookingWithSession{
			Booking:        b,
			ClassName:      t.Name,
			Location:       t.Location,
			SessionStartAt: sess.StartsAt,
			SessionEndAt:   sess.EndsAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionStartAt.After(out[j].SessionStartAt) })

	if offset >= len(out) {
		return []booking.BookingWithSession{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *bookingRepo) ListBySession(ctx context.Context, sessionID int) ([]booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []booking.Booking{}
	for _, b := range r.s.st.bookings {
		if b.SessionID == sessionID {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}
