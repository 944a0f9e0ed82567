package booking

import (
	"context"
	"errors"
	"time"

	"fitclass/internal/class"
	"fitclass/internal/credit"
	"fitclass/internal/db"
	"fitclass/internal/events"
	"fitclass/internal/logger"
	"fitclass/internal/metrics"
	"fitclass/internal/policy"
)

// Repos are the repositories one unit of work operates on.
type Repos struct {
	Classes  class.Repository
	Bookings Repository
	Credits  credit.Repository
}

// SQLRepos builds Repos on top of q.
func SQLRepos(q db.Querier) Repos {
	return Repos{
		Classes:  class.NewRepository(q),
		Bookings: NewRepository(q),
		Credits:  credit.NewRepository(q),
	}
}

type Config struct {
	Defaults policy.Defaults
	Location *time.Location
	Now      func() time.Time
}

type Service interface {
	BookClientIntoSession(ctx context.Context, req BookRequest) (*BookResult, error)
	CancelBooking(ctx context.Context, bookingID, actorID int) (*CancelResult, error)
	MarkAttendance(ctx context.Context, bookingID int, status Status, actorID int) (*Booking, error)
	GetByID(ctx context.Context, id int) (*Booking, error)
	ListClientBookings(ctx context.Context, clientID, limit, offset int) ([]BookingWithSession, error)
	ListSessionBookings(ctx context.Context, sessionID int) ([]Booking, error)
}

type service struct {
	uow        db.UnitOfWork
	repos      func(db.Querier) Repos
	dispatcher *events.Dispatcher
	defaults   policy.Defaults
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
		defaults:   cfg.Defaults,
		loc:        cfg.Location,
		now:        cfg.Now,
	}
}

func (s *service) ledger(r Repos) *credit.Ledger {
	return credit.NewLedger(r.Credits, s.loc, s.now)
}

func (s *service) BookClientIntoSession(ctx context.Context, req BookRequest) (*BookResult, error) {
	if req.Source == "" {
		req.Source = SourceClient
	}

	var (
		res  *BookResult
		sess *class.Session
		tpl  *class.Template
	)

	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		r := s.repos(q)
		res = nil

		var err error
		sess, tpl, err = s.loadForUpdate(ctx, r, req.SessionID)
		if err != nil {
			return err
		}
		if sess.Status != class.SessionScheduled || !tpl.IsActive {
			return ErrSessionNotBookable
		}

		p := policy.Resolve(tpl.Policy(), s.defaults)
		now := s.now()

		if req.EnforceBookingWindow && !policy.IsBookingOpen(now, sess.StartsAt, p) {
			return ErrBookingWindowClosed
		}

		existing, err := r.Bookings.FindActive(ctx, sess.ID, req.ClientID)
		if err != nil {
			return err
		}
		if existing != nil {
			res = &BookResult{Result: ResultAlreadyExists, Booking: existing}
			return nil
		}

		booked, err := r.Bookings.CountByStatus(ctx, sess.ID, StatusBooked)
		if err != nil {
			return err
		}

		if booked < policy.EffectiveCapacity(p, sess.CapacityOverride) {
			b, err := s.reserveSeat(ctx, r, tpl, req, now)
			if err != nil {
				return err
			}
			res = &BookResult{Result: ResultBooked, Booking: b}
			return nil
		}

		if tpl.WaitlistEnabled {
			waiting, err := r.Bookings.CountByStatus(ctx, sess.ID, StatusWaitlisted)
			if err != nil {
				return err
			}
			if policy.CanJoinWaitlist(waiting, p) {
				pos := waiting + 1
				b, err := r.Bookings.Create(ctx, &Booking{
					SessionID:        sess.ID,
					ClientID:         req.ClientID,
					Status:           StatusWaitlisted,
					WaitlistPosition: &pos,
					Source:           req.Source,
					CreatedAt:        now,
				})
				if err != nil {
					return err
				}
				res = &BookResult{Result: ResultWaitlisted, Booking: b}
				return nil
			}
		}

		return ErrSessionFull
	})

	if errors.Is(err, ErrDuplicateActive) {
		// Lost a race against the same client's concurrent request.
		res, err = s.existingResult(ctx, req.SessionID, req.ClientID)
	}
	if err != nil {
		metrics.RecordBooking(errorKind(err), string(req.Source))
		return nil, err
	}

	metrics.RecordBooking(string(res.Result), string(req.Source))
	if res.Result == ResultAlreadyExists {
		return res, nil
	}

	logger.Info("booking created",
		"booking_id", res.Booking.ID,
		"session_id", req.SessionID,
		"client_id", req.ClientID,
		"result", res.Result,
		"source", req.Source,
		"mode", s.uow.Mode(),
	)

	s.dispatcher.Audit(ctx, events.NewAuditEvent(req.ActorID, events.BookingCreated{
		BookingID:        res.Booking.ID,
		SessionID:        req.SessionID,
		ClientID:         req.ClientID,
		Result:           string(res.Result),
		Source:           string(req.Source),
		WaitlistPosition: res.Booking.WaitlistPosition,
		CreditsCharged:   res.Booking.CreditsCharged,
	}, s.now()))

	kind := events.NotifyBookingConfirmed
	if res.Result == ResultWaitlisted {
		kind = events.NotifyWaitlistJoined
	}
	n := events.NewNotification(kind, req.ClientID, tpl.Name, sess.StartsAt, s.loc.String())
	n.WaitlistPosition = res.Booking.WaitlistPosition
	s.dispatcher.Notify(ctx, n)

	return res, nil
}

func (s *service) existingResult(ctx context.Context, sessionID, clientID int) (*BookResult, error) {
	var res *BookResult
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		existing, err := s.repos(q).Bookings.FindActive(ctx, sessionID, clientID)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrDuplicateActive
		}
		res = &BookResult{Result: ResultAlreadyExists, Booking: existing}
		return nil
	})
	return res, err
}

func (s *service) loadForUpdate(ctx context.Context, r Repos, sessionID int) (*class.Session, *class.Template, error) {
	sess, err := r.Classes.LockSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	tpl, err := r.Classes.GetTemplateByID(ctx, sess.TemplateID)
	if errors.Is(err, class.ErrTemplateNotFound) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return sess, tpl, nil
}

// reserveSeat creates a BOOKED row and consumes its credits. The ledger
// entry is keyed by the booking id, so the row is written first.
func (s *service) reserveSeat(ctx context.Context, r Repos, tpl *class.Template, req BookRequest, now time.Time) (*Booking, error) {
	charge := tpl.CreditsRequired
	if req.SkipCreditValidation {
		charge = 0
	}

	ledger := s.ledger(r)

	var productID *int
	if charge > 0 {
		pid, err := s.chargeProduct(ctx, ledger, tpl, req.ClientID, charge)
		if err != nil {
			return nil, err
		}
		productID = &pid
	}

	b, err := r.Bookings.Create(ctx, &Booking{
		SessionID:       req.SessionID,
		ClientID:        req.ClientID,
		Status:          StatusBooked,
		Source:          req.Source,
		CreditProductID: productID,
		CreditsCharged:  charge,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	if charge > 0 {
		if _, err := ledger.Consume(ctx, req.ClientID, *productID, charge, b.ID); err != nil {
			s.compensate(ctx, func() error { return r.Bookings.Delete(ctx, b.ID) }, "booking_id", b.ID)
			return nil, err
		}
	}

	return b, nil
}

// chargeProduct picks the product a booking of tpl is paid from.
func (s *service) chargeProduct(ctx context.Context, ledger *credit.Ledger, tpl *class.Template, clientID, amount int) (int, error) {
	if tpl.CreditProductID != nil {
		return *tpl.CreditProductID, nil
	}
	p, err := ledger.SelectProduct(ctx, clientID, tpl.CoachID, amount)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// compensate undoes a write in best-effort mode. A transaction rolls it back instead.
func (s *service) compensate(ctx context.Context, undo func() error, args ...any) {
	if s.uow.Mode() != db.ModeBestEffort {
		return
	}
	if err := undo(); err != nil {
		logger.Error("best-effort compensation failed", append(args, "error", err)...)
	}
}

func (s *service) CancelBooking(ctx context.Context, bookingID, actorID int) (*CancelResult, error) {
	var (
		res      *CancelResult
		sess     *class.Session
		tpl      *class.Template
		refunded int
		withdrew bool
	)

	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		r := s.repos(q)
		res = &CancelResult{Promoted: []Booking{}}
		refunded = 0

		current, err := r.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}

		// Session before booking, the same order booking and promotion take.
		sess, tpl, err = s.loadForUpdate(ctx, r, current.SessionID)
		if err != nil {
			return err
		}

		b, err := r.Bookings.LockByID(ctx, bookingID)
		if err != nil {
			return err
		}

		if b.Status.Cancelled() {
			res.Booking = b
			res.AlreadyCancelled = true
			res.LateCancel = b.Status == StatusLateCancel
			return nil
		}
		if !b.Status.Active() {
			return ErrBookingNotCancellable
		}

		p := policy.Resolve(tpl.Policy(), s.defaults)
		now := s.now()

		wasBooked := b.Status == StatusBooked
		withdrew = !wasBooked
		late := wasBooked && policy.IsLateCancel(now, sess.StartsAt, p)

		status := StatusCancelled
		if late {
			status = StatusLateCancel
		}

		cancelled, err := r.Bookings.Cancel(ctx, b.ID, status, now)
		if err != nil {
			return err
		}
		res.Booking = cancelled
		res.LateCancel = late

		if !wasBooked {
			if b.WaitlistPosition != nil {
				return r.Bookings.CompactWaitlist(ctx, sess.ID, *b.WaitlistPosition)
			}
			return nil
		}

		ledger := s.ledger(r)
		if b.CreditsCharged > 0 && b.CreditProductID != nil && (!late || !p.LateCancelForfeitsCredit) {
			if _, err := ledger.Refund(ctx, b.ClientID, *b.CreditProductID, b.CreditsCharged, b.ID); err != nil {
				return err
			}
			refunded = b.CreditsCharged
		}

		if sess.Status != class.SessionScheduled {
			return nil
		}

		booked, err := r.Bookings.CountByStatus(ctx, sess.ID, StatusBooked)
		if err != nil {
			return err
		}
		if booked >= policy.EffectiveCapacity(p, sess.CapacityOverride) {
			return nil
		}

		promoted, promotionErr, err := s.promoteNext(ctx, r, ledger, sess, tpl, now)
		if err != nil {
			return err
		}
		res.PromotionError = promotionErr
		if promoted != nil {
			res.Promoted = append(res.Promoted, *promoted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.AlreadyCancelled {
		return res, nil
	}

	kind := "on_time"
	switch {
	case res.LateCancel:
		kind = "late"
	case withdrew:
		kind = "waitlist"
	}
	metrics.RecordBookingCancellation(kind)

	logger.Info("booking cancelled",
		"booking_id", res.Booking.ID,
		"session_id", res.Booking.SessionID,
		"status", res.Booking.Status,
		"late_cancel", res.LateCancel,
		"credits_refunded", refunded,
		"promoted", len(res.Promoted),
	)

	s.dispatcher.Audit(ctx, events.NewAuditEvent(actorID, events.BookingCancelled{
		BookingID:       res.Booking.ID,
		SessionID:       res.Booking.SessionID,
		ClientID:        res.Booking.ClientID,
		Status:          string(res.Booking.Status),
		LateCancel:      res.LateCancel,
		CreditsRefunded: refunded,
		PromotedCount:   len(res.Promoted),
		PromotionFailed: res.PromotionError != nil,
	}, s.now()))

	n := events.NewNotification(events.NotifyBookingCancelled, res.Booking.ClientID, tpl.Name, sess.StartsAt, s.loc.String())
	n.LateCancel = res.LateCancel
	s.dispatcher.Notify(ctx, n)

	for _, pb := range res.Promoted {
		s.dispatcher.Audit(ctx, events.NewAuditEvent(actorID, events.BookingPromoted{
			BookingID:      pb.ID,
			SessionID:      pb.SessionID,
			ClientID:       pb.ClientID,
			FreedBy:        res.Booking.ID,
			CreditsCharged: pb.CreditsCharged,
		}, s.now()))
		s.dispatcher.Notify(ctx, events.NewNotification(events.NotifyWaitlistPromoted, pb.ClientID, tpl.Name, sess.StartsAt, s.loc.String()))
	}

	return res, nil
}

// promoteNext moves the first waitlisted booking into the freed seat.
// A candidate who cannot pay stays WAITLISTED; that failure is returned
// as promotionErr and does not abort the unit of work.
func (s *service) promoteNext(ctx context.Context, r Repos, ledger *credit.Ledger, sess *class.Session, tpl *class.Template, now time.Time) (promoted *Booking, promotionErr error, err error) {
	cand, err := r.Bookings.NextWaitlisted(ctx, sess.ID)
	if err != nil || cand == nil {
		return nil, nil, err
	}

	charge := tpl.CreditsRequired
	var productID *int
	if charge > 0 {
		pid, err := s.chargeProduct(ctx, ledger, tpl, cand.ClientID, charge)
		if err == nil {
			_, err = ledger.Consume(ctx, cand.ClientID, pid, charge, cand.ID)
		}
		if errors.Is(err, credit.ErrInsufficientCredit) {
			metrics.RecordPromotion("insufficient_credit")
			logger.Warn("waitlist promotion skipped",
				"booking_id", cand.ID,
				"session_id", sess.ID,
				"client_id", cand.ClientID,
				"error", err,
			)
			return nil, err, nil
		}
		if err != nil {
			return nil, nil, err
		}
		productID = &pid
	}

	promoted, err = r.Bookings.Promote(ctx, cand.ID, productID, charge, now)
	if err != nil {
		if productID != nil {
			s.compensate(ctx, func() error {
				_, rerr := ledger.Refund(ctx, cand.ClientID, *productID, charge, cand.ID)
				return rerr
			}, "booking_id", cand.ID)
		}
		return nil, nil, err
	}

	if err := r.Bookings.CompactWaitlist(ctx, sess.ID, *cand.WaitlistPosition); err != nil {
		return nil, nil, err
	}

	metrics.RecordPromotion("promoted")
	return promoted, nil, nil
}

func (s *service) MarkAttendance(ctx context.Context, bookingID int, status Status, actorID int) (*Booking, error) {
	if status != StatusAttended && status != StatusNoShow {
		return nil, ErrAttendanceNotAllowed
	}

	var marked *Booking
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		r := s.repos(q)

		b, err := r.Bookings.LockByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != StatusBooked {
			return ErrAttendanceNotAllowed
		}

		marked, err = r.Bookings.MarkAttendance(ctx, bookingID, status, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Audit(ctx, events.NewAuditEvent(actorID, events.AttendanceMarked{
		BookingID: marked.ID,
		SessionID: marked.SessionID,
		ClientID:  marked.ClientID,
		Status:    string(marked.Status),
	}, s.now()))

	return marked, nil
}

func (s *service) GetByID(ctx context.Context, id int) (*Booking, error) {
	var b *Booking
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		b, err = s.repos(q).Bookings.GetByID(ctx, id)
		return err
	})
	return b, err
}

func (s *service) ListClientBookings(ctx context.Context, clientID, limit, offset int) ([]BookingWithSession, error) {
	var out []BookingWithSession
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		out, err = s.repos(q).Bookings.ListByClient(ctx, clientID, limit, offset)
		return err
	})
	return out, err
}

func (s *service) ListSessionBookings(ctx context.Context, sessionID int) ([]Booking, error) {
	var out []Booking
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		r := s.repos(q)
		if _, err := r.Classes.GetSessionByID(ctx, sessionID); err != nil {
			return err
		}
		var err error
		out, err = r.Bookings.ListBySession(ctx, sessionID)
		return err
	})
	return out, err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionNotBookable):
		return "session_not_bookable"
	case errors.Is(err, ErrBookingWindowClosed):
		return "window_closed"
	case errors.Is(err, ErrSessionFull):
		return "session_full"
	case errors.Is(err, ErrInsufficientCredit):
		return "insufficient_credit"
	default:
		return "error"
	}
}
