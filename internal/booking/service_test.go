package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitclass/internal/booking"
	"fitclass/internal/class"
	"fitclass/internal/credit"
	"fitclass/internal/db"
	"fitclass/internal/events"
	"fitclass/internal/memstore"
	"fitclass/internal/policy"
)

const coachID = 500

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memstore.Store
	rec     *memstore.Recorder
	svc     booking.Service
	clock   time.Time
	product *credit.Product
	grants  int
}

func newFixture(t *testing.T, mode db.Mode, defaults policy.Defaults) *fixture {
	t.Helper()

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: memstore.New(),
		rec:   &memstore.Recorder{},
		clock: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	var uow db.UnitOfWork = f.store.Transactional()
	if mode == db.ModeBestEffort {
		uow = f.store.BestEffort()
	}

	f.svc = booking.NewService(uow, f.store.BookingRepos(), events.NewDispatcher(f.rec, f.rec), booking.Config{
		Defaults: defaults,
		Location: time.UTC,
		Now:      func() time.Time { return f.clock },
	})

	p, err := f.store.Credits().CreateProduct(f.ctx, &credit.Product{
		Name:                "10 class pack",
		CreditMode:          credit.ModeOneOff,
		EligibleForBookings: true,
		IsActive:            true,
	})
	require.NoError(t, err)
	f.product = p

	return f
}

func defaultPolicy() policy.Defaults {
	return policy.Defaults{LateCancelForfeitsCredit: true}
}

func intPtr(v int) *int { return &v }

func (f *fixture) template(capacity int, waitlist bool, credits int) *class.Template {
	f.t.Helper()
	tpl, err := f.store.Classes().CreateTemplate(f.ctx, &class.Template{
		CoachID:         coachID,
		Name:            "Morning HIIT",
		ClassType:       "hiit",
		Visibility:      class.VisibilityFacility,
		Location:        "Studio A",
		Capacity:        intPtr(capacity),
		WaitlistEnabled: waitlist,
		CreditsRequired: credits,
		CreditProductID: &f.product.ID,
		IsActive:        true,
	})
	require.NoError(f.t, err)
	return tpl
}

func (f *fixture) session(tpl *class.Template, startsIn time.Duration) *class.Session {
	f.t.Helper()
	start := f.clock.Add(startsIn)
	sess, err := f.store.Classes().CreateSession(f.ctx, &class.Session{
		TemplateID: tpl.ID,
		StartsAt:   start,
		EndsAt:     start.Add(time.Hour),
		Status:     class.SessionScheduled,
	})
	require.NoError(f.t, err)
	return sess
}

func (f *fixture) grant(clientID, amount int) {
	f.t.Helper()
	f.grants++
	ledger := credit.NewLedger(f.store.Credits(), time.UTC, nil)
	_, err := ledger.GrantForSubmission(f.ctx, clientID, f.product.ID, amount, 9000+f.grants)
	require.NoError(f.t, err)
}

func (f *fixture) balance(clientID int) int {
	f.t.Helper()
	b, err := f.store.Credits().GetBalance(f.ctx, clientID, f.product.ID)
	require.NoError(f.t, err)
	return b.Balance
}

func (f *fixture) book(sessionID, clientID int) (*booking.BookResult, error) {
	return f.svc.BookClientIntoSession(f.ctx, booking.BookRequest{
		SessionID:            sessionID,
		ClientID:             clientID,
		Source:               booking.SourceClient,
		ActorID:              clientID,
		EnforceBookingWindow: true,
	})
}

func (f *fixture) reload(id int) *booking.Booking {
	f.t.Helper()
	b, err := f.store.Bookings().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

func countStatus(bs []booking.Booking, status booking.Status) int {
	n := 0
	for _, b := range bs {
		if b.Status == status {
			n++
		}
	}
	return n
}

func TestBookClientIntoSession_AvailableSeat(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 1), 24*time.Hour)
	f.grant(1, 5)

	res, err := f.book(sess.ID, 1)

	require.NoError(t, err)
	assert.Equal(t, booking.ResultBooked, res.Result)
	assert.Equal(t, booking.StatusBooked, res.Booking.Status)
	assert.Equal(t, 1, res.Booking.CreditsCharged)
	assert.Equal(t, &f.product.ID, res.Booking.CreditProductID)
	assert.Nil(t, res.Booking.WaitlistPosition)
	assert.Equal(t, 4, f.balance(1))

	all := f.store.AllBookings(sess.ID)
	assert.Len(t, all, 1)

	assert.Equal(t, []events.Action{events.ActionBookingCreated}, f.rec.Actions())
	notes := f.rec.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, events.NotifyBookingConfirmed, notes[0].Kind)
	assert.Equal(t, "Morning HIIT", notes[0].ClassName)
	assert.Equal(t, "UTC", notes[0].Timezone)
}

func TestBookClientIntoSession_FillThenWaitlist(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 1), 24*time.Hour)
	f.grant(1, 1)
	f.grant(2, 1)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, booking.ResultBooked, a.Result)

	b, err := f.book(sess.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, booking.ResultWaitlisted, b.Result)
	assert.Equal(t, booking.StatusWaitlisted, b.Booking.Status)
	require.NotNil(t, b.Booking.WaitlistPosition)
	assert.Equal(t, 1, *b.Booking.WaitlistPosition)
	assert.Equal(t, 0, b.Booking.CreditsCharged)
	assert.Equal(t, 1, f.balance(2))

	notes := f.rec.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, events.NotifyWaitlistJoined, notes[1].Kind)
	assert.Equal(t, 1, *notes[1].WaitlistPosition)
}

func TestBookClientIntoSession_AlreadyExists(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 1), 24*time.Hour)
	f.grant(1, 5)

	first, err := f.book(sess.ID, 1)
	require.NoError(t, err)

	again, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, booking.ResultAlreadyExists, again.Result)
	assert.Equal(t, first.Booking.ID, again.Booking.ID)
	assert.Equal(t, 4, f.balance(1))
	assert.Len(t, f.store.AllBookings(sess.ID), 1)
	assert.Len(t, f.rec.Audit(), 1)
}

func TestBookClientIntoSession_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture) int
		want  error
	}{
		{
			name:  "unknown session",
			setup: func(f *fixture) int { return 4242 },
			want:  booking.ErrSessionNotFound,
		},
		{
			name: "cancelled session",
			setup: func(f *fixture) int {
				sess := f.session(f.template(2, true, 1), 24*time.Hour)
				require.NoError(f.t, f.store.Classes().UpdateSessionStatus(f.ctx, sess.ID, class.SessionCancelled))
				return sess.ID
			},
			want: booking.ErrSessionNotBookable,
		},
		{
			name: "inactive template",
			setup: func(f *fixture) int {
				tpl := f.template(2, true, 1)
				sess := f.session(tpl, 24*time.Hour)
				require.NoError(f.t, f.store.Classes().SetTemplateActive(f.ctx, tpl.ID, false))
				return sess.ID
			},
			want: booking.ErrSessionNotBookable,
		},
		{
			name: "booking window not open yet",
			setup: func(f *fixture) int {
				return f.session(f.template(2, true, 1), 30*24*time.Hour).ID
			},
			want: booking.ErrBookingWindowClosed,
		},
		{
			name: "session already started",
			setup: func(f *fixture) int {
				return f.session(f.template(2, true, 1), -time.Minute).ID
			},
			want: booking.ErrBookingWindowClosed,
		},
		{
			name: "full without waitlist",
			setup: func(f *fixture) int {
				sess := f.session(f.template(1, false, 1), 24*time.Hour)
				f.grant(2, 1)
				_, err := f.book(sess.ID, 2)
				require.NoError(f.t, err)
				return sess.ID
			},
			want: booking.ErrSessionFull,
		},
		{
			name: "waitlist full",
			setup: func(f *fixture) int {
				tpl := f.template(1, true, 1)
				tpl.WaitlistCapacity = intPtr(1)
				tpl, err := f.store.Classes().CreateTemplate(f.ctx, tpl)
				require.NoError(f.t, err)
				sess := f.session(tpl, 24*time.Hour)
				f.grant(2, 1)
				_, err = f.book(sess.ID, 2)
				require.NoError(f.t, err)
				_, err = f.book(sess.ID, 3)
				require.NoError(f.t, err)
				return sess.ID
			},
			want: booking.ErrSessionFull,
		},
		{
			name: "no credits",
			setup: func(f *fixture) int {
				return f.session(f.template(2, true, 1), 24*time.Hour).ID
			},
			want: booking.ErrInsufficientCredit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, db.ModeTransactional, defaultPolicy())
			sessionID := tt.setup(f)
			before := len(f.store.AllBookings(sessionID))

			res, err := f.book(sessionID, 1)

			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, f.store.AllBookings(sessionID), before)
		})
	}
}

func TestBookClientIntoSession_InsufficientCreditDetails(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 3), 24*time.Hour)
	f.grant(1, 2)

	_, err := f.book(sess.ID, 1)

	var ice *credit.InsufficientCreditError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, 3, ice.Required)
	assert.Equal(t, 2, ice.Available)
	assert.Equal(t, 2, f.balance(1))
	assert.Empty(t, f.rec.Audit())
}

func TestBookClientIntoSession_StaffOverrides(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 1), 30*24*time.Hour)

	res, err := f.svc.BookClientIntoSession(f.ctx, booking.BookRequest{
		SessionID:            sess.ID,
		ClientID:             1,
		Source:               booking.SourceCoach,
		ActorID:              coachID,
		SkipCreditValidation: true,
	})

	require.NoError(t, err)
	assert.Equal(t, booking.ResultBooked, res.Result)
	assert.Equal(t, booking.SourceCoach, res.Booking.Source)
	assert.Equal(t, 0, res.Booking.CreditsCharged)
	assert.Nil(t, res.Booking.CreditProductID)
	assert.Empty(t, f.store.Entries())

	audit := f.rec.Audit()
	require.Len(t, audit, 1)
	assert.Equal(t, coachID, audit[0].ActorID)
}

func TestBookClientIntoSession_SessionCapacityOverride(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	tpl := f.template(5, true, 0)
	start := f.clock.Add(24 * time.Hour)
	sess, err := f.store.Classes().CreateSession(f.ctx, &class.Session{
		TemplateID:       tpl.ID,
		StartsAt:         start,
		EndsAt:           start.Add(time.Hour),
		CapacityOverride: intPtr(1),
		Status:           class.SessionScheduled,
	})
	require.NoError(t, err)

	first, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	second, err := f.book(sess.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, booking.ResultBooked, first.Result)
	assert.Equal(t, booking.ResultWaitlisted, second.Result)
}

func TestBookClientIntoSession_SelectsProductWhenTemplateNamesNone(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	tpl, err := f.store.Classes().CreateTemplate(f.ctx, &class.Template{
		CoachID:         coachID,
		Name:            "Open Gym",
		ClassType:       "open",
		Visibility:      class.VisibilityFacility,
		WaitlistEnabled: true,
		CreditsRequired: 2,
		IsActive:        true,
	})
	require.NoError(t, err)
	sess := f.session(tpl, 24*time.Hour)
	f.grant(1, 2)

	res, err := f.book(sess.ID, 1)

	require.NoError(t, err)
	assert.Equal(t, &f.product.ID, res.Booking.CreditProductID)
	assert.Equal(t, 0, f.balance(1))
}

func TestBookClientIntoSession_ConcurrentRequestsNeverOverbook(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(3, true, 1), 24*time.Hour)

	const clients = 20
	for c := 1; c <= clients; c++ {
		f.grant(c, 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, clients)
	for c := 1; c <= clients; c++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			_, errs[clientID-1] = f.book(sess.ID, clientID)
		}(c)
	}
	wg.Wait()

	all := f.store.AllBookings(sess.ID)
	assert.Equal(t, 3, countStatus(all, booking.StatusBooked))
	assert.Equal(t, policy.DefaultWaitlistCapacity, countStatus(all, booking.StatusWaitlisted))

	full := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, booking.ErrSessionFull)
			full++
		}
	}
	assert.Equal(t, clients-3-policy.DefaultWaitlistCapacity, full)

	positions := map[int]bool{}
	for _, b := range all {
		if b.Status == booking.StatusWaitlisted {
			positions[*b.WaitlistPosition] = true
		}
	}
	for p := 1; p <= policy.DefaultWaitlistCapacity; p++ {
		assert.True(t, positions[p], "missing waitlist position %d", p)
	}

	spent := 0
	for c := 1; c <= clients; c++ {
		spent += 1 - f.balance(c)
	}
	assert.Equal(t, 3, spent)
}

func TestCancelBooking_OnTimePromotesWaitlist(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 1), 24*time.Hour)
	f.grant(1, 1)
	f.grant(2, 1)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	b, err := f.book(sess.ID, 2)
	require.NoError(t, err)

	res, err := f.svc.CancelBooking(f.ctx, a.Booking.ID, 1)

	require.NoError(t, err)
	assert.False(t, res.LateCancel)
	assert.False(t, res.AlreadyCancelled)
	assert.NoError(t, res.PromotionError)
	assert.Equal(t, booking.StatusCancelled, res.Booking.Status)
	assert.NotNil(t, res.Booking.CancelledAt)
	assert.Equal(t, 1, f.balance(1))

	require.Len(t, res.Promoted, 1)
	assert.Equal(t, b.Booking.ID, res.Promoted[0].ID)

	promoted := f.reload(b.Booking.ID)
	assert.Equal(t, booking.StatusBooked, promoted.Status)
	assert.Nil(t, promoted.WaitlistPosition)
	assert.Equal(t, 1, promoted.CreditsCharged)
	assert.Equal(t, 0, f.balance(2))

	assert.Equal(t, []events.Action{
		events.ActionBookingCreated,
		events.ActionBookingCreated,
		events.ActionBookingCancelled,
		events.ActionBookingPromoted,
	}, f.rec.Actions())

	notes := f.rec.Notifications()
	assert.Equal(t, events.NotifyWaitlistPromoted, notes[len(notes)-1].Kind)
	assert.Equal(t, 2, notes[len(notes)-1].RecipientID)
}

func TestCancelBooking_LateForfeitsCreditStillPromotes(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 1), 2*time.Hour)
	f.grant(1, 1)
	f.grant(2, 1)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	b, err := f.book(sess.ID, 2)
	require.NoError(t, err)

	f.clock = sess.StartsAt.Add(-10 * time.Minute)
	res, err := f.svc.CancelBooking(f.ctx, a.Booking.ID, 1)

	require.NoError(t, err)
	assert.True(t, res.LateCancel)
	assert.Equal(t, booking.StatusLateCancel, res.Booking.Status)
	assert.Equal(t, 0, f.balance(1))
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, booking.StatusBooked, f.reload(b.Booking.ID).Status)

	notes := f.rec.Notifications()
	var cancelled events.Notification
	for _, n := range notes {
		if n.Kind == events.NotifyBookingCancelled {
			cancelled = n
		}
	}
	assert.True(t, cancelled.LateCancel)
}

func TestCancelBooking_LateRefundsWhenForfeitDisabled(t *testing.T) {
	defaults := defaultPolicy()
	defaults.LateCancelForfeitsCredit = false
	f := newFixture(t, db.ModeTransactional, defaults)
	sess := f.session(f.template(1, true, 1), 2*time.Hour)
	f.grant(1, 1)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)

	f.clock = sess.StartsAt.Add(-10 * time.Minute)
	res, err := f.svc.CancelBooking(f.ctx, a.Booking.ID, 1)

	require.NoError(t, err)
	assert.True(t, res.LateCancel)
	assert.Equal(t, 1, f.balance(1))
}

func TestCancelBooking_InsufficientCreditBlocksPromotionOnly(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 1), 24*time.Hour)
	f.grant(1, 1)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	b, err := f.book(sess.ID, 2)
	require.NoError(t, err)

	res, err := f.svc.CancelBooking(f.ctx, a.Booking.ID, 1)

	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, res.Booking.Status)
	assert.Equal(t, 1, f.balance(1))
	assert.Empty(t, res.Promoted)
	assert.ErrorIs(t, res.PromotionError, credit.ErrInsufficientCredit)

	still := f.reload(b.Booking.ID)
	assert.Equal(t, booking.StatusWaitlisted, still.Status)
	require.NotNil(t, still.WaitlistPosition)
	assert.Equal(t, 1, *still.WaitlistPosition)
	assert.Equal(t, 0, f.balance(2))

	audit := f.rec.Audit()
	last := audit[len(audit)-1].Details.(events.BookingCancelled)
	assert.True(t, last.PromotionFailed)
	assert.Equal(t, 1, last.CreditsRefunded)
}

func TestCancelBooking_Idempotent(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 1), 24*time.Hour)
	f.grant(1, 1)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(f.ctx, a.Booking.ID, 1)
	require.NoError(t, err)
	auditBefore := len(f.rec.Audit())
	entriesBefore := len(f.store.Entries())

	again, err := f.svc.CancelBooking(f.ctx, a.Booking.ID, 1)

	require.NoError(t, err)
	assert.True(t, again.AlreadyCancelled)
	assert.Equal(t, booking.StatusCancelled, again.Booking.Status)
	assert.Empty(t, again.Promoted)
	assert.Equal(t, 1, f.balance(1))
	assert.Len(t, f.rec.Audit(), auditBefore)
	assert.Len(t, f.store.Entries(), entriesBefore)
}

func TestCancelBooking_WaitlistedCompactsPositions(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 0), 24*time.Hour)

	var ids []int
	for c := 1; c <= 4; c++ {
		res, err := f.book(sess.ID, c)
		require.NoError(t, err)
		ids = append(ids, res.Booking.ID)
	}

	res, err := f.svc.CancelBooking(f.ctx, ids[2], 3)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, res.Booking.Status)
	assert.False(t, res.LateCancel)
	assert.Empty(t, res.Promoted)

	assert.Equal(t, 1, *f.reload(ids[1]).WaitlistPosition)
	assert.Equal(t, 2, *f.reload(ids[3]).WaitlistPosition)
}

func TestCancelBooking_PromotionShiftsRemainingWaitlist(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 0), 24*time.Hour)

	var ids []int
	for c := 1; c <= 3; c++ {
		res, err := f.book(sess.ID, c)
		require.NoError(t, err)
		ids = append(ids, res.Booking.ID)
	}

	res, err := f.svc.CancelBooking(f.ctx, ids[0], 1)
	require.NoError(t, err)
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, ids[1], res.Promoted[0].ID)

	third := f.reload(ids[2])
	assert.Equal(t, booking.StatusWaitlisted, third.Status)
	assert.Equal(t, 1, *third.WaitlistPosition)
}

func TestCancelBooking_NoPromotionOnCancelledSession(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 1), 24*time.Hour)
	f.grant(1, 1)
	f.grant(2, 1)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	b, err := f.book(sess.ID, 2)
	require.NoError(t, err)
	require.NoError(t, f.store.Classes().UpdateSessionStatus(f.ctx, sess.ID, class.SessionCancelled))

	res, err := f.svc.CancelBooking(f.ctx, a.Booking.ID, coachID)

	require.NoError(t, err)
	assert.Empty(t, res.Promoted)
	assert.Equal(t, 1, f.balance(1))
	assert.Equal(t, booking.StatusWaitlisted, f.reload(b.Booking.ID).Status)
}

func TestCancelBooking_Errors(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 0), 24*time.Hour)

	_, err := f.svc.CancelBooking(f.ctx, 999, 1)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.MarkAttendance(f.ctx, a.Booking.ID, booking.StatusAttended, coachID)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(f.ctx, a.Booking.ID, 1)
	assert.ErrorIs(t, err, booking.ErrBookingNotCancellable)
}

func TestCreditConservation(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 1), 24*time.Hour)
	for c := 1; c <= 5; c++ {
		f.grant(c, 2)
	}

	ids := map[int]int{}
	for c := 1; c <= 5; c++ {
		res, err := f.book(sess.ID, c)
		require.NoError(t, err)
		ids[c] = res.Booking.ID
	}
	for _, c := range []int{1, 3, 2} {
		_, err := f.svc.CancelBooking(f.ctx, ids[c], c)
		require.NoError(t, err)
	}

	for c := 1; c <= 5; c++ {
		sum := 0
		for _, e := range f.store.Entries() {
			if e.ClientID == c && e.ProductID == f.product.ID {
				sum += e.Delta
			}
		}
		assert.Equal(t, sum, f.balance(c), fmt.Sprintf("client %d", c))
		assert.GreaterOrEqual(t, f.balance(c), 0)
	}

	all := f.store.AllBookings(sess.ID)
	assert.LessOrEqual(t, countStatus(all, booking.StatusBooked), 2)
}

func TestBookClientIntoSession_FailedConsumeLeavesNoBooking(t *testing.T) {
	for _, mode := range []db.Mode{db.ModeTransactional, db.ModeBestEffort} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, mode, defaultPolicy())
			sess := f.session(f.template(2, true, 2), 24*time.Hour)
			f.grant(1, 1)

			_, err := f.book(sess.ID, 1)

			assert.ErrorIs(t, err, booking.ErrInsufficientCredit)
			assert.Empty(t, f.store.AllBookings(sess.ID))
			assert.Equal(t, 1, f.balance(1))
		})
	}
}

func TestMarkAttendance(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(1, true, 0), 24*time.Hour)

	a, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	w, err := f.book(sess.ID, 2)
	require.NoError(t, err)

	marked, err := f.svc.MarkAttendance(f.ctx, a.Booking.ID, booking.StatusNoShow, coachID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusNoShow, marked.Status)
	assert.NotNil(t, marked.AttendanceMarkedAt)

	_, err = f.svc.MarkAttendance(f.ctx, w.Booking.ID, booking.StatusAttended, coachID)
	assert.ErrorIs(t, err, booking.ErrAttendanceNotAllowed)

	_, err = f.svc.MarkAttendance(f.ctx, a.Booking.ID, booking.StatusCancelled, coachID)
	assert.ErrorIs(t, err, booking.ErrAttendanceNotAllowed)

	actions := f.rec.Actions()
	assert.Equal(t, events.ActionAttendanceMarked, actions[len(actions)-1])
}

func TestListings(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	sess := f.session(f.template(2, true, 0), 24*time.Hour)

	_, err := f.book(sess.ID, 1)
	require.NoError(t, err)
	_, err = f.book(sess.ID, 2)
	require.NoError(t, err)

	roster, err := f.svc.ListSessionBookings(f.ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	_, err = f.svc.ListSessionBookings(f.ctx, 777)
	assert.ErrorIs(t, err, booking.ErrSessionNotFound)

	mine, err := f.svc.ListClientBookings(f.ctx, 1, 20, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Morning HIIT", mine[0].ClassName)
}

func TestDispatchFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t, db.ModeTransactional, defaultPolicy())
	f.rec.Err = errors.New("sink down")
	sess := f.session(f.template(2, true, 0), 24*time.Hour)

	res, err := f.book(sess.ID, 1)

	require.NoError(t, err)
	assert.Equal(t, booking.ResultBooked, res.Result)
}
