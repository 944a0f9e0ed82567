package booking

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dbx := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { dbx.Close() })
	return NewRepository(dbx), mock
}

var bookingCols = []string{"id", "session_id", "client_id", "status", "waitlist_position", "source",
	"credit_product_id", "credits_charged", "cancelled_at", "attendance_marked_at", "created_at", "updated_at"}

func TestCreate(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	productID := 4

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO class_bookings (session_id, client_id, status, waitlist_position, source,")).
		WithArgs(7, 3, StatusBooked, nil, SourceClient, &productID, 1, now).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(11, 7, 3, "BOOKED", nil, "CLIENT", 4, 1, nil, nil, now, now))

	b, err := repo.Create(context.Background(), &Booking{
		SessionID:       7,
		ClientID:        3,
		Status:          StatusBooked,
		Source:          SourceClient,
		CreditProductID: &productID,
		CreditsCharged:  1,
		CreatedAt:       now,
	})

	require.NoError(t, err)
	assert.Equal(t, 11, b.ID)
	assert.Equal(t, StatusBooked, b.Status)
	assert.Equal(t, 4, *b.CreditProductID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateActive(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO class_bookings")).
		WillReturnError(&pq.Error{Code: "23505"})

	b, err := repo.Create(context.Background(), &Booking{SessionID: 7, ClientID: 3, Status: StatusBooked})

	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrDuplicateActive)
}

func TestLockByID_NotFound(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM class_bookings WHERE id = $1 FOR UPDATE")).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	b, err := repo.LockByID(context.Background(), 99)

	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestFindActive(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE session_id = $1 AND client_id = $2 AND status IN ('BOOKED', 'WAITLISTED')")).
		WithArgs(7, 3).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(11, 7, 3, "WAITLISTED", 2, "CLIENT", nil, 0, nil, nil, now, now))

	b, err := repo.FindActive(context.Background(), 7, 3)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 2, *b.WaitlistPosition)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE session_id = $1 AND client_id = $2")).
		WithArgs(7, 4).
		WillReturnError(sql.ErrNoRows)

	b, err = repo.FindActive(context.Background(), 7, 4)
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestCountByStatus(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_bookings WHERE session_id = $1 AND status = $2")).
		WithArgs(7, StatusBooked).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	n, err := repo.CountByStatus(context.Background(), 7, StatusBooked)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_bookings")).
		WillReturnError(errors.New("conn reset"))

	_, err = repo.CountByStatus(context.Background(), 7, StatusWaitlisted)
	assert.Error(t, err)
}

func TestNextWaitlisted_LocksLowestPosition(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY waitlist_position ASC, created_at ASC, id ASC LIMIT 1 FOR UPDATE")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(20, 7, 8, "WAITLISTED", 1, "CLIENT", nil, 0, nil, nil, now, now))

	b, err := repo.NextWaitlisted(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 20, b.ID)

	mock.ExpectQuery(regexp.QuoteMeta("status = 'WAITLISTED'")).
		WithArgs(8).
		WillReturnError(sql.ErrNoRows)

	b, err = repo.NextWaitlisted(context.Background(), 8)
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestCancel(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SET status = $2, waitlist_position = NULL, cancelled_at = $3")).
		WithArgs(11, StatusLateCancel, now).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(11, 7, 3, "LATE_CANCEL", nil, "CLIENT", 4, 1, now, nil, now, now))

	b, err := repo.Cancel(context.Background(), 11, StatusLateCancel, now)
	require.NoError(t, err)
	assert.Equal(t, StatusLateCancel, b.Status)
	assert.NotNil(t, b.CancelledAt)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE class_bookings")).
		WithArgs(12, StatusCancelled, now).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Cancel(context.Background(), 12, StatusCancelled, now)
	assert.ErrorIs(t, err, ErrBookingNotCancellable)
}

func TestPromote_NotWaitlisted(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SET status = 'BOOKED', waitlist_position = NULL")).
		WithArgs(20, nil, 0, now).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Promote(context.Background(), 20, nil, 0, now)
	assert.ErrorIs(t, err, ErrNotWaitlisted)
}

func TestCompactWaitlist(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta("SET waitlist_position = waitlist_position - 1 WHERE session_id = $1 AND status = 'WAITLISTED' AND waitlist_position > $2")).
		WithArgs(7, 2).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.CompactWaitlist(context.Background(), 7, 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAttendance_RequiresBooked(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SET status = $2, attendance_marked_at = $3")).
		WithArgs(11, StatusAttended, now).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.MarkAttendance(context.Background(), 11, StatusAttended, now)
	assert.ErrorIs(t, err, ErrAttendanceNotAllowed)
}

func TestListByClient_DefaultLimit(t *testing.T) {
	repo, mock := setupMock(t)
	now := time.Now()

	cols := append(append([]string{}, bookingCols...), "class_name", "location", "session_starts_at", "session_ends_at")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.client_id = $1 ORDER BY s.starts_at DESC LIMIT $2 OFFSET $3")).
		WithArgs(3, 50, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(11, 7, 3, "BOOKED", nil, "CLIENT", 4, 1, nil, nil, now, now, "Spin", "Studio B", now, now.Add(time.Hour)))

	out, err := repo.ListByClient(context.Background(), 3, 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Spin", out[0].ClassName)
}

func TestDelete(t *testing.T) {
	repo, mock := setupMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM class_bookings WHERE id = $1")).
		WithArgs(11).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 11))
}
