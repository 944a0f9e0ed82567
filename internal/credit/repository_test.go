package credit

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCreditMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dbx := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { dbx.Close() })
	return NewRepository(dbx), mock
}

var entryCols = []string{"id", "client_id", "product_id", "kind", "delta", "balance_after", "booking_id",
	"submission_id", "run_id", "period_key", "idempotency_key", "created_at"}

func TestApplyEntry(t *testing.T) {
	repo, mock := setupCreditMock(t)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	bookingID := 12

	mock.ExpectQuery(regexp.QuoteMeta("WITH moved AS ( UPDATE credit_balances SET balance = balance + $3")).
		WithArgs(1, 4, -1, KindConsume, &bookingID, nil, nil, nil, "consume:12", now).
		WillReturnRows(sqlmock.NewRows(entryCols).
			AddRow(30, 1, 4, "CONSUME", -1, 6, 12, nil, nil, nil, "consume:12", now))

	e, err := repo.ApplyEntry(context.Background(), &Entry{
		ClientID:       1,
		ProductID:      4,
		Kind:           KindConsume,
		Delta:          -1,
		BookingID:      &bookingID,
		IdempotencyKey: "consume:12",
		CreatedAt:      now,
	})

	require.NoError(t, err)
	assert.Equal(t, 6, e.BalanceAfter)
	assert.Equal(t, 12, *e.BookingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEntry_NoBalanceMovedIsInsufficient(t *testing.T) {
	repo, mock := setupCreditMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO credit_entries")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ApplyEntry(context.Background(), &Entry{ClientID: 1, ProductID: 4, Kind: KindConsume, Delta: -5, IdempotencyKey: "consume:13"})
	assert.ErrorIs(t, err, ErrInsufficientCredit)
}

func TestApplyEntry_DuplicateKey(t *testing.T) {
	repo, mock := setupCreditMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO credit_entries")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.ApplyEntry(context.Background(), &Entry{ClientID: 1, ProductID: 4, Kind: KindGrant, Delta: 8, IdempotencyKey: "grant:4:1:2026-03"})
	assert.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestLockBalance_CreatesRowThenLocks(t *testing.T) {
	repo, mock := setupCreditMock(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (client_id, product_id) DO NOTHING")).
		WithArgs(1, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE client_id = $1 AND product_id = $2 FOR UPDATE")).
		WithArgs(1, 4).
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "product_id", "balance", "updated_at"}).AddRow(1, 4, 0, now))

	b, err := repo.LockBalance(context.Background(), 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalance_MissingRowIsZero(t *testing.T) {
	repo, mock := setupCreditMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_balances WHERE client_id = $1 AND product_id = $2")).
		WithArgs(1, 4).
		WillReturnError(sql.ErrNoRows)

	b, err := repo.GetBalance(context.Background(), 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Balance)
	assert.Equal(t, 4, b.ProductID)
}

func TestGetEntryByKey_Missing(t *testing.T) {
	repo, mock := setupCreditMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_entries WHERE idempotency_key = $1")).
		WithArgs("refund:9").
		WillReturnError(sql.ErrNoRows)

	e, err := repo.GetEntryByKey(context.Background(), "refund:9")
	assert.NoError(t, err)
	assert.Nil(t, e)
}

func TestSumAddedAfterClose(t *testing.T) {
	repo, mock := setupCreditMock(t)
	closedAt := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("CASE WHEN period_key IS NULL THEN created_at >= $3 ELSE period_key > $4 END")).
		WithArgs(1, 4, closedAt, "2026-03").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(8))

	n, err := repo.SumAddedAfterClose(context.Background(), 1, 4, "2026-03", closedAt)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo, mock := setupCreditMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM credit_products WHERE id = $1")).
		WithArgs(77).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetProduct(context.Background(), 77)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCreateProduct_ValidatesFirst(t *testing.T) {
	repo, mock := setupCreditMock(t)

	_, err := repo.CreateProduct(context.Background(), &Product{Name: "Monthly", CreditMode: ModeMonthly})
	assert.ErrorIs(t, err, ErrInvalidProduct)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveSubscriptions(t *testing.T) {
	repo, mock := setupCreditMock(t)
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND (valid_until IS NULL OR valid_until > $2)")).
		WithArgs(4, at).
		WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "product_id", "status", "valid_from", "valid_until", "created_at"}).
			AddRow(1, 10, 4, "active", at.AddDate(0, -2, 0), nil, at).
			AddRow(2, 11, 4, "active", at.AddDate(0, -1, 0), at.AddDate(0, 1, 0), at))

	subs, err := repo.ListActiveSubscriptions(context.Background(), 4, at)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Nil(t, subs[0].ValidUntil)
	assert.NotNil(t, subs[1].ValidUntil)
}
