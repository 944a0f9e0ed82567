package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fitclass/internal/logger"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type Mode string

const (
	ModeAuto          Mode = "auto"
	ModeTransactional Mode = "transactional"
	ModeBestEffort    Mode = "best_effort"
)

// UnitOfWork runs a group of repository calls as one unit.
// Transactional commits or rolls back all of them; BestEffort runs them
// directly on the pool and keeps whatever completed before an error.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
	Mode() Mode
}

type Transactional struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

func NewTransactional(db *sqlx.DB) *Transactional {
	return &Transactional{db: db}
}

func (t *Transactional) Mode() Mode { return ModeTransactional }

func (t *Transactional) Run(ctx context.Context, fn func(ctx context.Context, q Querier) error) (err error) {
	tx, err := t.db.BeginTxx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type BestEffort struct {
	db *sqlx.DB
}

func NewBestEffort(db *sqlx.DB) *BestEffort {
	return &BestEffort{db: db}
}

func (b *BestEffort) Mode() Mode { return ModeBestEffort }

func (b *BestEffort) Run(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return fn(ctx, b.db)
}

// Probe checks that the connection supports interactive transactions.
func Probe(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	if err := tx.GetContext(ctx, &one, `SELECT 1`); err != nil {
		return err
	}
	return nil
}

// NewUnitOfWork picks the strategy for mode. In auto mode the choice is made by Probe.
func NewUnitOfWork(ctx context.Context, db *sqlx.DB, mode Mode) (UnitOfWork, error) {
	switch mode {
	case ModeTransactional:
		return NewTransactional(db), nil
	case ModeBestEffort:
		logger.Warn("running in best-effort mode, booking capacity is not guaranteed under concurrency")
		return NewBestEffort(db), nil
	case ModeAuto, "":
		if err := Probe(ctx, db); err != nil {
			logger.Warn("transactions unavailable, falling back to best-effort mode", "error", err)
			return NewBestEffort(db), nil
		}
		return NewTransactional(db), nil
	default:
		return nil, fmt.Errorf("unknown unit of work mode %q", mode)
	}
}
