package repository

import (
	"context"
	"fmt"
	"time"

	"smartpos/internal/infra"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transactor runs a unit of work atomically. Services receive it explicitly so
// tests can substitute an in-memory store with snapshot/rollback semantics.
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TxOptions bounds every business transaction.
type TxOptions struct {
	Timeout     time.Duration // whole transaction
	LockTimeout time.Duration // single row-lock wait, SET LOCAL lock_timeout
}

type gormTransactor struct {
	db   *gorm.DB
	opts TxOptions
}

func NewTransactor(db *gorm.DB, opts TxOptions) Transactor {
	return &gormTransactor{db: db, opts: opts}
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ms := t.opts.LockTimeout.Milliseconds(); ms > 0 {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
	return infra.ClassifyTxError(ctx, err)
}

// ── Row locks ────────────────────────────────────────────────────────────────

// Lock selects the row-lock strength for *Tx finders.
type Lock int

const (
	LockNone Lock = iota
	LockShare
	LockUpdate
)

func withLock(tx *gorm.DB, l Lock) *gorm.DB {
	switch l {
	case LockShare:
		return tx.Clauses(clause.Locking{Strength: "SHARE"})
	case LockUpdate:
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return tx
	}
}

func forUpdate(tx *gorm.DB) *gorm.DB { return withLock(tx, LockUpdate) }

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	return page, limit
}
