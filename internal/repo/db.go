// Package repo provides hand-written pgx queries for the storefront schema.
// The structure mirrors generated query packages: a Queries struct over a
// DBTX, WithTx for transaction scoping, and one method per statement.
package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DBTX abstracts over a pool or an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries bundles all storefront statements.
type Queries struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New constructs Queries over a connection pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{db: pool, pool: pool}
}

// WithTx returns Queries bound to the provided transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// WithinTx runs fn inside a single transaction. Any error from fn rolls the
// transaction back; partial effects are never observable.
func (q *Queries) WithinTx(ctx context.Context, fn func(*Queries) error) error {
	if q.pool == nil {
		return fmt.Errorf("repo: WithinTx requires a pool-backed Queries")
	}
	tx, err := q.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(q.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Numeric columns are selected as ::text and parsed here so money never
// passes through binary float representations.
func parseDecimal(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("repo: parse numeric %q: %w", value, err)
	}
	return d, nil
}

func parseNullDecimal(value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	d, err := parseDecimal(*value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
