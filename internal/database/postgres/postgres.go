package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/pgedit/internal/database"
)

// pgxQuerier is the statement surface pgxpool.Pool and pgx.Tx have in common.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// querier adapts a pgxQuerier to database.Querier, mapping errors on the way out.
type querier struct{ q pgxQuerier }

func (q querier) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := q.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return rowsAdapter{rows}, nil
}

func (q querier) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return rowAdapter{q.q.QueryRow(ctx, sql, args...)}
}

func (q querier) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := q.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "statement failed")
	}
	return tag.RowsAffected(), nil
}

// DB is a pooled Handle. Safe for concurrent use; a Tx is not.
type DB struct {
	querier
	pool *pgxpool.Pool
}

// New opens a pool for cfg and pings it before returning.
func New(ctx context.Context, cfg *database.Config) (*DB, error) {
	pool, err := buildPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	db := &DB{querier: querier{pool}, pool: pool}
	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return mapError(db.pool.Ping(ctx), "ping failed")
}

func (db *DB) Close() { db.pool.Close() }

// Begin pins one pooled connection for the life of the transaction.
func (db *DB) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &txAdapter{querier: querier{tx}, tx: tx}, nil
}

var _ database.Handle = (*DB)(nil)

type txAdapter struct {
	querier
	tx pgx.Tx
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return mapError(t.tx.Commit(ctx), "commit failed")
}

func (t *txAdapter) Rollback(ctx context.Context) error {
	return mapError(t.tx.Rollback(ctx), "rollback failed")
}

type rowsAdapter struct{ pgx.Rows }

func (r rowsAdapter) Scan(dest ...any) error { return mapError(r.Rows.Scan(dest...), "scan failed") }
func (r rowsAdapter) Err() error             { return mapError(r.Rows.Err(), "read rows failed") }

func (r rowsAdapter) Columns() ([]string, error) {
	fds := r.FieldDescriptions()
	names := make([]string, len(fds))
	for i := range fds {
		names[i] = fds[i].Name
	}
	return names, nil
}

type rowAdapter struct{ row pgx.Row }

func (r rowAdapter) Scan(dest ...any) error { return mapError(r.row.Scan(dest...), "scan failed") }
