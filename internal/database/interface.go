package database

import "context"

// Querier is the statement surface shared by a Handle and a Tx.
type Querier interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a statement and returns the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// Handle is the central contract for one logical database connection.
// Layers above this package use only this interface and never import the
// postgres package directly.
type Handle interface {
	Querier

	// Begin opens a transaction. Every statement of one change-set runs on
	// the returned Tx, which owns a single underlying connection.
	Begin(ctx context.Context) (Tx, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the handle.
	Close()
}

// Tx is an open transaction. Exactly one of Commit or Rollback ends it.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ClientProvider resolves a logical connection id to its live handle.
// It returns nil when no live handle exists; callers treat that as
// "not connected" rather than as a failure.
type ClientProvider interface {
	Client(ctx context.Context, connectionID string) Handle
}

// ClientProviderFunc adapts a function to ClientProvider.
type ClientProviderFunc func(ctx context.Context, connectionID string) Handle

func (f ClientProviderFunc) Client(ctx context.Context, connectionID string) Handle {
	return f(ctx, connectionID)
}

// Rows iterates a result set. Close it even when iteration stops early;
// Err reports what ended the loop.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close()
	Err() error
}

// Row is a single-row result. Scan reports a NotFound error when empty.
type Row interface {
	Scan(dest ...any) error
}
