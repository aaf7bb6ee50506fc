package domain

import "context"

// Row is a single result row keyed by column name.
type Row map[string]any

// QueryGateway runs one parameterized statement per call against the shared pool.
// The method argument names the caller and only serves log attribution.
type QueryGateway interface {
	// QueryMany returns every matching row. No rows yields an empty slice.
	QueryMany(ctx context.Context, method, query string, args ...any) ([]Row, error)

	// QueryOne returns the first matching row, or ErrNotFound.
	QueryOne(ctx context.Context, method, query string, args ...any) (Row, error)

	// Execute runs the statement and commits it.
	Execute(ctx context.Context, method, query string, args ...any) error

	// ExecuteReturningID runs and commits the statement, then reads
	// LAST_INSERT_ID() on the same connection.
	ExecuteReturningID(ctx context.Context, method, query string, args ...any) (int64, error)
}
