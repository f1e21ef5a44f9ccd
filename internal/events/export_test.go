package events

import "context"

type DBPool = dbPool

// WithNewPool is an option to override the default newPool function.
func WithNewPool(newPool func(ctx context.Context, dsn string) (DBPool, error)) PostgresOptions {
	return func(opts *pgOptions) {
		opts.newPool = newPool
	}
}

// WithTable is an option to override the default events table name.
func WithTable(table string) PostgresOptions {
	return func(opts *pgOptions) {
		opts.table = table
	}
}
