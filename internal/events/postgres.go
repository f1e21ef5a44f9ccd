package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds the configuration for connecting to the PostgreSQL event ledger.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink records events as rows in a PostgreSQL table.
type PostgresSink struct {
	dbpool dbPool
	table  string
}

type pgOptions struct {
	newPool func(ctx context.Context, dsn string) (dbPool, error)
	table   string
}

// PostgresOptions represents an optional function to override PostgresSink default values.
type PostgresOptions func(*pgOptions)

// Connect establishes a connection to the PostgreSQL database using the provided configuration.
func Connect(ctx context.Context, cfg Config, args ...PostgresOptions) (*PostgresSink, error) {
	opts := pgOptions{
		newPool: func(ctx context.Context, dsn string) (dbPool, error) {
			return pgxpool.New(ctx, dsn)
		},
		table: "splitter_events",
	}

	for _, opt := range args {
		opt(&opts)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	dbpool, err := opts.newPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	slog.Info("Connected to PostgreSQL event ledger", "host", cfg.Host, "port", cfg.Port)
	return &PostgresSink{dbpool: dbpool, table: opts.table}, nil
}

// Emit inserts one row for the event.
// Insert failures are logged, never propagated: a broken ledger must not fail a run.
func (s *PostgresSink) Emit(ctx context.Context, event string, props map[string]string) {
	if s.dbpool == nil {
		slog.Error("Event ledger not initialized", "event", event)
		return
	}

	properties, err := json.Marshal(props)
	if err != nil {
		slog.Error("Failed to encode event properties", "event", event, "err", err)
		return
	}

	table := pgx.Identifier{s.table}.Sanitize()
	query := fmt.Sprintf(
		`INSERT INTO %s (
			entry_time,
			event,
			properties
		) VALUES ($1, $2, $3)`,
		table,
	)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.dbpool.Exec(ctx, query, time.Now(), event, properties); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("Event insert canceled", "event", event, "err", err)
			return
		}
		slog.Error("Failed to record event", "event", event, "err", err)
	}
}

// Close closes the database connection.
//
// If the connection is already closed, it does nothing.
// If the connection does not close within 10 seconds, it returns an error.
func (s *PostgresSink) Close() error {
	if s.dbpool == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.dbpool.Close()
	}()

	select {
	case <-done:
		s.dbpool = nil
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout while closing database, connection may still be open")
	}
}
