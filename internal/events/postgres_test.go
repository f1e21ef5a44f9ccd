package events_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sbtplatform/quote-splitter/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		config events.Config

		wantErr bool
	}{
		"valid config": {
			config: events.Config{
				Host: "localhost",
				Port: 5432,
			},
		},
		"bad port errors": {
			config: events.Config{
				Host: "localhost",
				Port: -1,
			},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			sink, err := events.Connect(t.Context(), tc.config, events.WithNewPool(mockNewDBPool(t, &mockDBPool{})))
			if tc.wantErr {
				require.Error(t, err, "Connect should return an error")
				return
			}
			require.NoError(t, err, "Connect should not return an error")
			require.NoError(t, sink.Close(), "Close should not return an error")
		})
	}
}

func TestEmit(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		event      string
		props      map[string]string
		execErr    error
		earlyClose bool

		wantExec bool
	}{
		"successful exec": {
			event:    events.QuoteSplitSuccess,
			props:    map[string]string{"blob_name": "a.json"},
			wantExec: true,
		},
		"no properties": {
			event:    events.Start,
			wantExec: true,
		},
		// Failures are swallowed, the pipeline must survive a broken ledger.
		"exec error is not fatal": {
			event:    events.QuoteSplitSuccess,
			execErr:  fmt.Errorf("error requested by test"),
			wantExec: true,
		},
		"emit after close does nothing": {
			event:      events.QuoteSplitSuccess,
			earlyClose: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			pool := &mockDBPool{execErr: tc.execErr}

			sink, err := events.Connect(t.Context(), events.Config{}, events.WithNewPool(mockNewDBPool(t, pool)))
			require.NoError(t, err, "Setup: Connect should not return an error")
			defer sink.Close()

			if tc.earlyClose {
				require.NoError(t, sink.Close(), "Setup: failed to close sink")
			}

			sink.Emit(t.Context(), tc.event, tc.props)

			calls := pool.execCalls()
			if !tc.wantExec {
				require.Empty(t, calls, "no insert should be issued")
				return
			}
			require.Len(t, calls, 1, "exactly one insert should be issued")
			assert.Contains(t, calls[0].sql, pgx.Identifier{"splitter_events"}.Sanitize(), "insert should target the events table")
			require.Len(t, calls[0].args, 3, "insert should carry entry time, event and properties")
			assert.Equal(t, tc.event, calls[0].args[1], "event name should be the second argument")
		})
	}
}

func TestEmitCustomTable(t *testing.T) {
	t.Parallel()

	pool := &mockDBPool{}
	sink, err := events.Connect(t.Context(), events.Config{},
		events.WithNewPool(mockNewDBPool(t, pool)), events.WithTable("other_events"))
	require.NoError(t, err, "Setup: Connect should not return an error")
	defer sink.Close()

	sink.Emit(t.Context(), events.Start, nil)

	calls := pool.execCalls()
	require.Len(t, calls, 1, "exactly one insert should be issued")
	require.Contains(t, calls[0].sql, pgx.Identifier{"other_events"}.Sanitize(), "insert should target the configured table")
}

func TestClose(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		closeDelay time.Duration

		wantErr bool
	}{
		"successful close": {},
		"delayed close": {
			closeDelay: 1 * time.Second,
		},
		"blocking close": {
			closeDelay: 15 * time.Second,
			wantErr:    true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			pool := &mockDBPool{closeDelay: tc.closeDelay}

			sink, err := events.Connect(t.Context(), events.Config{}, events.WithNewPool(mockNewDBPool(t, pool)))
			require.NoError(t, err, "Setup: Connect should not return an error")

			err = sink.Close()
			if tc.wantErr {
				require.Error(t, err, "expected error on close")
				return
			}
			require.NoError(t, err, "Close should not return an error")

			// No error after second close
			require.NoError(t, sink.Close(), "Close should not error on second call")
		})
	}
}

func mockNewDBPool(t *testing.T, pool *mockDBPool) func(ctx context.Context, dsn string) (events.DBPool, error) {
	t.Helper()
	return func(ctx context.Context, dsn string) (events.DBPool, error) {
		// If dsn port is negative, simulate a connection error
		_, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, err
		}

		return pool, nil
	}
}

type execCall struct {
	sql  string
	args []any
}

type mockDBPool struct {
	execErr    error
	closeDelay time.Duration

	mu    sync.Mutex
	calls []execCall
}

func (m *mockDBPool) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, execCall{sql: sql, args: arguments})
	return pgconn.CommandTag{}, m.execErr
}

func (m *mockDBPool) Close() {
	if m.closeDelay > 0 {
		time.Sleep(m.closeDelay)
	}
}

func (m *mockDBPool) execCalls() []execCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]execCall(nil), m.calls...)
}
