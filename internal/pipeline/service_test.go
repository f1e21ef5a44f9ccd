package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sbtplatform/quote-splitter/internal/config"
	"github.com/sbtplatform/quote-splitter/internal/pipeline"
	"github.com/sbtplatform/quote-splitter/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	t.Parallel()

	store, _ := newDirStore(t, nil)
	sink := &recordingSink{}
	rules := &staticWatcherRules{}

	runner, err := pipeline.New(store, sink, rules)
	require.NoError(t, err, "Setup: New should not return an error")

	_, err = pipeline.NewService(runner, rules, time.Minute)
	require.NoError(t, err, "NewService should not return an error with valid arguments")

	_, err = pipeline.NewService(nil, rules, time.Minute)
	require.Error(t, err, "NewService should reject a nil runner")

	_, err = pipeline.NewService(runner, nil, time.Minute)
	require.Error(t, err, "NewService should reject a nil watcher")

	_, err = pipeline.NewService(runner, rules, 0)
	require.Error(t, err, "NewService should reject a zero interval")
}

func TestServiceRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	store, dir := newDirStore(t, map[string]string{
		"20240101120000_Q1.json": `{"QuoteId": "Q1", "Vehicle": {"Reg": "AB12CDE"}}`,
	})
	sink := &recordingSink{}
	rules := newLoadedRules(t, `{"key_field": "QuoteId", "extract_objects": ["Vehicle"]}`)

	runner, err := pipeline.New(store, sink, rules)
	require.NoError(t, err, "Setup: New should not return an error")

	service, err := pipeline.NewService(runner, rules, time.Hour)
	require.NoError(t, err, "Setup: NewService should not return an error")

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		errCh <- service.Run(ctx)
	}()

	// The initial run happens before the first tick.
	require.Eventually(t, func() bool {
		contents, err := testutils.GetDirContents(t, dir)
		if err != nil {
			return false
		}
		_, ok := contents["Original/20240101120000_Q1.json"]
		return ok
	}, 5*time.Second, 50*time.Millisecond, "initial run should archive the quote")

	cancel()
	require.NoError(t, <-errCh, "Run should return nil on cancellation")
}

func TestServiceRunsOnInterval(t *testing.T) {
	t.Parallel()

	store, dir := newDirStore(t, nil)
	sink := &recordingSink{}
	rules := newLoadedRules(t, `{"key_field": "QuoteId", "extract_objects": ["Vehicle"]}`)

	runner, err := pipeline.New(store, sink, rules)
	require.NoError(t, err, "Setup: New should not return an error")

	service, err := pipeline.NewService(runner, rules, 100*time.Millisecond)
	require.NoError(t, err, "Setup: NewService should not return an error")

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() {
		errCh <- service.Run(ctx)
	}()

	// Drop a quote after the initial run; a later tick must pick it up.
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "20240101120000_Q1.json"),
		[]byte(`{"QuoteId": "Q1", "Vehicle": {"Reg": "AB12CDE"}}`), 0600),
		"Setup: couldn't write quote file")

	require.Eventually(t, func() bool {
		contents, err := testutils.GetDirContents(t, dir)
		if err != nil {
			return false
		}
		_, ok := contents["Vehicle/20240101120000_Q1_Vehicle.json"]
		return ok
	}, 5*time.Second, 50*time.Millisecond, "a later tick should split the new quote")

	cancel()
	require.NoError(t, <-errCh, "Run should return nil on cancellation")
	assert.GreaterOrEqual(t, len(sink.runIDs()), 2, "each tick should be a distinct run")
}

func TestServiceWatchFailure(t *testing.T) {
	t.Parallel()

	store, _ := newDirStore(t, nil)
	sink := &recordingSink{}
	rules := &staticWatcherRules{watchErr: fmt.Errorf("error requested by test")}

	runner, err := pipeline.New(store, sink, rules)
	require.NoError(t, err, "Setup: New should not return an error")

	service, err := pipeline.NewService(runner, rules, time.Minute)
	require.NoError(t, err, "Setup: NewService should not return an error")

	require.Error(t, service.Run(t.Context()), "Run should fail when the watcher cannot start")
}

// newLoadedRules writes split rules to a temp file and returns a manager for them.
func newLoadedRules(t *testing.T, content string) *config.Manager {
	t.Helper()

	rulesPath := filepath.Join(t.TempDir(), "split-rules.json")
	require.NoError(t, os.WriteFile(rulesPath, []byte(content), 0600), "Setup: couldn't write split rules")
	return config.New(rulesPath)
}

// staticWatcherRules is a rules provider with a controllable watcher.
type staticWatcherRules struct {
	watchErr error
}

func (r *staticWatcherRules) KeyField() string         { return "QuoteId" }
func (r *staticWatcherRules) ExtractObjects() []string { return nil }

func (r *staticWatcherRules) Watch(ctx context.Context) (<-chan struct{}, <-chan error, error) {
	if r.watchErr != nil {
		return nil, nil, r.watchErr
	}

	changes := make(chan struct{})
	errs := make(chan error)
	go func() {
		<-ctx.Done()
		close(changes)
		close(errs)
	}()
	return changes, errs, nil
}
