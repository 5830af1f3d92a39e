package fswatch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

type countingReloader struct {
	calls atomic.Int32
}

func (r *countingReloader) Reload() (*schema.Catalog, error) {
	r.calls.Add(1)
	return schema.LoadDefault()
}

func startWatcher(t *testing.T, paths []string, clock clockwork.Clock) *countingReloader {
	t.Helper()
	r := &countingReloader{}
	w, err := NewWatcher(paths, r, 0, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r
}

func TestWatcher_ReloadsAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "flood.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte("kinds: []\n"), 0o600))

	clock := clockwork.NewFakeClock()
	r := startWatcher(t, []string{schemaPath, ""}, clock)

	require.NoError(t, os.WriteFile(schemaPath, []byte("kinds: [a]\n"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1), "debounce timer armed")
	assert.Zero(t, r.calls.Load(), "nothing reloads before the debounce elapses")

	// A late event from the same save re-arms the timer, so keep advancing.
	require.Eventually(t, func() bool {
		clock.Advance(DefaultDebounce)
		return r.calls.Load() > 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "flood.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte("kinds: []\n"), 0o600))

	clock := clockwork.NewFakeClock()
	r := startWatcher(t, []string{schemaPath}, clock)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("unrelated"), 0o600))
	time.Sleep(200 * time.Millisecond)
	clock.Advance(DefaultDebounce)
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, r.calls.Load())
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing", "flood.yaml")}, &countingReloader{}, 0,
		clockwork.NewRealClock(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
