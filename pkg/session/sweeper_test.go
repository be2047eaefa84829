package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSweeperDefaults(t *testing.T) {
	w, err := NewSweeper(newTestStore(t), SweeperConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultSweepSchedule, w.cfg.Schedule)
	assert.Equal(t, DefaultIdleAfter, w.cfg.IdleAfter)
}

func TestNewSweeperInvalidConfig(t *testing.T) {
	store := newTestStore(t)

	_, err := NewSweeper(store, SweeperConfig{Schedule: "not a schedule"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewSweeper(store, SweeperConfig{IdleAfter: -time.Minute}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSweeperStartStop(t *testing.T) {
	w, err := NewSweeper(newTestStore(t), SweeperConfig{Schedule: "@every 1h"}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, w.Start())
	assert.Error(t, w.Start())
	require.NoError(t, w.Stop())
	assert.Error(t, w.Stop())
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "abc", sampleRecord(1)))
	store.GetOrCreate("placeholder")

	w, err := NewSweeper(store, SweeperConfig{IdleAfter: time.Minute}, zerolog.Nop())
	require.NoError(t, err)

	result := w.Sweep(ctx)
	assert.Equal(t, SweepResult{}, result)
	assert.Equal(t, 2, store.Len())

	w.now = func() time.Time { return time.Now().Add(time.Hour) }
	result = w.Sweep(ctx)
	assert.Equal(t, 2, result.Evicted)
	assert.Equal(t, 0, store.Len())

	// Evicted history is still on disk.
	assert.Len(t, store.History(ctx, "abc"), 1)
}

func TestSweepKeepsUnsavedSessions(t *testing.T) {
	files := NewFiles(filepath.Join(t.TempDir(), "missing"), zerolog.Nop())
	store := NewStore(files, zerolog.Nop())
	ctx := context.Background()
	require.Error(t, store.Append(ctx, "abc", sampleRecord(1)))

	w, err := NewSweeper(store, SweeperConfig{IdleAfter: time.Nanosecond}, zerolog.Nop())
	require.NoError(t, err)
	w.now = func() time.Time { return time.Now().Add(time.Hour) }

	result := w.Sweep(ctx)
	assert.Equal(t, 0, result.Evicted)

	history := store.History(ctx, "abc")
	require.Len(t, history, 1)
	assert.Equal(t, 1.0, history[0].X)
}

func TestSweepExpiresOldFiles(t *testing.T) {
	files := newTestFiles(t)
	ctx := context.Background()
	require.NoError(t, files.Save(ctx, "stale", []Record{sampleRecord(1)}))
	require.NoError(t, files.Save(ctx, "fresh", []Record{sampleRecord(2)}))

	path, err := files.Path("stale")
	require.NoError(t, err)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	store := NewStore(files, zerolog.Nop())
	w, err := NewSweeper(store, SweeperConfig{IdleAfter: time.Minute, Retention: 24 * time.Hour}, zerolog.Nop())
	require.NoError(t, err)

	result := w.Sweep(ctx)
	assert.Equal(t, 1, result.Expired)

	ids, err := files.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestSweepKeepsRecentlyReadSessions(t *testing.T) {
	files := newTestFiles(t)
	ctx := context.Background()
	require.NoError(t, files.Save(ctx, "reader", []Record{sampleRecord(1)}))

	path, err := files.Path("reader")
	require.NoError(t, err)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	store := NewStore(files, zerolog.Nop())
	require.Len(t, store.History(ctx, "reader"), 1)

	w, err := NewSweeper(store, SweeperConfig{IdleAfter: time.Hour, Retention: 24 * time.Hour}, zerolog.Nop())
	require.NoError(t, err)

	result := w.Sweep(ctx)
	assert.Equal(t, 0, result.Expired)
	assert.Len(t, store.History(ctx, "reader"), 1)
}
