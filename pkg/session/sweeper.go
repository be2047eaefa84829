package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harun/pointlog/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultSweepSchedule = "@every 10m"
	DefaultIdleAfter     = 30 * time.Minute
)

// SweeperConfig controls background housekeeping of a Store.
type SweeperConfig struct {
	// Schedule is a standard cron expression or descriptor such as "@every 5m".
	Schedule string
	// IdleAfter evicts resident sessions not accessed for this long.
	IdleAfter time.Duration
	// Retention deletes sessions whose file has not been written for this
	// long. Zero keeps files forever.
	Retention time.Duration
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Evicted int
	Expired int
}

// Sweeper periodically evicts idle sessions from memory and, when retention
// is configured, clears sessions whose files are too old. Sessions whose
// last save failed are kept in memory.
type Sweeper struct {
	store  *Store
	cfg    SweeperConfig
	cron   *cron.Cron
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

// NewSweeper validates cfg and prepares a sweeper. It does not start it.
func NewSweeper(store *Store, cfg SweeperConfig, logger zerolog.Logger) (*Sweeper, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSweepSchedule
	}
	if cfg.IdleAfter == 0 {
		cfg.IdleAfter = DefaultIdleAfter
	}
	if cfg.IdleAfter < 0 || cfg.Retention < 0 {
		return nil, fmt.Errorf("sweeper durations must not be negative")
	}

	w := &Sweeper{
		store:  store,
		cfg:    cfg,
		cron:   cron.New(),
		logger: logger.With().Str("component", "session_sweeper").Logger(),
		now:    time.Now,
	}

	if _, err := w.cron.AddFunc(cfg.Schedule, func() { w.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}

	return w, nil
}

// Start begins running sweeps on the configured schedule.
func (w *Sweeper) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("sweeper is already running")
	}
	w.running = true
	w.cron.Start()

	w.logger.Info().
		Str("schedule", w.cfg.Schedule).
		Dur("idle_after", w.cfg.IdleAfter).
		Dur("retention", w.cfg.Retention).
		Msg("Session sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (w *Sweeper) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("sweeper is not running")
	}
	w.running = false
	w.mu.Unlock()

	<-w.cron.Stop().Done()
	w.logger.Info().Msg("Session sweeper stopped")
	return nil
}

// Sweep runs one housekeeping pass immediately.
func (w *Sweeper) Sweep(ctx context.Context) SweepResult {
	var result SweepResult
	now := w.now()

	idleCutoff := now.Add(-w.cfg.IdleAfter)
	for _, id := range w.store.IdleSince(idleCutoff) {
		if w.store.Evict(id) {
			result.Evicted++
			observability.RecordSweep("evicted")
		}
	}

	if w.cfg.Retention > 0 {
		result.Expired = w.expire(ctx, now.Add(-w.cfg.Retention))
	}

	if result.Evicted > 0 || result.Expired > 0 {
		w.logger.Info().
			Int("evicted", result.Evicted).
			Int("expired", result.Expired).
			Msg("Session sweep finished")
	}
	return result
}

func (w *Sweeper) expire(ctx context.Context, cutoff time.Time) int {
	ids, err := w.store.Files().List()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to list sessions for retention")
		return 0
	}

	expired := 0
	for _, id := range ids {
		modTime, err := w.store.Files().ModTime(id)
		if err != nil || !modTime.Before(cutoff) {
			continue
		}
		// A session still being read keeps its file.
		if touched, ok := w.store.lastAccess(id); ok && !touched.Before(cutoff) {
			continue
		}
		if w.store.Dirty(id) {
			continue
		}
		if w.store.Clear(ctx, id) {
			expired++
			observability.RecordSweep("expired")
		}
	}
	return expired
}
