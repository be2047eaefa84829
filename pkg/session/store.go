package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/pointlog/internal/observability"
	"github.com/harun/pointlog/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Store maps session ids to their calculation history. The in-memory history
// is authoritative; Files is consulted lazily on first access and rewritten
// after every append.
type Store struct {
	files  *Files
	logger zerolog.Logger
	locks  *keyedLocks

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	records []Record
	// loaded is false for entries created by GetOrCreate that have not yet
	// been reconciled with the session file.
	loaded  bool
	// dirty is set while the session file lags behind records because the
	// last save failed. Dirty entries are never evicted.
	dirty   bool
	touched atomic.Int64
}

func (e *entry) touch() {
	e.touched.Store(time.Now().UnixNano())
}

// NewStore creates an empty store backed by files.
func NewStore(files *Files, logger zerolog.Logger) *Store {
	observability.EnsureRegistered()

	return &Store{
		files:    files,
		logger:   logger.With().Str("component", "session_store").Logger(),
		locks:    newKeyedLocks(),
		sessions: make(map[string]*entry),
	}
}

// Files returns the lifecycle controller backing the store.
func (s *Store) Files() *Files {
	return s.files
}

// GetOrCreate returns the in-memory history of id oldest-first, creating an
// empty session if none is resident. It never reads the disk; an invalid id
// yields an empty history and creates nothing.
func (s *Store) GetOrCreate(id string) []Record {
	if ValidateID(id) != nil {
		return []Record{}
	}

	s.mu.RLock()
	e, ok := s.sessions[id]
	if ok {
		e.touch()
		out := cloned(e.records)
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.sessions[id]; !ok {
		e = &entry{}
		s.sessions[id] = e
		observability.SetActiveSessions(len(s.sessions))
	}
	e.touch()
	return cloned(e.records)
}

// Append adds rec to the end of the session and rewrites the session file.
// When the write fails the record is still visible in memory and a
// *PersistenceError is returned for the caller to log.
func (s *Store) Append(ctx context.Context, id string, rec Record) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	ctx = tracing.WithSessionID(ctx, id)
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.append", attribute.String("session_id", id))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	unlock := s.locks.lock(id)
	defer unlock()

	e := s.ensureLoaded(ctx, id)

	s.mu.Lock()
	e.records = append(e.records, rec)
	snapshot := cloned(e.records)
	s.mu.Unlock()

	err := s.files.Save(ctx, id, snapshot)

	s.mu.Lock()
	e.dirty = err != nil
	s.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Msg("Failed to persist session, keeping in-memory history")
		return err
	}

	logger.Debug().Int("records", len(snapshot)).Msg("Record appended")
	return nil
}

// History returns the session newest-first, loading it from disk if it is
// not resident. A missing or unreadable file yields an empty session.
func (s *Store) History(ctx context.Context, id string) []Record {
	if ValidateID(id) != nil {
		return []Record{}
	}

	ctx = tracing.WithSessionID(ctx, id)
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.history", attribute.String("session_id", id))
	defer span.End()

	unlock := s.locks.lock(id)
	defer unlock()

	e := s.ensureLoaded(ctx, id)

	s.mu.RLock()
	out := reversed(e.records)
	s.mu.RUnlock()

	span.SetAttributes(attribute.Int("records", len(out)))
	return out
}

// Clear removes the session from memory and deletes its file. It reports
// whether either existed. Delete failures are logged, not returned.
func (s *Store) Clear(ctx context.Context, id string) bool {
	if ValidateID(id) != nil {
		return false
	}

	ctx = tracing.WithSessionID(ctx, id)
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.clear", attribute.String("session_id", id))
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	unlock := s.locks.lock(id)
	defer unlock()

	s.mu.Lock()
	_, resident := s.sessions[id]
	delete(s.sessions, id)
	observability.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()

	removed, err := s.files.Remove(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Msg("Failed to delete session file")
	}

	cleared := resident || removed
	span.SetAttributes(attribute.Bool("cleared", cleared))
	if cleared {
		logger.Info().Msg("Session cleared")
	}
	return cleared
}

// Evict drops a resident session from memory without touching its file. The
// next access reloads it from disk. Sessions whose last save failed stay
// resident, since their file no longer holds the full history.
func (s *Store) Evict(id string) bool {
	unlock := s.locks.lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || e.dirty {
		return false
	}
	delete(s.sessions, id)
	observability.SetActiveSessions(len(s.sessions))
	return true
}

// IdleSince returns resident sessions not accessed since cutoff.
func (s *Store) IdleSince(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, e := range s.sessions {
		if e.touched.Load() < cutoff.UnixNano() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of resident sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ensureLoaded returns the resident entry for id, reading the session file
// first if needed. Callers hold the lock for id.
func (s *Store) ensureLoaded(ctx context.Context, id string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[id]
	loaded := ok && e.loaded
	s.mu.RUnlock()
	if loaded {
		e.touch()
		return e
	}

	logger := tracing.LoggerFromContext(ctx, s.logger)
	records, found, err := s.files.Load(ctx, id)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("Failed to load session, starting empty")
		records = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.sessions[id]; !ok {
		e = &entry{}
		s.sessions[id] = e
		observability.SetActiveSessions(len(s.sessions))
	}
	if !e.loaded {
		e.records = append(records, e.records...)
		e.loaded = true
		if found {
			logger.Debug().
				Int("records", len(e.records)).
				Msg("Session restored from disk")
		}
	}
	e.touch()
	return e
}

// Dirty reports whether the session is resident with changes its file is
// missing.
func (s *Store) Dirty(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return ok && e.dirty
}

func (s *Store) lastAccess(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, e.touched.Load()), true
}
