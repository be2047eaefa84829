package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher evicts resident sessions whose file is written or removed by
// another process, such as the sessions CLI. The next access reloads the
// session from disk. Saves made by the Store itself rename a temporary file
// into place and are not reported.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once

	// onEvict is called after each eviction attempt; used by tests.
	onEvict func(id string, evicted bool)
}

// NewWatcher starts watching the store's sessions directory, which must exist.
func NewWatcher(store *Store, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(store.Files().Dir()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch sessions directory: %w", err)
	}

	w := &Watcher{
		store:   store,
		watcher: fsw,
		logger:  logger.With().Str("component", "session_watcher").Logger(),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("File watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, FileExt) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) {
		return
	}

	id := strings.TrimSuffix(name, FileExt)
	if ValidateID(id) != nil {
		return
	}

	evicted := w.store.Evict(id)
	if evicted {
		w.logger.Debug().
			Str("session_id", id).
			Str("op", event.Op.String()).
			Msg("Session file changed externally, evicted")
	}
	if w.onEvict != nil {
		w.onEvict(id, evicted)
	}
}
