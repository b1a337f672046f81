package host

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/studykit/pkg/eligibility"
	"github.com/bft-labs/studykit/pkg/log"
)

// DefaultDebounceDelay is how long the watcher waits after the last change
// to the permission file before re-reading it.
const DefaultDebounceDelay = 100 * time.Millisecond

// ConsentWatcher watches the permission file and reports when consent is
// withdrawn. Consent is checked once when the watch starts and after every
// change. The callback fires at most once.
type ConsentWatcher struct {
	path        string
	permissions eligibility.Permissions
	onRevoked   func(ctx context.Context)
	delay       time.Duration
	logger      log.Logger

	mu       sync.Mutex
	debounce *time.Timer
	fired    bool
}

// NewConsentWatcher creates a watcher for path. permissions is queried after
// each change; a query that reports no consent triggers onRevoked.
func NewConsentWatcher(path string, permissions eligibility.Permissions, onRevoked func(ctx context.Context), logger log.Logger) *ConsentWatcher {
	return &ConsentWatcher{
		path:        path,
		permissions: permissions,
		onRevoked:   onRevoked,
		delay:       DefaultDebounceDelay,
		logger:      log.OrNoop(logger),
	}
}

// Run watches until ctx is done. It returns an error only when the watch
// cannot be established.
func (w *ConsentWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Debug("watching consent", log.String("path", w.path))

	// Consent may have been withdrawn before the watch was registered.
	w.check(ctx)

	defer w.stopDebounce()
	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.debounceCheck(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("consent watcher error", log.Err(err))
		}
	}
}

func (w *ConsentWatcher) debounceCheck(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, func() {
		w.check(ctx)
	})
}

func (w *ConsentWatcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}

func (w *ConsentWatcher) check(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	consent, err := w.permissions.QueryConsent(ctx)
	if err != nil {
		// A half-written file is common while editors save.
		w.logger.Warn("consent re-check failed", log.Err(err))
		return
	}
	if consent.Granted {
		return
	}

	w.mu.Lock()
	if w.fired {
		w.mu.Unlock()
		return
	}
	w.fired = true
	w.mu.Unlock()

	w.logger.Info("data permissions revoked")
	w.onRevoked(ctx)
}
