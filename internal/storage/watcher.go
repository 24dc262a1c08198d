package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/baysumehmet/botdeck/internal/logging"
)

// watchDebounce coalesces bursts of filesystem events. SQLite in WAL mode
// touches the db, -wal and -shm files on every commit.
const watchDebounce = 100 * time.Millisecond

// selfSaveWindow is how long after NotifySave external changes are ignored,
// so our own writes do not bounce back as reload prompts.
const selfSaveWindow = 2 * time.Second

// Watcher reports external changes to the state database. Another panel
// instance writing the same db shows up as a callback here.
type Watcher struct {
	db       *DB
	onChange func()
	logger   *slog.Logger

	mu       sync.Mutex
	lastSeen int64
	lastSave time.Time

	fsw      *fsnotify.Watcher
	debounce *time.Timer
	cancel   context.CancelFunc
}

// NewWatcher creates a watcher for db. onChange fires on the watcher's
// goroutine after each debounced external modification.
func NewWatcher(db *DB, onChange func()) *Watcher {
	return &Watcher{
		db:       db,
		onChange: onChange,
		logger:   logging.ForComponent(logging.CompStorage),
	}
}

// Start begins watching. Returns an error if the filesystem watch cannot be
// established.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: WAL checkpoints replace files rather than
	// rewriting them in place, which drops per-file watches.
	if err := fsw.Add(filepath.Dir(w.db.Path())); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw
	w.db.setOnSave(w.NotifySave)

	last, err := w.db.LastModified()
	if err == nil {
		w.mu.Lock()
		w.lastSeen = last
		w.mu.Unlock()
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	w.logger.Info("storage_watcher_started", "path", w.db.Path())
	return nil
}

// Stop halts the watcher and releases the filesystem watch.
func (w *Watcher) Stop() {
	w.db.setOnSave(nil)
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()
}

// NotifySave marks a save we performed ourselves. Changes observed within
// the self-save window are not reported.
func (w *Watcher) NotifySave() {
	w.mu.Lock()
	w.lastSave = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) loop(ctx context.Context) {
	base := filepath.Base(w.db.Path())
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if name != base && name != base+"-wal" {
				continue
			}
			w.scheduleCheck()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("storage_watcher_error", "error", err)
		}
	}
}

// scheduleCheck debounces the change check.
func (w *Watcher) scheduleCheck() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(watchDebounce, w.check)
}

// check compares the metadata stamp against the last value we saw and fires
// onChange for genuinely external modifications.
func (w *Watcher) check() {
	current, err := w.db.LastModified()
	if err != nil {
		w.logger.Warn("storage_watcher_read_failed", "error", err)
		return
	}

	w.mu.Lock()
	external := current != w.lastSeen && time.Since(w.lastSave) > selfSaveWindow
	w.lastSeen = current
	w.mu.Unlock()

	if external {
		w.logger.Debug("storage_changed_externally", "stamp", current)
		w.onChange()
	}
}
