package ingest

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// writeDebounce coalesces bursts of appends (e.g. streamed tool output)
// into a single change notification.
const writeDebounce = 300 * time.Millisecond

// ChangeFunc is invoked, grouped per session, whenever a watched file has
// new complete lines. lines is the raw, unparsed JSONL payload — the
// watcher itself does not parse; it only signals.
type ChangeFunc func(sessionID string, lines [][]byte)

// DeletedFunc is invoked when a watched file is removed or renamed away.
type DeletedFunc func(sessionID string)

type watchEntry struct {
	sessionID string
	path      string
	position  int64
	exists    bool
	debounce  *time.Timer
}

// Watcher observes a set of (session_id, path, position) watches and emits
// change/delete notifications. It is cross-platform via
// fsnotify; callers needing a polling fallback should additionally invoke
// PollOnce on a ticker (e.g. on platforms where directory events for file
// creation are unreliable).
type Watcher struct {
	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	byPath    map[string]*watchEntry
	watchedir map[string]bool // directories added to fsw, for creation detection

	onChange ChangeFunc
	onDelete DeletedFunc

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Watcher. Call Start to begin processing fsnotify events.
func New(onChange ChangeFunc, onDelete DeletedFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:       fsw,
		byPath:    make(map[string]*watchEntry),
		watchedir: make(map[string]bool),
		onChange:  onChange,
		onDelete:  onDelete,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Add begins watching path for sessionID, starting at position. If path
// does not yet exist, the parent directory is watched so its creation is
// detected.
func (w *Watcher) Add(sessionID, path string, position int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := &watchEntry{sessionID: sessionID, path: path, position: position}
	w.byPath[path] = entry

	dir := filepath.Dir(path)
	if !w.watchedir[dir] {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.watchedir[dir] = true
	}

	if err := w.fsw.Add(path); err == nil {
		entry.exists = true
	}
	return nil
}

// Remove stops watching path. It does not remove the parent directory
// watch, which may still be serving other entries.
func (w *Watcher) Remove(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.byPath[path]; ok {
		if e.debounce != nil {
			e.debounce.Stop()
		}
		delete(w.byPath, path)
		_ = w.fsw.Remove(path)
	}
}

// Start runs the event loop until Stop is called. Intended to be run in its
// own goroutine.
func (w *Watcher) Start() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Errors are non-fatal; the loop keeps serving other watches.
		}
	}
}

// Stop halts the event loop and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.fsw.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.mu.Lock()
	entry, known := w.byPath[event.Name]
	w.mu.Unlock()

	switch {
	case known && event.Has(fsnotify.Write):
		w.scheduleSignal(entry)
	case known && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)):
		w.mu.Lock()
		if entry.debounce != nil {
			entry.debounce.Stop()
		}
		entry.exists = false
		w.mu.Unlock()
		if w.onDelete != nil {
			w.onDelete(entry.sessionID)
		}
	case event.Has(fsnotify.Create):
		w.mu.Lock()
		e, pending := w.byPath[event.Name]
		if pending && !e.exists {
			if err := w.fsw.Add(event.Name); err == nil {
				e.exists = true
			}
		}
		w.mu.Unlock()
		if pending {
			w.scheduleSignal(e)
		}
	}
}

func (w *Watcher) scheduleSignal(entry *watchEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if entry.debounce != nil {
		entry.debounce.Stop()
	}
	entry.debounce = time.AfterFunc(writeDebounce, func() {
		w.readAndNotify(entry)
	})
}

func (w *Watcher) readAndNotify(entry *watchEntry) {
	w.mu.Lock()
	path := entry.path
	offset := entry.position
	w.mu.Unlock()

	res, err := ReadNewLines(path, offset)
	if err != nil {
		return
	}

	w.mu.Lock()
	entry.position = res.NewOffset
	w.mu.Unlock()

	if len(res.Lines) > 0 && w.onChange != nil {
		w.onChange(entry.sessionID, res.Lines)
	}
}

// Position returns the current read offset for path, for callers that
// need to persist it after a notified batch. Returns (0, false) if path
// is not watched.
func (w *Watcher) Position(path string) (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.byPath[path]
	if !ok {
		return 0, false
	}
	return e.position, true
}

// PollOnce re-checks every known path for creation, serving as a polling
// fallback on platforms where directory-creation events are unreliable.
// It is safe to call concurrently with Start's event loop.
func (w *Watcher) PollOnce() {
	w.mu.Lock()
	pending := make([]*watchEntry, 0)
	for _, e := range w.byPath {
		if !e.exists {
			pending = append(pending, e)
		}
	}
	w.mu.Unlock()

	for _, e := range pending {
		w.mu.Lock()
		if err := w.fsw.Add(e.path); err == nil {
			e.exists = true
		}
		w.mu.Unlock()
		if e.exists {
			w.scheduleSignal(e)
		}
	}
}
