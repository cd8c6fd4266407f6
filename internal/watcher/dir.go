package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Handler receives the changes accumulated since its previous call.
type Handler func(ctx context.Context, events []FileEvent)

// DirWatcher watches a set of directories (non-recursively) and calls its
// handler for descriptor changes. Batches that arrive while the limiter
// is holding a call back are merged into that call.
type DirWatcher struct {
	opts      Options
	handler   Handler
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	limiter   *rate.Limiter

	mu      sync.Mutex
	batch   map[string]FileEvent
	stopped bool

	signal   chan struct{}
	stopCh   chan struct{}
	triggers atomic.Uint64
}

// New creates a watcher. Call Start to begin watching.
func New(opts Options, handler Handler) (*DirWatcher, error) {
	if handler == nil {
		return nil, errors.New("watcher handler is required")
	}
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}

	return &DirWatcher{
		opts:      opts,
		handler:   handler,
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		limiter:   rate.NewLimiter(limit, 1),
		batch:     make(map[string]FileEvent),
		signal:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start watches dirs until ctx is cancelled or Stop is called. It blocks.
func (w *DirWatcher) Start(ctx context.Context, dirs ...string) error {
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolve absolute path: %w", err)
		}
		if err := w.fsWatcher.Add(abs); err != nil {
			return fmt.Errorf("failed to watch %s: %w", abs, err)
		}
		slog.Debug("watch_started", slog.String("dir", abs))
	}

	go w.collect(ctx)
	go w.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *DirWatcher) handleEvent(event fsnotify.Event) {
	if !w.opts.relevant(event.Name) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: event.Name, Operation: op, Timestamp: time.Now()})
}

// collect folds debounced batches into the pending set.
func (w *DirWatcher) collect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.mu.Lock()
			for _, e := range events {
				w.batch[e.Path] = e
			}
			w.mu.Unlock()

			select {
			case w.signal <- struct{}{}:
			default:
			}
		}
	}
}

// dispatch calls the handler, at most once per MinInterval.
func (w *DirWatcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.signal:
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		events := w.drain()
		if len(events) == 0 {
			continue
		}
		n := w.triggers.Add(1)
		slog.Debug("watch_triggered",
			slog.Int("changes", len(events)),
			slog.Uint64("trigger", n))
		w.handler(ctx, events)
	}
}

func (w *DirWatcher) drain() []FileEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	events := make([]FileEvent, 0, len(w.batch))
	for _, e := range w.batch {
		events = append(events, e)
	}
	w.batch = make(map[string]FileEvent)
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// Triggers returns the number of handler calls so far.
func (w *DirWatcher) Triggers() uint64 {
	return w.triggers.Load()
}

// Stop stops the watcher and releases resources.
// Safe to call multiple times.
func (w *DirWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}
