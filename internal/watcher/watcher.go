// Package watcher observes file creation under a directory tree and hands
// settled, recognizable files to a callback.
//
// A started watcher runs two goroutines. The reader drains fsnotify, filters
// events and queues accepted paths in arrival order; the dispatcher waits
// the settle delay after each create event and invokes the callback. Later
// write events do not extend the wait. The reader therefore never blocks on
// classification work.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/registry"
)

// DefaultSettleDelay is the pause between an event and its dispatch.
const DefaultSettleDelay = 100 * time.Millisecond

var (
	// ErrStopTimeout is returned when the watcher goroutines did not exit in time.
	ErrStopTimeout = errors.New("watcher did not stop within timeout; manual process termination may be required")
	// ErrEventStreamClosed is the fatal error recorded when fsnotify stops delivering events.
	ErrEventStreamClosed = errors.New("filesystem event stream closed")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logging.NewComponentLogger(logger, "watcher") }
}

// WithSettleDelay overrides DefaultSettleDelay. Zero dispatches immediately.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.settleDelay = d
		}
	}
}

type pending struct {
	path       string
	receivedAt time.Time
}

// Watcher is single use: create a new one for every watch session.
type Watcher struct {
	registry    *registry.Registry
	logger      *slog.Logger
	settleDelay time.Duration

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	base     string
	onCreate func(string)
	started  bool
	err      error
	queue    []pending

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New constructs an idle watcher.
func New(reg *registry.Registry, opts ...Option) *Watcher {
	w := &Watcher{
		registry:    reg,
		logger:      logging.NewComponentLogger(nil, "watcher"),
		settleDelay: DefaultSettleDelay,
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start watches base and every non-hidden subdirectory outside the category
// directories, then returns. onCreate is called from the dispatcher goroutine.
func (w *Watcher) Start(base string, onCreate func(path string)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(base); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %q: %w", base, err)
	}
	w.fsw = fsw
	w.base = filepath.Clean(base)
	w.onCreate = onCreate
	w.started = true

	entries, err := os.ReadDir(w.base)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() && !fileutil.IsHidden(entry.Name()) {
				w.addTreeLocked(filepath.Join(w.base, entry.Name()), false)
			}
		}
	}

	w.wg.Add(2)
	go w.readLoop(fsw)
	go w.dispatchLoop()
	go func() {
		w.wg.Wait()
		close(w.done)
	}()

	w.logger.Info("watcher started",
		logging.String(logging.FieldEventType, "watcher_started"),
		logging.String(logging.FieldPath, w.base),
		logging.Duration("settle_delay", w.settleDelay),
	)
	return nil
}

// Stop signals both goroutines and waits up to timeout for them to exit.
// Queued events that were not dispatched yet are dropped. The fsnotify
// handle is released even when ErrStopTimeout is returned.
func (w *Watcher) Stop(timeout time.Duration) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	fsw := w.fsw
	dropped := len(w.queue)
	w.mu.Unlock()

	w.halt()
	released := make(chan struct{})
	go func() {
		_ = fsw.Close()
		<-w.done
		close(released)
	}()

	select {
	case <-released:
		w.logger.Info("watcher stopped",
			logging.String(logging.FieldEventType, "watcher_stopped"),
			logging.Int("dropped_events", dropped),
		)
		return nil
	case <-time.After(timeout):
		logging.WarnWithContext(w.logger, "watcher did not stop in time", "watcher_stop_timeout",
			logging.Duration("timeout", timeout),
			logging.String(logging.FieldErrorHint, "a move may be stuck on a slow filesystem; restart the process if it lingers"),
			logging.String(logging.FieldImpact, "an orphaned background goroutine may linger"),
		)
		return ErrStopTimeout
	}
}

// Done is closed once both goroutines have exited, after Stop or a fatal failure.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Err returns the fatal failure that ended the watcher, if any.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// pending reports how many accepted events wait for dispatch.
func (w *Watcher) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Watcher) halt() {
	w.quitOnce.Do(func() { close(w.quit) })
}

func (w *Watcher) fail(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
	w.halt()
}

func (w *Watcher) readLoop(fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	events, errs := fsw.Events, fsw.Errors
	for {
		select {
		case <-w.quit:
			return
		case event, ok := <-events:
			if !ok {
				select {
				case <-w.quit:
				default:
					logging.ErrorWithContext(w.logger, "filesystem event stream closed", "watcher_failed",
						logging.String(logging.FieldErrorHint, "check inotify limits and that the watch directory still exists"),
					)
					w.fail(ErrEventStreamClosed)
				}
				return
			}
			w.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.handleError(err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	path := filepath.Clean(event.Name)
	if fileutil.IsHidden(path) {
		return
	}
	info, err := os.Lstat(path)
	if err != nil {
		w.logger.Debug("created path vanished before inspection", logging.String(logging.FieldPath, path), logging.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if info.IsDir() {
		w.addTreeLocked(path, true)
		return
	}
	w.enqueueLocked(path, info.Mode())
}

func (w *Watcher) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		logging.WarnWithContext(w.logger, "filesystem event queue overflowed", "watcher_overflow",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise fs.inotify.max_queued_events or run a sweep"),
			logging.String(logging.FieldImpact, "some new files were not seen; the next sweep picks them up"),
		)
		return
	}
	logging.WarnWithContext(w.logger, "filesystem watcher error", "watcher_error",
		logging.Error(err),
		logging.String(logging.FieldImpact, "some events may have been missed"),
	)
}

// accepts reports whether a regular file at path should be dispatched.
func (w *Watcher) accepts(path string, mode fs.FileMode) bool {
	if !mode.IsRegular() || fileutil.IsHidden(path) {
		return false
	}
	if w.registry.InCategoryDir(w.base, path) {
		return false
	}
	return w.registry.HasRecognizedSuffix(path)
}

func (w *Watcher) enqueueLocked(path string, mode fs.FileMode) {
	if !w.accepts(path, mode) {
		return
	}
	w.queue = append(w.queue, pending{path: path, receivedAt: time.Now()})
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// addTreeLocked watches dir and its non-hidden subdirectories. Category
// directories are skipped. For directories that appeared while running,
// files already inside are queued since their Create events were missed.
func (w *Watcher) addTreeLocked(dir string, queueFiles bool) {
	if w.registry.IsCategoryDir(w.base, dir) || w.registry.InCategoryDir(w.base, dir) {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && fileutil.IsHidden(path) {
				return filepath.SkipDir
			}
			if addErr := w.fsw.Add(path); addErr != nil {
				if errors.Is(addErr, fsnotify.ErrClosed) {
					return filepath.SkipAll
				}
				logging.WarnWithContext(w.logger, "failed to watch subdirectory", "watch_add_failed",
					logging.String(logging.FieldPath, path),
					logging.Error(addErr),
					logging.String(logging.FieldErrorHint, "check fs.inotify.max_user_watches and directory permissions"),
					logging.String(logging.FieldImpact, "new files in this directory are only picked up by a sweep"),
				)
				return filepath.SkipDir
			}
			return nil
		}
		if queueFiles {
			w.enqueueLocked(path, d.Type())
		}
		return nil
	})
}

func (w *Watcher) pop() (pending, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return pending{}, false
	}
	next := w.queue[0]
	w.queue[0] = pending{}
	w.queue = w.queue[1:]
	return next, true
}

func (w *Watcher) dispatchLoop() {
	defer w.wg.Done()
	for {
		item, ok := w.pop()
		if !ok {
			select {
			case <-w.quit:
				return
			case <-w.wake:
				continue
			}
		}
		if wait := time.Until(item.receivedAt.Add(w.settleDelay)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-w.quit:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		select {
		case <-w.quit:
			return
		default:
		}
		if w.onCreate != nil {
			w.onCreate(item.path)
		}
	}
}
