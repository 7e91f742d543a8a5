// Package session drives one watch directory through the Idle, Running and
// Stopping states.
//
// A Session owns the classifier, the backlog scanner and, while running, a
// watcher whose callback feeds the same classifier. State transitions are
// guarded by a single mutex; only Stop blocks, and only up to its timeout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"shelver/internal/classifier"
	"shelver/internal/events"
	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/registry"
	"shelver/internal/sweep"
	"shelver/internal/watcher"
)

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "idle"
	}
}

var (
	ErrAlreadyRunning  = errors.New("session already running")
	ErrNotRunning      = errors.New("session not running")
	ErrBaseMissing     = errors.New("base directory does not exist")
	ErrSweepInProgress = errors.New("sweep already in progress")
	ErrStopping        = errors.New("session is stopping")
)

// StartError reports why a session could not start. The session is Idle afterwards.
type StartError struct {
	Base string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start watching %q: %v", e.Base, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// StopWarning reports a stop whose watcher did not confirm termination.
// The session is Idle regardless.
type StopWarning struct {
	Timeout time.Duration
	Err     error
}

func (e *StopWarning) Error() string {
	return fmt.Sprintf("stop after %s: %v", e.Timeout, e.Err)
}

func (e *StopWarning) Unwrap() error { return e.Err }

// SweepError is the enumeration failure returned by SweepBacklog.
type SweepError = sweep.SweepError

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger shared with the session's components.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.baseLogger = logger }
}

// WithSettleDelay sets the watcher settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Session) { s.settleDelay = d }
}

// WithSweepWorkers bounds sweep concurrency.
func WithSweepWorkers(n int) Option {
	return func(s *Session) { s.sweepWorkers = n }
}

// WithRecorder receives every classification result. source is "watcher" or "sweep".
func WithRecorder(fn func(source string, result classifier.Result)) Option {
	return func(s *Session) { s.recorder = fn }
}

// WithFailureHook is called after the watcher fails and the session has
// returned to Idle.
func WithFailureHook(fn func(base string, err error)) Option {
	return func(s *Session) { s.onFailure = fn }
}

// Session is safe for concurrent use.
type Session struct {
	registry     *registry.Registry
	sink         events.Sink
	baseLogger   *slog.Logger
	logger       *slog.Logger
	settleDelay  time.Duration
	sweepWorkers int
	recorder     func(string, classifier.Result)
	onFailure    func(string, error)

	watchClassifier *classifier.Classifier
	sweepClassifier *classifier.Classifier
	scanner         *sweep.Scanner

	mu      sync.Mutex
	state   State
	base    string
	id      string
	watcher *watcher.Watcher

	sweeping atomic.Bool
}

// New constructs an idle session.
func New(reg *registry.Registry, sink events.Sink, opts ...Option) *Session {
	s := &Session{
		registry:    reg,
		sink:        events.OrDiscard(sink),
		settleDelay: watcher.DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.baseLogger, "session")

	locks := classifier.NewLocks()
	claims := classifier.NewClaims()
	s.watchClassifier = classifier.New(reg, s.sink,
		classifier.WithLogger(s.baseLogger),
		classifier.WithLocks(locks),
		classifier.WithClaims(claims),
		classifier.WithRecorder(s.record("watcher")),
	)
	s.sweepClassifier = classifier.New(reg, s.sink,
		classifier.WithLogger(s.baseLogger),
		classifier.WithLocks(locks),
		classifier.WithClaims(claims),
		classifier.WithRecorder(s.record("sweep")),
	)
	s.scanner = sweep.New(reg, s.sweepClassifier, s.sink,
		sweep.WithLogger(s.baseLogger),
		sweep.WithWorkers(s.sweepWorkers),
	)
	return s
}

func (s *Session) record(source string) func(classifier.Result) {
	return func(r classifier.Result) {
		if s.recorder != nil {
			s.recorder(source, r)
		}
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Base returns the watched directory of the current run, or "" when idle.
func (s *Session) Base() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// ID returns the identifier of the current run, or "" when idle.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Sweeping reports whether a backlog sweep is in flight.
func (s *Session) Sweeping() bool {
	return s.sweeping.Load()
}

// Registry returns the session's registry.
func (s *Session) Registry() *registry.Registry {
	return s.registry
}

// Start creates the category directories under base and arms the watcher.
// It is valid only from Idle.
func (s *Session) Start(base string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return &StartError{Base: base, Err: ErrAlreadyRunning}
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return &StartError{Base: base, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%q is not a directory", abs)
		}
		return &StartError{Base: abs, Err: fmt.Errorf("%w: %w", ErrBaseMissing, err)}
	}

	for name := range s.registry.Categories() {
		dir := filepath.Join(abs, name)
		if err := fileutil.EnsureDir(dir); err != nil {
			return &StartError{Base: abs, Err: err}
		}
		s.sink.Notify("Ensured directory: " + dir)
	}

	w := watcher.New(s.registry,
		watcher.WithLogger(s.baseLogger),
		watcher.WithSettleDelay(s.settleDelay),
	)
	if err := w.Start(abs, func(path string) { s.watchClassifier.ClassifyOnce(path, abs) }); err != nil {
		return &StartError{Base: abs, Err: err}
	}

	s.state = Running
	s.base = abs
	s.id = uuid.NewString()
	s.watcher = w
	s.logger = logging.NewComponentLogger(s.baseLogger, "session").With(logging.String(logging.FieldRunID, s.id))
	go s.superviseWatcher(w)

	s.sink.Notify("Watching " + abs)
	s.logger.Info("session started",
		logging.String(logging.FieldEventType, "session_started"),
		logging.String(logging.FieldPath, abs),
	)
	return nil
}

// Stop halts the watcher, waiting at most timeout. The session is Idle on
// return; a *StopWarning means the watcher did not confirm termination.
func (s *Session) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.state = Stopping
	w := s.watcher
	s.mu.Unlock()

	stopErr := w.Stop(timeout)

	s.mu.Lock()
	s.resetLocked()
	logger := s.logger
	s.mu.Unlock()

	if stopErr != nil {
		s.sink.Notify(fmt.Sprintf("Watcher did not stop within %s; manual process termination may be required", timeout))
		return &StopWarning{Timeout: timeout, Err: stopErr}
	}
	s.sink.Notify("Stopped watching")
	logger.Info("session stopped", logging.String(logging.FieldEventType, "session_stopped"))
	return nil
}

// SweepBacklog classifies the pre-existing files directly under base. It is
// valid while Idle or Running; a call during Stopping returns ErrStopping and
// a concurrent second call is rejected.
func (s *Session) SweepBacklog(ctx context.Context, base string) (int, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer s.sweeping.Store(false)

	abs, err := filepath.Abs(base)
	if err != nil {
		return 0, &SweepError{Err: err}
	}
	s.mu.Lock()
	if s.state == Stopping {
		s.mu.Unlock()
		return 0, ErrStopping
	}
	if s.id != "" {
		ctx = logging.WithRunID(ctx, s.id)
	}
	logger := s.baseLogger
	s.mu.Unlock()

	logging.WithContext(ctx, logging.NewComponentLogger(logger, "session")).Debug("sweep started", logging.String(logging.FieldPath, abs))
	return s.scanner.Scan(ctx, abs)
}

func (s *Session) superviseWatcher(w *watcher.Watcher) {
	<-w.Done()
	err := w.Err()
	if err == nil {
		return
	}

	s.mu.Lock()
	if s.watcher != w || s.state != Running {
		s.mu.Unlock()
		return
	}
	s.state = Stopping
	logger := s.logger
	base := s.base
	s.mu.Unlock()

	_ = w.Stop(time.Second)

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	s.sink.Notify(fmt.Sprintf("Watcher failed: %v", err))
	logging.ErrorWithContext(logger, "watcher failed; session stopped", "session_watcher_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "restart watching once the directory is available"),
	)
	if s.onFailure != nil {
		s.onFailure(base, err)
	}
}

func (s *Session) resetLocked() {
	s.state = Idle
	s.base = ""
	s.id = ""
	s.watcher = nil
	s.logger = logging.NewComponentLogger(s.baseLogger, "session")
}
