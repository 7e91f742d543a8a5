// Package classifier moves one file into its category directory.
//
// Every move in shelver goes through Classifier.Classify, whether the file
// was reported by the watcher or found by a backlog sweep. Moves into the
// same category directory are serialized by a per-category mutex that is
// held across the free-name search and the rename, and the rename itself
// refuses to replace an existing file. Per-file failures are reported, never
// returned to the caller as errors.
package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"shelver/internal/events"
	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/registry"
)

// DefaultMaxAttempts bounds the collision-resolution search.
const DefaultMaxAttempts = 10000

var (
	// ErrSourceVanished is reported when the file disappeared before it could be moved.
	ErrSourceVanished = errors.New("source vanished")
	// ErrNamesExhausted is reported when no free destination name was found.
	ErrNamesExhausted = errors.New("no free destination name")
)

// Outcome is the kind of a classification result.
type Outcome int

const (
	Unclassified Outcome = iota
	Moved
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case Failed:
		return "failed"
	default:
		return "unclassified"
	}
}

// Result describes one classification attempt.
type Result struct {
	Outcome     Outcome
	Source      string
	Category    string
	FinalName   string
	Destination string
	Err         error
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) { c.logger = logging.NewComponentLogger(logger, "classifier") }
}

// WithRecorder registers a callback that receives every Result.
func WithRecorder(fn func(Result)) Option {
	return func(c *Classifier) { c.recorder = fn }
}

// WithLocks shares the per-category lock table with other classifiers
// that move into the same directories.
func WithLocks(locks *Locks) Option {
	return func(c *Classifier) {
		if locks != nil {
			c.locks = locks
		}
	}
}

// WithMaxAttempts bounds how many candidate names are tried per move.
func WithMaxAttempts(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Classifier resolves categories and performs moves.
type Classifier struct {
	registry    *registry.Registry
	sink        events.Sink
	logger      *slog.Logger
	recorder    func(Result)
	maxAttempts int
	locks       *Locks
	claims      *Claims
}

// Locks holds one mutex per destination directory.
type Locks struct {
	mu    sync.Mutex
	byDir map[string]*sync.Mutex
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{byDir: make(map[string]*sync.Mutex)}
}

func (l *Locks) forDir(dir string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.byDir[dir]
	if !ok {
		lock = &sync.Mutex{}
		l.byDir[dir] = lock
	}
	return lock
}

// New constructs a classifier over reg that reports to sink.
func New(reg *registry.Registry, sink events.Sink, opts ...Option) *Classifier {
	c := &Classifier{
		registry:    reg,
		sink:        events.OrDiscard(sink),
		logger:      logging.NewComponentLogger(nil, "classifier"),
		maxAttempts: DefaultMaxAttempts,
		locks:       NewLocks(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry the classifier resolves against.
func (c *Classifier) Registry() *registry.Registry {
	return c.registry
}

// Classify moves path into base/<category>. Exactly one notice is written
// to the sink per call.
func (c *Classifier) Classify(path, base string) Result {
	result := c.classify(path, base)
	c.report(result)
	return result
}

func (c *Classifier) classify(path, base string) Result {
	result := Result{Source: path, Outcome: Unclassified}
	category, ok := c.registry.CategoryFor(path)
	if !ok {
		return result
	}
	result.Category = category
	destDir := filepath.Join(base, category)

	lock := c.locks.forDir(filepath.Clean(destDir))
	lock.Lock()
	defer lock.Unlock()

	if err := fileutil.EnsureDir(destDir); err != nil {
		return failed(result, err)
	}

	name := filepath.Base(path)
	for n := range c.maxAttempts {
		candidate := CandidateName(name, n-1)
		dest := filepath.Join(destDir, candidate)
		err := fileutil.MoveNoClobber(path, dest)
		switch {
		case err == nil:
			result.Outcome = Moved
			result.FinalName = candidate
			result.Destination = dest
			return result
		case errors.Is(err, fs.ErrExist):
			continue
		case errors.Is(err, fs.ErrNotExist):
			return failed(result, fmt.Errorf("%w: %w", ErrSourceVanished, err))
		default:
			return failed(result, err)
		}
	}
	return failed(result, fmt.Errorf("%w after %d attempts in %s", ErrNamesExhausted, c.maxAttempts, destDir))
}

func failed(result Result, err error) Result {
	result.Outcome = Failed
	result.Err = err
	return result
}

func (c *Classifier) report(result Result) {
	name := filepath.Base(result.Source)
	switch result.Outcome {
	case Moved:
		c.sink.Notify(fmt.Sprintf("Moved %s to %s/%s", name, result.Category, result.FinalName))
		c.logger.Info("file moved",
			logging.String(logging.FieldEventType, "file_moved"),
			logging.String(logging.FieldPath, result.Source),
			logging.String(logging.FieldCategory, result.Category),
			logging.String("destination", result.Destination),
		)
	case Failed:
		c.sink.Notify(fmt.Sprintf("Failed to move %s to %s: %v", name, result.Category, result.Err))
		logging.WarnWithContext(c.logger, "move failed; file left in place", "move_failed",
			logging.String(logging.FieldPath, result.Source),
			logging.String(logging.FieldCategory, result.Category),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, hintFor(result.Err)),
			logging.String(logging.FieldImpact, "file stays at the source until the next sweep"),
		)
	default:
		c.sink.Notify(fmt.Sprintf("Skipped %s: unrecognized extension", name))
		c.logger.Debug("file unclassified",
			logging.String(logging.FieldEventType, "file_unclassified"),
			logging.String(logging.FieldPath, result.Source),
		)
	}
	if c.recorder != nil {
		c.recorder(result)
	}
}

func hintFor(err error) string {
	switch {
	case fileutil.IsCrossDevice(err):
		return "keep the watch directory and its category folders on one filesystem"
	case errors.Is(err, fs.ErrPermission):
		return "check ownership and permissions of the watch directory"
	case errors.Is(err, ErrSourceVanished):
		return "the file was removed or renamed before it could be moved"
	case errors.Is(err, ErrNamesExhausted):
		return "clean up duplicate names in the category folder"
	}
	return "check logs for details"
}

// CandidateName returns the n-th destination name for name: the name itself
// for n < 0, otherwise name_<n> with the original extension kept.
func CandidateName(name string, n int) string {
	if n < 0 {
		return name
	}
	stem, ext := name, ""
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		stem, ext = name[:idx], name[idx:]
	}
	return stem + "_" + strconv.Itoa(n) + ext
}
