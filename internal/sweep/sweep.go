// Package sweep classifies files that were already in the watch directory
// before monitoring started.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"shelver/internal/classifier"
	"shelver/internal/events"
	"shelver/internal/fileutil"
	"shelver/internal/logging"
	"shelver/internal/registry"
)

const (
	defaultWorkers = 4
	readBatch      = 256
)

// SweepError reports an enumeration failure. Processed counts the files
// handed to the classifier before the failure.
type SweepError struct {
	Processed int
	Err       error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep stopped after %d files: %v", e.Processed, e.Err)
}

func (e *SweepError) Unwrap() error { return e.Err }

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logging.NewComponentLogger(logger, "sweep") }
}

// WithWorkers bounds how many files are classified concurrently.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// Scanner enumerates the direct children of a directory and classifies the
// eligible ones.
type Scanner struct {
	registry   *registry.Registry
	classifier *classifier.Classifier
	sink       events.Sink
	logger     *slog.Logger
	workers    int
}

// New constructs a scanner.
func New(reg *registry.Registry, c *classifier.Classifier, sink events.Sink, opts ...Option) *Scanner {
	s := &Scanner{
		registry:   reg,
		classifier: c,
		sink:       events.OrDiscard(sink),
		logger:     logging.NewComponentLogger(nil, "sweep"),
		workers:    defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Eligible reports whether a direct child of the swept directory should be
// classified. Category directories and their contents are never visited
// because only regular files at the top level qualify.
func (s *Scanner) Eligible(entry os.DirEntry) bool {
	if !entry.Type().IsRegular() || fileutil.IsHidden(entry.Name()) {
		return false
	}
	return s.registry.HasRecognizedSuffix(entry.Name())
}

// Scan classifies every eligible direct child of base and returns how many
// files were handed to the classifier. Cancelling ctx stops dispatch of new
// files; moves already in flight complete.
func (s *Scanner) Scan(ctx context.Context, base string) (int, error) {
	started := time.Now()
	var processed atomic.Int64

	dir, err := os.Open(base)
	if err != nil {
		return 0, &SweepError{Err: fmt.Errorf("open %q: %w", base, err)}
	}
	defer dir.Close()

	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	var scanErr error
	for scanErr == nil {
		entries, readErr := dir.ReadDir(readBatch)
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				scanErr = err
				break
			}
			if !s.Eligible(entry) {
				continue
			}
			path := filepath.Join(base, entry.Name())
			processed.Add(1)
			g.Go(func() error {
				s.classifier.ClassifyOnce(path, base)
				return nil
			})
		}
		if scanErr != nil {
			break
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			scanErr = fmt.Errorf("read %q: %w", base, readErr)
		}
	}
	_ = g.Wait()

	count := int(processed.Load())
	if scanErr != nil {
		if errors.Is(scanErr, context.Canceled) || errors.Is(scanErr, context.DeadlineExceeded) {
			s.logger.Info("sweep cancelled",
				logging.String(logging.FieldEventType, "sweep_cancelled"),
				logging.Int("processed", count),
			)
			return count, scanErr
		}
		s.sink.Notify(fmt.Sprintf("Sweep of %s failed after %d files: %v", base, count, scanErr))
		logging.WarnWithContext(s.logger, "sweep enumeration failed", "sweep_failed",
			logging.String(logging.FieldPath, base),
			logging.Int("processed", count),
			logging.Error(scanErr),
			logging.String(logging.FieldErrorHint, "check that the watch directory still exists and is readable"),
			logging.String(logging.FieldImpact, "remaining files stay in place until the next sweep"),
		)
		return count, &SweepError{Processed: count, Err: scanErr}
	}

	s.sink.Notify(fmt.Sprintf("Sweep of %s complete: %d files processed", base, count))
	s.logger.Info("sweep complete",
		logging.String(logging.FieldEventType, "sweep_complete"),
		logging.String(logging.FieldPath, base),
		logging.Int("processed", count),
		logging.Duration("elapsed", time.Since(started)),
	)
	return count, nil
}
