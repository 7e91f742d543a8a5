package classifier

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shelver/internal/logging"
)

const (
	movedRetention = 10 * time.Minute
	movedPruneSize = 1024
)

// Claims lets classifiers that share a directory agree on who handles a
// source path. A path is skipped while another classifier holds it, and
// after it was moved away until a new file appears under the same name.
type Claims struct {
	mu     sync.Mutex
	active map[string]struct{}
	moved  map[string]time.Time
}

// NewClaims returns an empty claim table.
func NewClaims() *Claims {
	return &Claims{
		active: make(map[string]struct{}),
		moved:  make(map[string]time.Time),
	}
}

func (c *Claims) acquire(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.active[path]; busy {
		return false
	}
	if _, ok := c.moved[path]; ok {
		if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			return false
		}
		delete(c.moved, path)
	}
	c.active[path] = struct{}{}
	return true
}

func (c *Claims) release(path string, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, path)
	if outcome != Moved {
		return
	}
	now := time.Now()
	c.moved[path] = now
	if len(c.moved) > movedPruneSize {
		for p, at := range c.moved {
			if now.Sub(at) > movedRetention {
				delete(c.moved, p)
			}
		}
	}
}

// WithClaims shares a claim table with other classifiers working on the
// same directory.
func WithClaims(claims *Claims) Option {
	return func(c *Classifier) { c.claims = claims }
}

// ClassifyOnce is Classify guarded by the claim table. When another
// classifier holds path or has already moved it away, nothing is reported
// and ok is false.
func (c *Classifier) ClassifyOnce(path, base string) (result Result, ok bool) {
	if c.claims == nil {
		return c.Classify(path, base), true
	}
	key := filepath.Clean(path)
	if !c.claims.acquire(key) {
		c.logger.Debug("file already handled",
			logging.String(logging.FieldEventType, "file_already_claimed"),
			logging.String(logging.FieldPath, path),
		)
		return Result{Source: path}, false
	}
	result = c.classify(path, base)
	c.claims.release(key, result.Outcome)
	c.report(result)
	return result, true
}
