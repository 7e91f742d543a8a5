package events

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Notice is one buffered message with its sequence number.
type Notice struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Message   string    `json:"msg"`
}

// Hub stores recent notices and wakes waiters when new ones arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Notice
	nextSeq  uint64
}

// NewHub constructs a bounded in-memory notice buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Notify appends message to the hub.
func (h *Hub) Notify(message string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, Notice{
		Sequence:  h.nextSeq,
		Timestamp: time.Now().UTC(),
		Message:   strings.TrimSpace(message),
	})
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns notices with a sequence greater than since. When wait is
// true it blocks until at least one notice is available or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Notice, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		notices, next := h.snapshotLocked(since, limit)
		if len(notices) > 0 || !wait {
			return notices, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// Tail returns the most recent limit notices without blocking.
func (h *Hub) Tail(limit int) ([]Notice, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	start := max(len(h.buffer)-limit, 0)
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	out := make([]Notice, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Notice, uint64) {
	startIdx := -1
	for i, n := range h.buffer {
		if n.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, h.nextSeq
	}
	end := min(startIdx+limit, len(h.buffer))
	out := make([]Notice, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, out[len(out)-1].Sequence
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
