// Package events carries human-readable progress and error notices from the
// classification engine to whatever presents them.
//
// A Sink may be called from any goroutine: the watcher dispatcher, sweep
// workers and the session itself all write to the same sink. Implementations
// marshal onto their own context if they need to.
package events

import (
	"log/slog"
	"sync"

	"shelver/internal/logging"
)

// Sink receives one-line notices.
type Sink interface {
	Notify(message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(message string)

// Notify calls f.
func (f SinkFunc) Notify(message string) {
	if f != nil {
		f(message)
	}
}

// Discard drops every notice.
var Discard Sink = SinkFunc(func(string) {})

// OrDiscard returns sink, or Discard when sink is nil.
func OrDiscard(sink Sink) Sink {
	if sink == nil {
		return Discard
	}
	return sink
}

// LogSink writes notices to a structured logger at info level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink wraps logger; a nil logger discards.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.NewComponentLogger(logger, "notice")}
}

// Notify logs message.
func (s *LogSink) Notify(message string) {
	if s == nil {
		return
	}
	s.logger.Info(message, logging.String(logging.FieldEventType, "notice"))
}

type multi struct {
	sinks []Sink
}

// Multi fans a notice out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &multi{sinks: out}
}

func (m *multi) Notify(message string) {
	for _, s := range m.sinks {
		s.Notify(message)
	}
}

// Recorder is a Sink that keeps every notice in memory. It is meant for
// tests and one-off CLI runs.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Notify appends message.
func (r *Recorder) Notify(message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded notices.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Len reports how many notices were recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}
