// Package logging assembles the structured slog loggers used across shelver.
//
// It owns the console and JSON handlers, output fan-out to stdout and log
// files, and the attribute helpers that keep field names consistent between
// the classifier, watcher, session and daemon. Warnings should carry an
// event_type, an error_hint and an impact so an operator reading the daemon
// log can tell what happened, what it affects, and what to try next.
//
// Use NewNop in tests and wiring code that cannot fail.
package logging
