// Package preflight runs the environment checks shared by the daemon start-up
// path and `shelver status`.
//
// Checks never fail hard: each returns a Result with a human-readable detail
// so callers can log or render them side by side.
package preflight
