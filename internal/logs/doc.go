// Package logs tails the daemon's log file for `shelver logs`.
//
// Reads are bounded: a negative offset returns the last N lines, a
// non-negative one returns everything appended since. Follow mode polls until
// a line arrives, the wait elapses or the context ends, and hands back the
// offset to resume from.
package logs
