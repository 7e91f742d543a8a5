// Package history keeps an audit log of classification results in SQLite.
//
// The classification engine itself persists nothing beyond the directory
// layout; the daemon installs a recorder that writes every Moved and Failed
// result here so `shelver history` can show what happened while nobody was
// watching. Recording failures are logged by the caller and never affect
// moves.
package history
