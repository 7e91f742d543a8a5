// Package daemon coordinates the long-running shelver process.
//
// It wires configuration, the category registry, the monitor session, the
// move history store and notifications into a single lifecycle, with
// flock-based locking so only one daemon sorts a given log directory at a
// time. Notices from the session fan out to the structured log and to an
// in-memory hub that IPC clients tail.
//
// Keep orchestration logic here: classification, sweeping and watching live
// in their own packages while the daemon handles startup, shutdown and the
// side effects of results (history rows, push notifications).
package daemon
