// Package main hosts the shelver CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon, runs foreground watch sessions and one-off sweeps, and
// reads the move history and daemon log. It centralizes configuration
// resolution and socket discovery so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
