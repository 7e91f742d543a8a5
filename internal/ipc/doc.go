// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Reuse
// these types when adding endpoints so the protocol stays compatible with
// existing commands.
package ipc
