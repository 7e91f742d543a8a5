// Package config loads, normalizes, and validates shelver configuration data.
//
// It supplies repository defaults (including the default category table),
// expands user paths with tilde shortcuts, reads TOML files and honours the
// SHELVER_WATCH_DIR and SHELVER_NTFY_TOPIC environment fallbacks. The Config
// type centralizes every knob the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, folded extensions and clear validation errors.
package config
