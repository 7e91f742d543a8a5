// Package notifications delivers shelver events as ntfy push messages.
//
// The default implementation publishes to the ntfy topic URL configured in
// config.toml and degrades to a no-op when no topic is set. Each event type
// is gated by its own [notifications] flag so operators can keep failure
// alerts while silencing routine sweep summaries.
package notifications
