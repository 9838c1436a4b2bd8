// Package notifications delivers generation lifecycle events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Completion and failure events can be toggled independently.
package notifications
