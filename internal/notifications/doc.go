// Package notifications delivers job events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic URL configured
// in config.toml and degrades to a no-op when notifications are disabled.
// Per-event toggles let operators silence completion or failure messages
// independently.
package notifications
