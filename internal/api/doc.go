// Package api defines the wire format of the scenecast admin HTTP API and a
// client for it.
//
// Every response is wrapped in an Envelope: {"success": bool, "data": ...,
// "error": "..."}. Jobs travel in the job store's own JSON form, so fields a
// newer writer adds survive a round trip through older clients.
//
// # Key Types
//
// DaemonStatus: running state, job counts per status, queue snapshots,
// database health and preflight results.
//
// Client: typed calls for the CLI. Error responses are mapped back onto the
// services error markers by HTTP status, so callers can use errors.Is.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Queue snapshots, history entries and events
// reuse the taskqueue types directly since they already carry JSON tags.
package api
