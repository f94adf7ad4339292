// Package taskqueue provides bounded-concurrency FIFO admission for work that
// competes for a scarce local engine (speech synthesis, transcription,
// composition).
//
// A Queue never runs more than its ceiling of tasks at once. Pending tasks
// dispatch strictly in submission order, and dispatch is re-evaluated only
// when a task is submitted, when one settles, or when the ceiling changes.
// A failing task is reported to its own caller and never affects siblings.
// Pending tasks can be cancelled individually or in bulk; running work sees
// cancellation only through the context it receives.
//
// Lifecycle events are sequenced and retained in a small ring for polling
// clients, and fanned out to channel subscribers that drop rather than block.
package taskqueue
