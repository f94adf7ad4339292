// Package services defines shared utilities consumed by the pipeline stages,
// the task queues, and the admin API.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, queue names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures carry a
//     classification (validation, not found, queue cleared, generation,
//     store I/O) alongside a human-readable reason.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
