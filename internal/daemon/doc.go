// Package daemon coordinates the long-running scenecast process.
//
// It wires the job store, the task queue registry and the pipeline
// controller into one lifecycle guarded by a flock-based single-instance
// lock. Run recovers jobs a previous process left in flight, logs preflight
// results, serves the admin HTTP API, and runs the queue status monitor and
// job housekeeping until the context ends or a signal arrives. Shutdown
// cancels running jobs so they record their outcome before the queues close.
//
// Keep orchestration here: stage logic lives in the pipeline package and
// queue mechanics in taskqueue.
package daemon
