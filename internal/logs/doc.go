// Package logs reads the daemon's run log for `scenecast logs`.
//
// Last reads the final N lines with bounded memory; Follow then streams
// lines appended after that offset until the context ends. The current run
// is reached through the scenecast.log pointer in paths.log_dir.
package logs
