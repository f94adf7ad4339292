// Command scenecast runs the narrated-video daemon and administers it.
//
// Every subcommand except `daemon`, `config` and the offline job commands
// talks to a running daemon through the admin HTTP API. `jobs import` and
// `jobs list --offline` open the job store directly and refuse to run while a
// daemon holds the lock.
package main
