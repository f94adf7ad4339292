// Package pipeline drives generation jobs through their canonical steps:
// queued, script, images, narration, composition and ready.
//
// The Controller is the only writer of job records. Each stage marks its step
// active, calls its collaborator, and records the outcome before the next
// stage begins; a failure marks the step failed and the job errored, and no
// later stage runs. Calls into the scarce local engines go through the
// speech, transcription and composition task queues so their concurrency
// stays bounded across every job in flight. Remote script and image calls
// run without a queue.
//
// Every read-modify-write of a job runs under a per-job lock so a stage
// update, an administrative override and recovery never interleave.
package pipeline
