// Package providers defines the external collaborators the pipeline calls:
// script, image, speech, transcription and composition generators.
//
// Remote generators live in providers/remote and speak JSON over HTTP. The
// local speech and transcription engines in providers/speech and
// providers/transcribe run as subprocesses and are the scarce resources the
// pipeline routes through its task queues.
package providers
