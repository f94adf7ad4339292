// Package transcribe aligns narration clips to timed text with a local
// whisper-style engine run as a subprocess. The engine writes a JSON
// transcript which is parsed into segments. Transcription is the scarcest
// local resource, so callers route Transcribe through its own task queue.
package transcribe
