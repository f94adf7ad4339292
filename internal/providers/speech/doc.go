// Package speech runs a local piper-style speech engine as a subprocess.
//
// Narration text is written to the engine's stdin and the engine renders a
// WAV file under the media directory. The clip duration is read back from
// the WAV header. The engine is CPU bound, so callers route Synthesize
// through the speech task queue.
package speech
