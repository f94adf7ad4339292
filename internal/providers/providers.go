package providers

import "context"

// ScriptRequest describes the video a script should be written for.
type ScriptRequest struct {
	Topic      string `json:"topic"`
	Style      string `json:"style,omitempty"`
	SceneCount int    `json:"sceneCount,omitempty"`
	Language   string `json:"language,omitempty"`
}

// Scene is one narrated beat of a script.
type Scene struct {
	Text              string `json:"text"`
	VisualDescription string `json:"visualDescription"`
}

// Script is the generated narrative split into scenes.
type Script struct {
	Title  string  `json:"title"`
	Scenes []Scene `json:"scenes"`
}

// Speech is a synthesized narration clip.
type Speech struct {
	AudioURL        string  `json:"audioUrl"`
	DurationSeconds float64 `json:"duration"`
}

// Segment is one aligned stretch of transcribed audio, in seconds.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript holds the aligned segments for one audio clip.
type Transcript struct {
	Segments []Segment `json:"segments"`
}

// SceneAssets bundles everything produced for one scene before composition.
type SceneAssets struct {
	Text            string    `json:"text"`
	ImageURL        string    `json:"imageUrl"`
	AudioURL        string    `json:"audioUrl"`
	DurationSeconds float64   `json:"duration"`
	Segments        []Segment `json:"segments,omitempty"`
}

// ComposeRequest is the input to a video composer.
type ComposeRequest struct {
	JobID  string        `json:"jobId"`
	Title  string        `json:"title"`
	Scenes []SceneAssets `json:"scenes"`
}

// Composition is the rendered video.
type Composition struct {
	VideoURL        string  `json:"videoUrl"`
	DurationSeconds float64 `json:"duration"`
}

// ScriptGenerator writes a scene-by-scene script.
type ScriptGenerator interface {
	Generate(ctx context.Context, req ScriptRequest) (Script, error)
}

// ImageGenerator renders an image for a prompt and returns its location.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, width, height int) (string, error)
}

// SpeechSynthesizer narrates text with the given voice.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (Speech, error)
}

// Transcriber aligns an audio clip to timed text segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL, language string) (Transcript, error)
}

// VideoComposer assembles scene assets into a finished video.
type VideoComposer interface {
	Compose(ctx context.Context, req ComposeRequest) (Composition, error)
}

// Set groups the collaborators a pipeline needs.
type Set struct {
	Script      ScriptGenerator
	Image       ImageGenerator
	Speech      SpeechSynthesizer
	Transcriber Transcriber
	Composer    VideoComposer
}

// Missing lists the collaborators that are nil.
func (s Set) Missing() []string {
	var missing []string
	if s.Script == nil {
		missing = append(missing, "script")
	}
	if s.Image == nil {
		missing = append(missing, "image")
	}
	if s.Speech == nil {
		missing = append(missing, "speech")
	}
	if s.Transcriber == nil {
		missing = append(missing, "transcriber")
	}
	if s.Composer == nil {
		missing = append(missing, "composer")
	}
	return missing
}
