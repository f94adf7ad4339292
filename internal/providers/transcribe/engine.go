package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scenecast/internal/config"
	"scenecast/internal/providers"
	"scenecast/internal/services"
)

// Engine runs the configured transcription binary.
type Engine struct {
	command       string
	model         string
	device        string
	workDir       string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewEngine builds an engine from the transcription settings. Scratch output
// lives under <media_dir>/transcripts.
func NewEngine(cfg *config.Config) *Engine {
	engine := &Engine{}
	if cfg == nil {
		return engine
	}
	engine.command = cfg.Transcription.Command
	engine.model = cfg.Transcription.Model
	engine.device = cfg.Transcription.Device
	engine.workDir = filepath.Join(cfg.Paths.MediaDir, "transcripts")
	return engine
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.commandRunner = runner
}

// Command returns the configured engine binary.
func (e *Engine) Command() string {
	return e.command
}

// Transcribe aligns the clip at audioURL, a local file path, and returns its
// segments.
func (e *Engine) Transcribe(ctx context.Context, audioURL, language string) (providers.Transcript, error) {
	source := strings.TrimSpace(audioURL)
	if source == "" {
		return providers.Transcript{}, services.Wrap(services.ErrValidation, "narration", "transcribe", "audio path is required", nil)
	}
	if e.command == "" {
		return providers.Transcript{}, services.Wrap(services.ErrConfiguration, "narration", "transcribe", "transcription command is not configured", nil)
	}
	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return providers.Transcript{}, services.Wrap(services.ErrGeneration, "narration", "ensure work dir", "", err)
	}
	outputDir, err := os.MkdirTemp(e.workDir, "align-")
	if err != nil {
		return providers.Transcript{}, services.Wrap(services.ErrGeneration, "narration", "create scratch dir", "", err)
	}
	defer os.RemoveAll(outputDir)

	if err := e.run(ctx, e.command, e.buildArgs(source, outputDir, language)...); err != nil {
		return providers.Transcript{}, services.Wrap(services.ErrGeneration, "narration", "transcribe", "", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	transcript, err := loadTranscript(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return providers.Transcript{}, services.Wrap(services.ErrGeneration, "narration", "parse transcript", "", err)
	}
	return transcript, nil
}

func (e *Engine) buildArgs(source, outputDir, language string) []string {
	args := []string{
		source,
		"--model", e.model,
		"--device", e.device,
		"--output_format", "json",
		"--output_dir", outputDir,
	}
	if lang := strings.TrimSpace(language); lang != "" && lang != "auto" {
		args = append(args, "--language", lang)
	}
	return args
}

// run executes a command, using the custom runner if set.
func (e *Engine) run(ctx context.Context, name string, args ...string) error {
	if e.commandRunner != nil {
		return e.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type transcriptFile struct {
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

func loadTranscript(path string) (providers.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return providers.Transcript{}, err
	}
	var payload transcriptFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return providers.Transcript{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	transcript := providers.Transcript{Segments: make([]providers.Segment, 0, len(payload.Segments))}
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.End < seg.Start {
			continue
		}
		transcript.Segments = append(transcript.Segments, providers.Segment{Text: text, Start: seg.Start, End: seg.End})
	}
	return transcript, nil
}

var _ providers.Transcriber = (*Engine)(nil)
