package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"scenecast/internal/config"
	"scenecast/internal/providers"
	"scenecast/internal/services"
)

// CommandRunner executes name with args, feeding stdin, and returns the
// combined output.
type CommandRunner func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

// Engine synthesizes narration with a local speech binary.
type Engine struct {
	command   string
	model     string
	extraArgs []string
	outputDir string
	runner    CommandRunner
}

// NewEngine builds an engine from the speech settings. Clips are written
// under <media_dir>/audio.
func NewEngine(cfg *config.Config) *Engine {
	engine := &Engine{runner: runCommand}
	if cfg == nil {
		return engine
	}
	engine.command = cfg.Speech.Command
	engine.model = cfg.Speech.Model
	engine.extraArgs = append([]string(nil), cfg.Speech.Args...)
	engine.outputDir = filepath.Join(cfg.Paths.MediaDir, "audio")
	return engine
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		e.runner = runner
	}
}

// Command returns the configured engine binary.
func (e *Engine) Command() string {
	return e.command
}

// Synthesize renders text with voice and returns the clip location and length.
func (e *Engine) Synthesize(ctx context.Context, text, voice string) (providers.Speech, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return providers.Speech{}, services.Wrap(services.ErrValidation, "narration", "synthesize", "text is required", nil)
	}
	if e.command == "" {
		return providers.Speech{}, services.Wrap(services.ErrConfiguration, "narration", "synthesize", "speech command is not configured", nil)
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return providers.Speech{}, services.Wrap(services.ErrGeneration, "narration", "ensure output dir", "", err)
	}

	output := filepath.Join(e.outputDir, uuid.NewString()+".wav")
	args := e.buildArgs(voice, output)
	if out, err := e.runner(ctx, strings.NewReader(text+"\n"), e.command, args...); err != nil {
		_ = os.Remove(output)
		return providers.Speech{}, services.Wrap(services.ErrGeneration, "narration", "synthesize",
			strings.TrimSpace(string(out)), err)
	}

	duration, err := WAVDuration(output)
	if err != nil {
		return providers.Speech{}, services.Wrap(services.ErrGeneration, "narration", "read clip", output, err)
	}
	return providers.Speech{AudioURL: output, DurationSeconds: duration}, nil
}

func (e *Engine) buildArgs(voice, output string) []string {
	model := e.model
	if model == "" {
		model = strings.TrimSpace(voice)
	}
	args := make([]string, 0, len(e.extraArgs)+4)
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, "--output_file", output)
	return append(args, e.extraArgs...)
}

func runCommand(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdin = stdin
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return buf.Bytes(), nil
}

var _ providers.SpeechSynthesizer = (*Engine)(nil)
