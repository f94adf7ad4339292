package speech

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenecast/internal/config"
	"scenecast/internal/services"
	"scenecast/internal/testsupport"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.MediaDir = t.TempDir()
	return NewEngine(&cfg)
}

func TestSynthesizeRunsEngineWithTextOnStdin(t *testing.T) {
	engine := newTestEngine(t)
	var gotArgs []string
	var gotText string
	engine.WithCommandRunner(func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
		if name != "piper" {
			t.Fatalf("unexpected command %q", name)
		}
		data, _ := io.ReadAll(stdin)
		gotText = string(data)
		gotArgs = args
		output := args[len(args)-1]
		testsupport.WriteWAV(t, output, 22050, 2.5)
		return nil, nil
	})

	speech, err := engine.Synthesize(context.Background(), "  Waves roll in.  ", "en_US-amy-low")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if gotText != "Waves roll in.\n" {
		t.Fatalf("unexpected stdin %q", gotText)
	}
	if strings.Join(gotArgs[:3], " ") != "--model en_US-amy-low --output_file" {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if filepath.Dir(speech.AudioURL) != engine.outputDir {
		t.Fatalf("expected clip under %s, got %s", engine.outputDir, speech.AudioURL)
	}
	if speech.DurationSeconds < 2.49 || speech.DurationSeconds > 2.51 {
		t.Fatalf("unexpected duration %f", speech.DurationSeconds)
	}
}

func TestSynthesizeFailureIsGenerationError(t *testing.T) {
	engine := newTestEngine(t)
	engine.WithCommandRunner(func(context.Context, io.Reader, string, ...string) ([]byte, error) {
		return []byte("voice not found"), errors.New("exit status 1")
	})

	_, err := engine.Synthesize(context.Background(), "hello", "missing")
	if !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "voice not found") {
		t.Fatalf("expected engine output in error, got %v", err)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	engine := newTestEngine(t)
	if _, err := engine.Synthesize(context.Background(), "   ", "voice"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWAVDurationRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("definitely not audio data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := WAVDuration(path); err == nil {
		t.Fatal("expected error for non-wav file")
	}
}
