package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenecast/internal/config"
)

// ConfigOption adjusts the config built by NewConfig.
type ConfigOption func(t testing.TB, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory: data, logs,
// media and an ephemeral API port, with token and notifications cleared.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.MediaDir = filepath.Join(root, "media")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.APIToken = ""
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

// BaseDir returns the temp root behind a NewConfig result.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

func WithAdminOverrides(enabled bool) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.Workflow.AllowAdminOverrides = enabled }
}

func WithAPIToken(token string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.Paths.APIToken = token }
}

// WithQueueCeilings sets the speech, transcription and composition ceilings.
func WithQueueCeilings(speech, transcription, composition int) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Queues.SpeechConcurrency = speech
		cfg.Queues.TranscriptionConcurrency = transcription
		cfg.Queues.CompositionConcurrency = composition
	}
}

// WithStubbedBinaries installs no-op executables under <root>/bin and puts
// that directory first on PATH for the test. With no names, the configured
// speech and transcription commands are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = []string{cfg.Speech.Command, cfg.Transcription.Command}
		}
		binDir := filepath.Join(BaseDir(cfg), "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if strings.TrimSpace(name) == "" {
				continue
			}
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
