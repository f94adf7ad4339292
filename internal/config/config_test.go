package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"scenecast/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SCENECAST_API_TOKEN", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "scenecast")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "jobs.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7600" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Queues.SpeechConcurrency != 2 {
		t.Fatalf("expected speech concurrency 2, got %d", cfg.Queues.SpeechConcurrency)
	}
	if cfg.Queues.TranscriptionConcurrency != 1 {
		t.Fatalf("expected transcription concurrency 1, got %d", cfg.Queues.TranscriptionConcurrency)
	}
	if cfg.StatusLogInterval() != 30*time.Second {
		t.Fatalf("unexpected status log interval: %s", cfg.StatusLogInterval())
	}
	if cfg.Queues.HistorySize != 50 {
		t.Fatalf("expected history size 50, got %d", cfg.Queues.HistorySize)
	}
	if cfg.Workflow.AllowAdminOverrides {
		t.Fatal("expected admin overrides disabled by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.MediaDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "scenecast.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Queues struct {
			SpeechConcurrency int `toml:"speech_concurrency"`
			HistorySize       int `toml:"history_size"`
		} `toml:"queues"`
		Providers struct {
			ScriptURL string `toml:"script_url"`
			Language  string `toml:"language"`
		} `toml:"providers"`
		Workflow struct {
			AllowAdminOverrides bool `toml:"allow_admin_overrides"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Queues.SpeechConcurrency = 4
	custom.Queues.HistorySize = 10
	custom.Providers.ScriptURL = "https://example.com/script"
	custom.Providers.Language = " EN "
	custom.Workflow.AllowAdminOverrides = true
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if cfg.Queues.SpeechConcurrency != 4 {
		t.Fatalf("expected speech concurrency 4, got %d", cfg.Queues.SpeechConcurrency)
	}
	if cfg.Queues.TranscriptionConcurrency != 1 {
		t.Fatalf("expected default transcription concurrency, got %d", cfg.Queues.TranscriptionConcurrency)
	}
	if cfg.Providers.ScriptURL != "https://example.com/script" {
		t.Fatalf("unexpected script url %q", cfg.Providers.ScriptURL)
	}
	if cfg.Providers.Language != "en" {
		t.Fatalf("expected normalized language, got %q", cfg.Providers.Language)
	}
	if !cfg.Workflow.AllowAdminOverrides {
		t.Fatal("expected admin overrides enabled from file")
	}
}

func TestEnvFallbacksFillMissingValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCENECAST_API_TOKEN", "env-token")
	t.Setenv("SCENECAST_SCRIPT_URL", "http://localhost:9000/script")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "env-token" {
		t.Errorf("expected API token from env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Providers.ScriptURL != "http://localhost:9000/script" {
		t.Errorf("expected script url from env, got %q", cfg.Providers.ScriptURL)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "speech_concurrency") {
		t.Fatalf("sample config missing queue settings: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "scenecast") {
		t.Fatalf("expected data dir to contain scenecast, got %q", cfg.Paths.DataDir)
	}
	if cfg.Queues.SpeechConcurrency != 2 || cfg.Queues.TranscriptionConcurrency != 1 {
		t.Fatalf("unexpected sample ceilings: %+v", cfg.Queues)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Queues.SpeechConcurrency = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "queues.speech_concurrency") {
		t.Fatalf("expected speech concurrency error, got %v", err)
	}

	cfg = config.Default()
	cfg.Queues.StatusLogInterval = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative status log interval")
	}

	cfg = config.Default()
	cfg.Providers.ImageURL = "ftp://example.com"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "providers.image_url") {
		t.Fatalf("expected image url error, got %v", err)
	}

	cfg = config.Default()
	cfg.Workflow.MaxParallelJobs = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max parallel jobs")
	}

	cfg = config.Default()
	cfg.Notifications.NtfyTopic = "scenecast"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bare ntfy topic")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
