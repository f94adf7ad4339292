package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	MediaDir string `toml:"media_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Queues holds the concurrency ceilings for the scarce local engines.
type Queues struct {
	SpeechConcurrency        int `toml:"speech_concurrency"`
	TranscriptionConcurrency int `toml:"transcription_concurrency"`
	CompositionConcurrency   int `toml:"composition_concurrency"`
	StatusLogInterval        int `toml:"status_log_interval"`
	HistorySize              int `toml:"history_size"`
}

// Providers contains endpoints and defaults for the remote generators.
type Providers struct {
	ScriptURL      string `toml:"script_url"`
	ImageURL       string `toml:"image_url"`
	ComposeURL     string `toml:"compose_url"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
	ImageWidth     int    `toml:"image_width"`
	ImageHeight    int    `toml:"image_height"`
	Voice          string `toml:"voice"`
	Language       string `toml:"language"`
}

// Speech configures the local speech synthesis engine.
type Speech struct {
	Command string   `toml:"command"`
	Model   string   `toml:"model"`
	Args    []string `toml:"args"`
}

// Transcription configures the local transcription engine used for alignment.
type Transcription struct {
	Command string `toml:"command"`
	Model   string `toml:"model"`
	Device  string `toml:"device"`
}

// Workflow contains pipeline controller and housekeeping settings.
type Workflow struct {
	MaxParallelJobs         int  `toml:"max_parallel_jobs"`
	PurgeInterval           int  `toml:"purge_interval"`
	CompletedRetentionHours int  `toml:"completed_retention_hours"`
	AllowAdminOverrides     bool `toml:"allow_admin_overrides"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for scenecast.
//
// Configuration sections by subsystem:
//   - Paths: data, log and media directories plus the API bind address
//   - Queues: per-engine concurrency ceilings and status logging
//   - Providers: remote script/image/composition services
//   - Speech, Transcription: local engines guarded by the task queues
//   - Workflow: controller parallelism, housekeeping, admin overrides
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queues        Queues        `toml:"queues"`
	Providers     Providers     `toml:"providers"`
	Speech        Speech        `toml:"speech"`
	Transcription Transcription `toml:"transcription"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scenecast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.MediaDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the job store database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "scenecast.lock")
}

// StatusLogInterval returns how often busy queues log a status line.
// Zero disables the periodic log.
func (c *Config) StatusLogInterval() time.Duration {
	if c.Queues.StatusLogInterval <= 0 {
		return 0
	}
	return time.Duration(c.Queues.StatusLogInterval) * time.Second
}

// ProviderTimeout returns the per-request timeout for remote providers.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.RequestTimeout) * time.Second
}

// PurgeInterval returns how often completed jobs past retention are purged.
// Zero disables housekeeping.
func (c *Config) PurgeInterval() time.Duration {
	if c.Workflow.PurgeInterval <= 0 {
		return 0
	}
	return time.Duration(c.Workflow.PurgeInterval) * time.Minute
}

// CompletedRetention returns how long completed jobs are kept.
func (c *Config) CompletedRetention() time.Duration {
	return time.Duration(c.Workflow.CompletedRetentionHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
