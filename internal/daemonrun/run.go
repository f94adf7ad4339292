package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"scenecast/internal/config"
	"scenecast/internal/daemon"
	"scenecast/internal/deps"
	"scenecast/internal/jobstore"
	"scenecast/internal/logging"
	"scenecast/internal/logs"
	"scenecast/internal/notifications"
	"scenecast/internal/pipeline"
	"scenecast/internal/preflight"
	"scenecast/internal/providers"
	"scenecast/internal/providers/remote"
	"scenecast/internal/providers/speech"
	"scenecast/internal/providers/transcribe"
	"scenecast/internal/taskqueue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the scenecast daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, logPath, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update scenecast.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)

	pidPath := filepath.Join(cfg.Paths.LogDir, "scenecast.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobstore.Open(cfg, logger)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	queues := taskqueue.NewRegistryFromConfig(cfg, logger)
	notifier := notifications.NewService(cfg)
	controller, err := pipeline.New(cfg, store, queues, BuildProviders(cfg), notifier, logger)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	d, err := daemon.New(cfg, store, queues, controller, notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, the lock file and paths.api_bind"),
		)
		return err
	}
	return nil
}

// BuildProviders wires the remote generators and the local speech and
// transcription engines from cfg.
func BuildProviders(cfg *config.Config) providers.Set {
	client := remote.NewClient(remote.ConfigFromSettings(cfg))
	return providers.Set{
		Script:      client.Scripts(),
		Image:       client.Images(),
		Speech:      speech.NewEngine(cfg),
		Transcriber: transcribe.NewEngine(cfg),
		Composer:    client.Composer(),
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentLog(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot", logging.Args(dependencySnapshotAttrs(cfg)...)...)
}

func dependencySnapshotAttrs(cfg *config.Config) []logging.Attr {
	statuses := preflight.CheckSystemDeps(cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Int("missing_required", len(deps.MissingRequired(statuses))),
	}
	for _, status := range statuses {
		attrs = append(attrs, logging.Group(snapshotKey(status.Name),
			logging.Bool("available", status.Available),
			logging.String("command", status.Command),
			logging.String("path", status.Path),
		))
	}
	configured := func(v string) bool { return strings.TrimSpace(v) != "" }
	return append(attrs,
		logging.Bool("script_url_configured", configured(cfg.Providers.ScriptURL)),
		logging.Bool("image_url_configured", configured(cfg.Providers.ImageURL)),
		logging.Bool("compose_url_configured", configured(cfg.Providers.ComposeURL)),
		logging.Bool("api_key_present", configured(cfg.Providers.APIKey)),
		logging.Bool("ntfy_enabled", configured(cfg.Notifications.NtfyTopic)),
	)
}

// snapshotKey turns "Speech engine" into "speech_engine".
func snapshotKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
