package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/run"

	"scenecast/internal/api"
	"scenecast/internal/config"
	"scenecast/internal/jobstore"
	"scenecast/internal/logging"
	"scenecast/internal/notifications"
	"scenecast/internal/pipeline"
	"scenecast/internal/preflight"
	"scenecast/internal/services"
	"scenecast/internal/taskqueue"
)

const shutdownTimeout = 30 * time.Second

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = fmt.Errorf("%w: another scenecast daemon is already running", services.ErrConflict)

// Daemon owns the process lifecycle.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	baseLogger *slog.Logger
	store      *jobstore.Store
	queues     *taskqueue.Registry
	controller *pipeline.Controller
	notifier   notifications.Service

	lockPath string
	lock     *flock.Flock
	running  atomic.Bool

	mu        sync.RWMutex
	startedAt time.Time
	preflight []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobstore.Store, queues *taskqueue.Registry, controller *pipeline.Controller, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || queues == nil || controller == nil {
		return nil, errors.New("daemon requires config, store, queues, and controller")
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		baseLogger: logger,
		store:      store,
		queues:     queues,
		controller: controller,
		notifier:   notifier,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Run holds the daemon lock and serves until ctx ends or SIGINT/SIGTERM
// arrives, then shuts the pipeline and queues down.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()

	if recovered, err := d.controller.Recover(ctx); err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	} else if recovered > 0 {
		d.logger.Info("recovered interrupted jobs", logging.Int("count", recovered))
	}
	d.refreshPreflight(ctx)

	server, err := newAPIServer(d.cfg, d, d.baseLogger)
	if err != nil {
		return err
	}
	if err := server.listen(); err != nil {
		return err
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				d.logger.Info("termination requested")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Admin API.
	{
		g.Add(
			func() error {
				return server.serve()
			},
			func(_ error) {
				server.stop()
			},
		)
	}

	// Queue status monitor and housekeeping.
	{
		bgCtx, bgCancel := context.WithCancel(ctx)
		defer bgCancel()

		g.Add(
			func() error {
				var wg sync.WaitGroup
				wg.Add(2)
				go func() {
					defer wg.Done()
					d.queues.RunStatusLogger(bgCtx, d.cfg.StatusLogInterval())
				}()
				go func() {
					defer wg.Done()
					d.controller.RunHousekeeping(bgCtx)
				}()
				<-bgCtx.Done()
				wg.Wait()
				return nil
			},
			func(_ error) {
				bgCancel()
			},
		)
	}

	d.logger.Info("scenecast daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", server.addr()),
	)
	runErr := g.Run()
	d.shutdown()
	return runErr
}

func (d *Daemon) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.controller.Close(ctx); err != nil {
		d.logger.Warn("jobs still running at shutdown", logging.Error(err))
	}
	if err := d.queues.Close(ctx); err != nil {
		d.logger.Warn("queues did not drain", logging.Error(err))
	}
	d.logger.Info("scenecast daemon stopped")
}

func (d *Daemon) refreshPreflight(ctx context.Context) []preflight.Result {
	results := preflight.RunAll(ctx, d.cfg)
	d.mu.Lock()
	d.preflight = results
	d.mu.Unlock()
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "jobs needing this dependency will fail"),
		)
	}
	return results
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	d.mu.RLock()
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Preflight:    append([]preflight.Result(nil), d.preflight...),
	}
	d.mu.RUnlock()

	if stats, err := d.store.Stats(ctx); err == nil {
		status.Jobs = api.FromJobStats(stats)
	} else {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	health, err := d.store.Health(ctx)
	if err != nil {
		health.Error = err.Error()
	}
	status.Database = health
	status.Queues = d.queues.Statuses()
	status.Dependencies = api.FromDependencies(preflight.CheckSystemDeps(d.cfg))
	return status
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (api.NotificationResponse, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return api.NotificationResponse{Message: "ntfy topic not configured"}, nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return api.NotificationResponse{Message: "failed to send notification"}, err
	}
	return api.NotificationResponse{Sent: true, Message: "test notification sent"}, nil
}

// LockStore opens the job store directly for offline CLI use. It fails with
// ErrAlreadyRunning while a daemon holds the lock; the returned release func
// closes the store and drops the lock.
func LockStore(cfg *config.Config, logger *slog.Logger) (*jobstore.Store, func(), error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, nil, ErrAlreadyRunning
	}
	store, err := jobstore.Open(cfg, logger)
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, err
	}
	release := func() {
		_ = store.Close()
		_ = lock.Unlock()
	}
	return store, release, nil
}
