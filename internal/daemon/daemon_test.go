package daemon

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"scenecast/internal/api"
	"scenecast/internal/jobstore"
	"scenecast/internal/pipeline"
	"scenecast/internal/taskqueue"
	"scenecast/internal/testsupport"
)

type testDaemon struct {
	*Daemon
	fakes *testsupport.Fakes
}

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) *testDaemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	queues := taskqueue.NewRegistryFromConfig(cfg, nil)
	fakes := testsupport.NewFakes(2)
	controller, err := pipeline.New(cfg, store, queues, fakes.Set(), nil, nil)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	d, err := New(cfg, store, queues, controller, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = controller.Close(ctx)
		_ = queues.Close(ctx)
	})
	return &testDaemon{Daemon: d, fakes: fakes}
}

// serve exposes the daemon's routes on an httptest server and returns a client for it.
func (d *testDaemon) serve(t *testing.T) *api.Client {
	t.Helper()
	srv, err := newAPIServer(d.cfg, d.Daemon, nil)
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	ts := httptest.NewServer(srv.routes(d.cfg.Paths.APIToken))
	t.Cleanup(ts.Close)
	return api.NewClient(ts.URL, d.cfg.Paths.APIToken)
}

func TestNewRequiresDependencies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(cfg, nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestRunHoldsLockUntilCancelled(t *testing.T) {
	d := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	waitForStart(t, d)

	if _, _, err := LockStore(d.cfg, nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning for offline store, got %v", err)
	}
	status := d.Status(context.Background())
	if !status.Running || status.LockFilePath != d.cfg.LockPath() {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Preflight) == 0 {
		t.Fatal("expected preflight results")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}

	store, release, err := LockStore(d.cfg, nil)
	if err != nil {
		t.Fatalf("expected lock after shutdown, got %v", err)
	}
	defer release()
	if store.Path() != d.cfg.DatabasePath() {
		t.Fatalf("unexpected store path %q", store.Path())
	}
}

// waitForStart blocks until Run has taken the lock, recovered jobs and run
// preflight.
func waitForStart(t *testing.T, d *testDaemon) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		d.mu.RLock()
		started := len(d.preflight) > 0
		d.mu.RUnlock()
		if started {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("daemon never acquired its lock")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunRecoversInterruptedJobs(t *testing.T) {
	d := newTestDaemon(t)
	status := jobstore.StatusProcessing
	if _, err := d.store.Upsert(context.Background(), jobstore.Patch{ID: "stale", Title: jobstore.String("Stale"), Status: &status}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	waitForStart(t, d)

	deadline := time.Now().Add(5 * time.Second)
	var job *jobstore.Job
	for {
		var err error
		job, err = d.store.Get(context.Background(), "stale")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if job.Status == jobstore.StatusError || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if job.Status != jobstore.StatusError || job.Error != "interrupted by restart" {
		t.Fatalf("expected interrupted job to be failed, got %s %q", job.Status, job.Error)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d := newTestDaemon(t)
	resp, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if resp.Sent {
		t.Fatal("expected no notification without a topic")
	}
}
