package testsupport

import (
	"context"
	"testing"

	"scenecast/internal/config"
	"scenecast/internal/jobstore"
)

// MustOpenStore opens a jobstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg, nil)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a queued job with the given id and title.
func NewJob(t testing.TB, store *jobstore.Store, id, title string) *jobstore.Job {
	t.Helper()

	job, err := store.Upsert(context.Background(), jobstore.Patch{ID: id, Title: jobstore.String(title)})
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return job
}
