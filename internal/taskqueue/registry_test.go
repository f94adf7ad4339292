package taskqueue_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"scenecast/internal/logging"
	"scenecast/internal/services"
	"scenecast/internal/taskqueue"
	"scenecast/internal/testsupport"
)

func TestRegistryBuildsNamedQueues(t *testing.T) {
	r := taskqueue.NewRegistry(map[string]int{
		taskqueue.Speech:        2,
		taskqueue.Transcription: 1,
	}, 10, logging.NewNop())
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	if want := []string{"speech", "transcription"}; !reflect.DeepEqual(r.Names(), want) {
		t.Fatalf("expected names %v, got %v", want, r.Names())
	}

	speech, err := r.Get(taskqueue.Speech)
	if err != nil {
		t.Fatalf("get speech: %v", err)
	}
	if got := speech.Status().Ceiling; got != 2 {
		t.Fatalf("expected speech ceiling 2, got %d", got)
	}

	statuses := r.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Name != "transcription" || statuses[1].Ceiling != 1 {
		t.Fatalf("unexpected transcription status %+v", statuses[1])
	}

	if _, err := r.Get("gpu"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown queue, got %v", err)
	}
}

func TestRegistryFromConfigUsesConfiguredCeilings(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithQueueCeilings(3, 2, 1))
	r := taskqueue.NewRegistryFromConfig(cfg, nil)
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	if want := []string{"composition", "speech", "transcription"}; !reflect.DeepEqual(r.Names(), want) {
		t.Fatalf("expected names %v, got %v", want, r.Names())
	}
	for name, want := range map[string]int{taskqueue.Speech: 3, taskqueue.Transcription: 2, taskqueue.Composition: 1} {
		q, err := r.Get(name)
		if err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
		if got := q.Status().Ceiling; got != want {
			t.Fatalf("%s: expected ceiling %d, got %d", name, want, got)
		}
	}
}

func TestRegistryCloseRejectsSubmissions(t *testing.T) {
	r := taskqueue.NewRegistry(map[string]int{taskqueue.Composition: 1}, 0, nil)
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	q, err := r.Get(taskqueue.Composition)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_, err = q.Submit(context.Background(), "", func(context.Context) (any, error) { return nil, nil })
	if !errors.Is(err, taskqueue.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
