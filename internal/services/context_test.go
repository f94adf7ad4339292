package services_test

import (
	"context"
	"testing"

	"scenecast/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "abc")
	ctx = services.WithStage(ctx, "narration")
	ctx = services.WithQueue(ctx, "speech")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "narration" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if queue, ok := services.QueueFromContext(ctx); !ok || queue != "speech" {
		t.Fatalf("unexpected queue: %v %v", queue, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithJobID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id value")
	}
}

type plainKey string

func TestForeignKeysDoNotLeak(t *testing.T) {
	ctx := context.WithValue(context.Background(), plainKey("job_id"), "foreign")
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("foreign key must not satisfy job id lookup")
	}
	ctx = services.WithQueue(ctx, "transcription")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("queue value must not satisfy stage lookup")
	}
}
