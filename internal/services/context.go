package services

import "context"

// Each annotation gets its own key type so values never collide.
type (
	jobIDKey     struct{}
	stageKey     struct{}
	queueKey     struct{}
	requestIDKey struct{}
)

func withValue[K any](ctx context.Context, key K, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom[K any](ctx context.Context, key K) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithJobID tags ctx with the generation job a call works on.
func WithJobID(ctx context.Context, id string) context.Context {
	return withValue(ctx, jobIDKey{}, id)
}

func JobIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, jobIDKey{}) }

// WithStage tags ctx with the pipeline stage (script, images, ...).
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey{}, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, stageKey{}) }

// WithQueue tags ctx with the task queue that admitted the work.
func WithQueue(ctx context.Context, name string) context.Context {
	return withValue(ctx, queueKey{}, name)
}

func QueueFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, queueKey{}) }

// WithRequestID tags ctx with the admin API request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, requestIDKey{}) }
