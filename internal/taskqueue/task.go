package taskqueue

import (
	"container/list"
	"context"
	"fmt"
	"time"
)

type taskState int

const (
	stateNew taskState = iota
	statePending
	stateRunning
	stateDone
)

// task is owned by the queue from submission to settlement. Fields other
// than result, err and done are guarded by the queue mutex.
type task struct {
	queue      *Queue
	id         string
	work       Work
	ctx        context.Context
	cancel     context.CancelFunc
	stopWatch  func() bool
	enqueuedAt time.Time
	startedAt  time.Time
	state      taskState
	elem       *list.Element
	abandoned  error
	startEvent Event

	result any
	err    error
	done   chan struct{}
}

func (t *task) settle(result any, err error) {
	t.result = result
	t.err = err
	close(t.done)
	t.cancel()
	if t.stopWatch != nil {
		t.stopWatch()
	}
}

// Handle is the caller's view of a submitted task.
type Handle struct {
	task *task
}

// ID returns the task identifier.
func (h *Handle) ID() string {
	return h.task.id
}

// Done is closed once the task has settled.
func (h *Handle) Done() <-chan struct{} {
	return h.task.done
}

// Wait blocks until the task settles or ctx ends. If ctx ends while the task
// is still pending, the task is withdrawn from the queue; running work is left
// alone, cancel the context passed to Submit for that.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.task.done:
		return h.task.result, h.task.err
	case <-ctx.Done():
		h.task.queue.abandon(h.task, ctx.Err(), false)
		return nil, ctx.Err()
	}
}

// Do submits fn and waits for its typed result. Cancelling ctx withdraws the
// task while it is pending and cancels fn's context once it runs.
func Do[T any](ctx context.Context, q *Queue, id string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	handle, err := q.Submit(ctx, id, func(runCtx context.Context) (any, error) {
		return fn(runCtx)
	})
	if err != nil {
		return zero, err
	}
	<-handle.Done()
	result, err := handle.task.result, handle.task.err
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok && result != nil {
		return zero, fmt.Errorf("task %s: unexpected result type %T", handle.ID(), result)
	}
	return typed, nil
}
