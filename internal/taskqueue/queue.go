package taskqueue

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"scenecast/internal/logging"
	"scenecast/internal/services"
)

const (
	defaultHistorySize = 50
	defaultEventBuffer = 256
)

var (
	// ErrInvalidCeiling is returned when a ceiling below one is requested.
	ErrInvalidCeiling = fmt.Errorf("%w: ceiling must be at least 1", services.ErrValidation)
	// ErrClosed is returned by Submit after Close.
	ErrClosed = fmt.Errorf("%w: task queue closed", services.ErrQueueCleared)
)

// Work is a deferred unit of work. The context is cancelled when the
// submitter's context is done or the queue is closed.
type Work func(ctx context.Context) (any, error)

// Options configures a Queue.
type Options struct {
	Name        string
	Ceiling     int
	HistorySize int
	EventBuffer int
	Logger      *slog.Logger
}

// Status is a point-in-time snapshot of queue counters.
type Status struct {
	Name      string `json:"name"`
	Active    int    `json:"activeTasks"`
	Pending   int    `json:"queuedTasks"`
	Ceiling   int    `json:"maxConcurrent"`
	Completed int    `json:"processedCount"`
	Failed    int    `json:"failedCount"`
	Total     int    `json:"totalTasks"`
}

// Busy reports whether any work is running or waiting.
func (s Status) Busy() bool {
	return s.Active > 0 || s.Pending > 0
}

// Queue admits submitted work so that no more than the ceiling runs at once.
// All counters and the pending list are guarded by one mutex.
type Queue struct {
	name   string
	logger *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time

	mu          sync.Mutex
	pending     *list.List
	active      int
	ceiling     int
	completed   int
	failed      int
	closed      bool
	history     []HistoryEntry
	historySize int
	events      *eventLog
}

// New constructs a Queue. A ceiling below one is clamped to one.
func New(opts Options) *Queue {
	ceiling := opts.Ceiling
	if ceiling < 1 {
		ceiling = 1
	}
	historySize := opts.HistorySize
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	eventBuffer := opts.EventBuffer
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}
	name := opts.Name
	if name == "" {
		name = "default"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		name:        name,
		logger:      logging.NewComponentLogger(opts.Logger, "taskqueue").With(logging.Queue(name)),
		baseCtx:     ctx,
		cancel:      cancel,
		now:         time.Now,
		pending:     list.New(),
		ceiling:     ceiling,
		historySize: historySize,
		events:      newEventLog(eventBuffer),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Submit appends work to the tail of the pending list and returns a handle
// that settles once the work has run. An empty id is replaced with a
// generated one. Cancelling ctx removes the task if it is still pending and
// cancels the work's context if it is running.
func (q *Queue) Submit(ctx context.Context, id string, work Work) (*Handle, error) {
	if work == nil {
		return nil, services.Wrap(services.ErrValidation, q.name, "submit", "work is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		id = q.name + "-" + uuid.NewString()
	}

	runCtx, runCancel := context.WithCancel(q.baseCtx)
	t := &task{
		queue:      q,
		id:         id,
		work:       work,
		ctx:        runCtx,
		cancel:     runCancel,
		enqueuedAt: q.now(),
		done:       make(chan struct{}),
	}
	t.stopWatch = context.AfterFunc(ctx, func() { q.abandon(t, context.Cause(ctx), true) })

	q.mu.Lock()
	if q.closed || t.abandoned != nil {
		err := ErrClosed
		if t.abandoned != nil {
			err = t.abandoned
		}
		t.state = stateDone
		q.mu.Unlock()
		t.stopWatch()
		runCancel()
		return nil, err
	}
	t.state = statePending
	t.elem = q.pending.PushBack(t)
	added := q.publishLocked(Event{Type: EventTaskAdded, TaskID: id, Pending: q.pending.Len()})
	started := q.dispatchLocked()
	q.mu.Unlock()

	q.logEvent(added)
	q.launch(started)
	return &Handle{task: t}, nil
}

// SetCeiling changes the concurrency ceiling. Values below one are rejected
// with ErrInvalidCeiling and leave the queue unchanged. Raising the ceiling
// dispatches waiting work immediately; lowering it never preempts running work.
func (q *Queue) SetCeiling(n int) error {
	if n < 1 {
		logging.WarnWithContext(q.logger, "ceiling change rejected", "ceiling_rejected",
			logging.Int("requested", n),
			logging.String(logging.FieldErrorHint, "use a ceiling of 1 or more"),
			logging.String(logging.FieldImpact, "queue keeps its current ceiling"),
		)
		return ErrInvalidCeiling
	}
	q.mu.Lock()
	previous := q.ceiling
	q.ceiling = n
	ev := q.publishLocked(Event{Type: EventCeilingChanged, Count: n, Previous: previous})
	started := q.dispatchLocked()
	q.mu.Unlock()

	q.logEvent(ev)
	q.launch(started)
	return nil
}

// CancelPending removes every task that has not started and fails each with
// a queue-cleared error. Running tasks are unaffected. It returns the number
// of tasks removed.
func (q *Queue) CancelPending() int {
	cause := services.Wrap(services.ErrQueueCleared, q.name, "cancel pending", "queue cleared by system", nil)

	q.mu.Lock()
	var removed []*task
	for e := q.pending.Front(); e != nil; {
		next := e.Next()
		t := q.pending.Remove(e).(*task)
		t.elem = nil
		t.state = stateDone
		removed = append(removed, t)
		q.recordLocked(t, OutcomeCancelled, cause)
		e = next
	}
	ev := q.publishLocked(Event{Type: EventQueueCleared, Count: len(removed)})
	q.mu.Unlock()

	for _, t := range removed {
		t.settle(nil, cause)
	}
	q.logEvent(ev)
	return len(removed)
}

// Cancel removes a single pending task by id, failing it with a
// queue-cleared error. It reports false when no pending task has that id.
func (q *Queue) Cancel(id string) bool {
	cause := services.Wrap(services.ErrQueueCleared, q.name, "cancel", "task cancelled by user", nil)

	q.mu.Lock()
	t := q.findPendingLocked(id)
	if t == nil {
		q.mu.Unlock()
		return false
	}
	q.pending.Remove(t.elem)
	t.elem = nil
	t.state = stateDone
	q.recordLocked(t, OutcomeCancelled, cause)
	ev := q.publishLocked(Event{Type: EventTaskCancelled, TaskID: id, Pending: q.pending.Len()})
	q.mu.Unlock()

	t.settle(nil, cause)
	q.logEvent(ev)
	return true
}

// Status returns a snapshot of the queue counters.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

// ResetStats zeroes the completed and failed counters.
func (q *Queue) ResetStats() {
	q.mu.Lock()
	q.completed = 0
	q.failed = 0
	q.mu.Unlock()
	q.logger.Info("queue stats reset", logging.String(logging.FieldEventType, "queue_stats_reset"))
}

// Close rejects further submissions, fails pending tasks, cancels the context
// of running work, and waits for it to settle or for ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.CancelPending()
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	q.events.closeSubscribers()
	return err
}

func (q *Queue) statusLocked() Status {
	pending := q.pending.Len()
	return Status{
		Name:      q.name,
		Active:    q.active,
		Pending:   pending,
		Ceiling:   q.ceiling,
		Completed: q.completed,
		Failed:    q.failed,
		Total:     q.completed + q.failed + q.active + pending,
	}
}

// dispatchLocked pops pending tasks while capacity allows and marks them
// active. The caller launches the returned tasks after releasing the lock.
func (q *Queue) dispatchLocked() []*task {
	var started []*task
	for q.active < q.ceiling && q.pending.Len() > 0 {
		t := q.pending.Remove(q.pending.Front()).(*task)
		t.elem = nil
		t.state = stateRunning
		t.startedAt = q.now()
		q.active++
		t.startEvent = q.publishLocked(Event{
			Type:   EventTaskStarted,
			TaskID: t.id,
			WaitMS: t.startedAt.Sub(t.enqueuedAt).Milliseconds(),
			Active: q.active,
		})
		started = append(started, t)
	}
	return started
}

func (q *Queue) launch(started []*task) {
	for _, t := range started {
		q.logEvent(t.startEvent)
		q.wg.Add(1)
		go q.run(t)
	}
}

func (q *Queue) run(t *task) {
	defer q.wg.Done()
	result, err := q.execute(t)
	q.finish(t, result, err)
}

func (q *Queue) execute(t *task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.id, r)
		}
	}()
	ctx := services.WithQueue(t.ctx, q.name)
	return t.work(ctx)
}

func (q *Queue) finish(t *task, result any, err error) {
	finishedAt := q.now()
	runMS := finishedAt.Sub(t.startedAt).Milliseconds()

	q.mu.Lock()
	q.active--
	t.state = stateDone
	var ev Event
	if err != nil {
		q.failed++
		q.recordLocked(t, OutcomeFailed, err)
		ev = q.publishLocked(Event{Type: EventTaskFailed, TaskID: t.id, RunMS: runMS, Error: err.Error()})
	} else {
		q.completed++
		q.recordLocked(t, OutcomeCompleted, nil)
		ev = q.publishLocked(Event{Type: EventTaskCompleted, TaskID: t.id, RunMS: runMS, Processed: q.completed})
	}
	started := q.dispatchLocked()
	q.mu.Unlock()

	t.settle(result, err)
	q.logEvent(ev)
	q.launch(started)
}

// abandon handles a caller giving up on a task: a pending task is removed
// and settled with the cause. A running task has its work context cancelled
// only when cancelRunning is set.
func (q *Queue) abandon(t *task, cause error, cancelRunning bool) {
	if cause == nil {
		cause = context.Canceled
	}
	q.mu.Lock()
	switch t.state {
	case stateNew:
		t.abandoned = cause
		q.mu.Unlock()
		return
	case stateRunning:
		q.mu.Unlock()
		if cancelRunning {
			t.cancel()
		}
		return
	case stateDone:
		q.mu.Unlock()
		return
	}
	q.pending.Remove(t.elem)
	t.elem = nil
	t.state = stateDone
	q.recordLocked(t, OutcomeCancelled, cause)
	ev := q.publishLocked(Event{Type: EventTaskCancelled, TaskID: t.id, Pending: q.pending.Len(), Error: cause.Error()})
	q.mu.Unlock()

	t.settle(nil, cause)
	q.logEvent(ev)
}

func (q *Queue) findPendingLocked(id string) *task {
	for e := q.pending.Front(); e != nil; e = e.Next() {
		if t := e.Value.(*task); t.id == id {
			return t
		}
	}
	return nil
}

func (q *Queue) logEvent(ev Event) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, string(ev.Type)),
	}
	if ev.TaskID != "" {
		attrs = append(attrs, logging.TaskID(ev.TaskID))
	}
	switch ev.Type {
	case EventTaskAdded:
		q.logger.Debug("task added", logging.Args(append(attrs, logging.Int("pending", ev.Pending))...)...)
	case EventTaskStarted:
		q.logger.Debug("task started", logging.Args(append(attrs,
			logging.Int("active", ev.Active),
			logging.Duration("wait", time.Duration(ev.WaitMS)*time.Millisecond),
		)...)...)
	case EventTaskCompleted:
		q.logger.Info("task completed", logging.Args(append(attrs,
			logging.Duration("run", time.Duration(ev.RunMS)*time.Millisecond),
			logging.Int("total_processed", ev.Processed),
		)...)...)
	case EventTaskFailed:
		q.logger.Warn("task failed", logging.Args(append(attrs,
			logging.Duration("run", time.Duration(ev.RunMS)*time.Millisecond),
			logging.String("error", ev.Error),
		)...)...)
	case EventTaskCancelled:
		q.logger.Info("pending task cancelled", logging.Args(attrs...)...)
	case EventQueueCleared:
		q.logger.Info("pending tasks cleared", logging.Args(append(attrs, logging.Int("cleared", ev.Count))...)...)
	case EventCeilingChanged:
		q.logger.Info("ceiling changed", logging.Args(append(attrs,
			logging.Int("previous", ev.Previous),
			logging.Int("ceiling", ev.Count),
		)...)...)
	}
}

// IsCleared reports whether err came from a pending task being cancelled
// through CancelPending, Cancel, or Close.
func IsCleared(err error) bool {
	return errors.Is(err, services.ErrQueueCleared)
}
