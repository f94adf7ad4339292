package taskqueue_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scenecast/internal/services"
	"scenecast/internal/taskqueue"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newQueue(t *testing.T, ceiling int) *taskqueue.Queue {
	t.Helper()
	q := taskqueue.New(taskqueue.Options{Name: "test", Ceiling: ceiling})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = q.Close(ctx)
	})
	return q
}

// waitUntil polls cond until it holds or waitFor elapses.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(tick)
	}
}

func activeIs(q *taskqueue.Queue, n int) func() bool {
	return func() bool { return q.Status().Active == n }
}

// blocking returns work that waits for release and records itself as running.
func blocking(release <-chan struct{}, current, peak *int64) taskqueue.Work {
	return func(ctx context.Context) (any, error) {
		n := atomic.AddInt64(current, 1)
		for {
			old := atomic.LoadInt64(peak)
			if n <= old || atomic.CompareAndSwapInt64(peak, old, n) {
				break
			}
		}
		defer atomic.AddInt64(current, -1)
		select {
		case <-release:
			return "ok", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func mustSubmit(t *testing.T, q *taskqueue.Queue, ctx context.Context, id string, work taskqueue.Work) *taskqueue.Handle {
	t.Helper()
	h, err := q.Submit(ctx, id, work)
	if err != nil {
		t.Fatalf("submit %q: %v", id, err)
	}
	return h
}

func TestQueueNeverExceedsCeiling(t *testing.T) {
	q := newQueue(t, 3)
	release := make(chan struct{})
	var current, peak int64

	handles := make([]*taskqueue.Handle, 0, 10)
	for i := 0; i < 10; i++ {
		handles = append(handles, mustSubmit(t, q, context.Background(), "", blocking(release, &current, &peak)))
	}

	waitUntil(t, "three active tasks", activeIs(q, 3))
	status := q.Status()
	if status.Pending != 7 || status.Ceiling != 3 {
		t.Fatalf("expected 7 pending under ceiling 3, got %+v", status)
	}

	close(release)
	for _, h := range handles {
		result, err := h.Wait(context.Background())
		if err != nil {
			t.Fatalf("wait %s: %v", h.ID(), err)
		}
		if result != "ok" {
			t.Fatalf("unexpected result %v", result)
		}
	}

	if got := atomic.LoadInt64(&peak); got > 3 {
		t.Fatalf("peak concurrency %d exceeded ceiling", got)
	}
	status = q.Status()
	if status.Active != 0 || status.Completed != 10 || status.Total != 10 {
		t.Fatalf("unexpected final status %+v", status)
	}
}

func TestQueueDispatchesInSubmissionOrder(t *testing.T) {
	q := newQueue(t, 1)
	gate := make(chan struct{})
	var mu sync.Mutex
	var order []string

	record := func(id string) taskqueue.Work {
		return func(context.Context) (any, error) {
			if id == "t1" {
				<-gate
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil, nil
		}
	}

	var handles []*taskqueue.Handle
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		h := mustSubmit(t, q, context.Background(), id, record(id))
		if h.ID() != id {
			t.Fatalf("expected handle id %q, got %q", id, h.ID())
		}
		handles = append(handles, h)
	}
	close(gate)
	for _, h := range handles {
		if _, err := h.Wait(context.Background()); err != nil {
			t.Fatalf("wait %s: %v", h.ID(), err)
		}
	}

	if want := []string{"t1", "t2", "t3", "t4"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
}

func TestQueueFailureDoesNotBlockNextTask(t *testing.T) {
	q := newQueue(t, 1)
	boom := errors.New("engine crashed")

	failing := mustSubmit(t, q, context.Background(), "fail", func(context.Context) (any, error) {
		return nil, boom
	})
	succeeding := mustSubmit(t, q, context.Background(), "succeed", func(context.Context) (any, error) {
		return 42, nil
	})

	if _, err := failing.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}

	result, err := succeeding.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %v", result)
	}

	status := q.Status()
	if status.Completed != 1 || status.Failed != 1 {
		t.Fatalf("expected one completed and one failed, got %+v", status)
	}
}

func TestQueuePanicIsReportedAsFailure(t *testing.T) {
	q := newQueue(t, 1)
	h := mustSubmit(t, q, context.Background(), "panic", func(context.Context) (any, error) {
		panic("bad input")
	})

	_, err := h.Wait(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad input") {
		t.Fatalf("expected panic to surface as error, got %v", err)
	}
	if got := q.Status().Failed; got != 1 {
		t.Fatalf("expected 1 failed, got %d", got)
	}
}

func TestSetCeilingDispatchesWaitingWork(t *testing.T) {
	q := newQueue(t, 1)
	release := make(chan struct{})
	defer close(release)
	var current, peak int64

	for i := 0; i < 3; i++ {
		mustSubmit(t, q, context.Background(), "", blocking(release, &current, &peak))
	}
	waitUntil(t, "one active task", activeIs(q, 1))
	if got := q.Status().Pending; got != 2 {
		t.Fatalf("expected 2 pending, got %d", got)
	}

	if err := q.SetCeiling(3); err != nil {
		t.Fatalf("set ceiling: %v", err)
	}
	waitUntil(t, "three active tasks", activeIs(q, 3))
	if got := q.Status().Pending; got != 0 {
		t.Fatalf("expected nothing pending, got %d", got)
	}
}

func TestSetCeilingValidation(t *testing.T) {
	tests := map[string]struct {
		ceiling    int
		expErr     error
		expCeiling int
	}{
		"Zero is rejected":     {ceiling: 0, expErr: taskqueue.ErrInvalidCeiling, expCeiling: 2},
		"Negative is rejected": {ceiling: -4, expErr: taskqueue.ErrInvalidCeiling, expCeiling: 2},
		"One is accepted":      {ceiling: 1, expCeiling: 1},
		"Larger is accepted":   {ceiling: 8, expCeiling: 8},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			q := newQueue(t, 2)
			err := q.SetCeiling(test.ceiling)
			if test.expErr != nil {
				if !errors.Is(err, test.expErr) || !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected %v validation error, got %v", test.expErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := q.Status().Ceiling; got != test.expCeiling {
				t.Fatalf("expected ceiling %d, got %d", test.expCeiling, got)
			}
		})
	}
}

func TestLoweringCeilingDoesNotPreempt(t *testing.T) {
	q := newQueue(t, 2)
	release := make(chan struct{})
	var current, peak int64

	var handles []*taskqueue.Handle
	for i := 0; i < 3; i++ {
		handles = append(handles, mustSubmit(t, q, context.Background(), "", blocking(release, &current, &peak)))
	}
	waitUntil(t, "two active tasks", activeIs(q, 2))

	if err := q.SetCeiling(1); err != nil {
		t.Fatalf("set ceiling: %v", err)
	}
	status := q.Status()
	if status.Active != 2 || status.Pending != 1 {
		t.Fatalf("lowering the ceiling must not preempt, got %+v", status)
	}

	close(release)
	for _, h := range handles {
		if _, err := h.Wait(context.Background()); err != nil {
			t.Fatalf("wait %s: %v", h.ID(), err)
		}
	}
}

func TestCancelPendingOnlyRejectsUndispatched(t *testing.T) {
	q := newQueue(t, 1)
	release := make(chan struct{})
	var current, peak int64

	first := mustSubmit(t, q, context.Background(), "first", blocking(release, &current, &peak))
	second := mustSubmit(t, q, context.Background(), "second", blocking(release, &current, &peak))
	waitUntil(t, "first task to start", activeIs(q, 1))

	if got := q.CancelPending(); got != 1 {
		t.Fatalf("expected 1 cancelled, got %d", got)
	}

	_, err := second.Wait(context.Background())
	if !taskqueue.IsCleared(err) || !errors.Is(err, services.ErrQueueCleared) {
		t.Fatalf("expected queue cleared error, got %v", err)
	}

	close(release)
	result, err := first.Wait(context.Background())
	if err != nil {
		t.Fatalf("running task should finish: %v", err)
	}
	if result != "ok" {
		t.Fatalf("unexpected result %v", result)
	}

	status := q.Status()
	if status.Completed != 1 || status.Failed != 0 || status.Pending != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestCancelSinglePendingTask(t *testing.T) {
	q := newQueue(t, 1)
	release := make(chan struct{})
	defer close(release)
	var current, peak int64

	mustSubmit(t, q, context.Background(), "running", blocking(release, &current, &peak))
	waiting := mustSubmit(t, q, context.Background(), "waiting", blocking(release, &current, &peak))
	waitUntil(t, "running task to start", activeIs(q, 1))

	if q.Cancel("running") {
		t.Fatal("running tasks cannot be cancelled")
	}
	if q.Cancel("missing") {
		t.Fatal("unknown task reported as cancelled")
	}
	if !q.Cancel("waiting") {
		t.Fatal("expected pending task to be cancelled")
	}

	if _, err := waiting.Wait(context.Background()); !taskqueue.IsCleared(err) {
		t.Fatalf("expected queue cleared error, got %v", err)
	}

	history := q.History()
	if len(history) == 0 {
		t.Fatal("expected history entry for cancelled task")
	}
	if history[0].TaskID != "waiting" || history[0].Outcome != taskqueue.OutcomeCancelled {
		t.Fatalf("unexpected newest history entry %+v", history[0])
	}
}

func TestSubmitterCancellationWithdrawsPendingTask(t *testing.T) {
	q := newQueue(t, 1)
	release := make(chan struct{})
	defer close(release)
	var current, peak int64

	mustSubmit(t, q, context.Background(), "running", blocking(release, &current, &peak))

	ctx, cancel := context.WithCancel(context.Background())
	pending := mustSubmit(t, q, ctx, "pending", blocking(release, &current, &peak))
	if got := q.Status().Pending; got != 1 {
		t.Fatalf("expected 1 pending, got %d", got)
	}

	cancel()
	if _, err := pending.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	status := q.Status()
	if status.Pending != 0 || status.Active != 1 {
		t.Fatalf("expected withdrawn task and one running, got %+v", status)
	}
}

func TestWaitCancellationWithdrawsPendingTask(t *testing.T) {
	q := newQueue(t, 1)
	release := make(chan struct{})
	defer close(release)
	var current, peak int64

	running := mustSubmit(t, q, context.Background(), "running", blocking(release, &current, &peak))
	waitUntil(t, "running task to start", activeIs(q, 1))
	pending := mustSubmit(t, q, context.Background(), "pending", blocking(release, &current, &peak))

	waitCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pending.Wait(waitCtx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	select {
	case <-pending.Done():
	default:
		t.Fatal("abandoned pending task was not settled")
	}
	status := q.Status()
	if status.Pending != 0 || status.Active != 1 {
		t.Fatalf("expected pending task withdrawn, got %+v", status)
	}
	if history := q.History(); len(history) == 0 || history[0].TaskID != "pending" || history[0].Outcome != taskqueue.OutcomeCancelled {
		t.Fatalf("expected cancelled history entry for pending task, got %+v", history)
	}

	// Giving up on a running task leaves it running.
	if _, err := running.Wait(waitCtx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	select {
	case <-running.Done():
		t.Fatal("running task was cancelled by an abandoned wait")
	default:
	}
	if got := q.Status().Active; got != 1 {
		t.Fatalf("expected running task to continue, got %d active", got)
	}
}

func TestSubmitterCancellationReachesRunningWork(t *testing.T) {
	q := newQueue(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})

	h := mustSubmit(t, q, ctx, "long", func(runCtx context.Context) (any, error) {
		close(started)
		<-runCtx.Done()
		return nil, runCtx.Err()
	})
	<-started
	cancel()

	if _, err := h.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := q.Status().Failed; got != 1 {
		t.Fatalf("expected 1 failed, got %d", got)
	}
}

func TestWorkSeesQueueNameInContext(t *testing.T) {
	q := newQueue(t, 1)
	name, err := taskqueue.Do(context.Background(), q, "", func(ctx context.Context) (string, error) {
		value, _ := services.QueueFromContext(ctx)
		return value, nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if name != "test" {
		t.Fatalf("expected queue name %q in context, got %q", "test", name)
	}
}

func TestCloseFailsPendingAndRejectsSubmissions(t *testing.T) {
	q := taskqueue.New(taskqueue.Options{Name: "closing", Ceiling: 1})
	started := make(chan struct{})

	running := mustSubmit(t, q, context.Background(), "running", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	pending := mustSubmit(t, q, context.Background(), "pending", func(context.Context) (any, error) { return nil, nil })
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := pending.Wait(context.Background()); !taskqueue.IsCleared(err) {
		t.Fatalf("expected pending task cleared, got %v", err)
	}
	if _, err := running.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected running task cancelled, got %v", err)
	}

	_, err := q.Submit(context.Background(), "", func(context.Context) (any, error) { return nil, nil })
	if !errors.Is(err, taskqueue.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSubmitRequiresWork(t *testing.T) {
	q := newQueue(t, 1)
	if _, err := q.Submit(context.Background(), "", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHistoryIsBoundedNewestFirst(t *testing.T) {
	q := taskqueue.New(taskqueue.Options{Name: "hist", Ceiling: 1, HistorySize: 2})
	defer q.Close(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		if _, err := taskqueue.Do(context.Background(), q, id, func(context.Context) (int, error) { return 1, nil }); err != nil {
			t.Fatalf("do %s: %v", id, err)
		}
	}

	history := q.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].TaskID != "c" || history[1].TaskID != "b" {
		t.Fatalf("expected newest first [c b], got [%s %s]", history[0].TaskID, history[1].TaskID)
	}
	if history[0].Outcome != taskqueue.OutcomeCompleted {
		t.Fatalf("unexpected outcome %s", history[0].Outcome)
	}
	if history[0].StartedAt == nil {
		t.Fatal("expected StartedAt on completed entry")
	}
	if history[0].Run() < 0 {
		t.Fatalf("negative run duration %s", history[0].Run())
	}
}

func TestResetStats(t *testing.T) {
	q := newQueue(t, 1)
	if _, err := taskqueue.Do(context.Background(), q, "", func(context.Context) (int, error) { return 0, errors.New("x") }); err == nil {
		t.Fatal("expected failing task to return an error")
	}
	if _, err := taskqueue.Do(context.Background(), q, "", func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("do: %v", err)
	}

	q.ResetStats()
	status := q.Status()
	if status.Completed != 0 || status.Failed != 0 {
		t.Fatalf("expected counters reset, got %+v", status)
	}
}

func TestDoReturnsTypedResult(t *testing.T) {
	q := newQueue(t, 2)
	type clip struct {
		URL      string
		Duration float64
	}
	got, err := taskqueue.Do(context.Background(), q, "speech-1", func(context.Context) (clip, error) {
		return clip{URL: "file:///a.wav", Duration: 2.5}, nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if want := (clip{URL: "file:///a.wav", Duration: 2.5}); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}
