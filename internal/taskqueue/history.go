package taskqueue

import "time"

// Outcome records how a task left the queue.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// HistoryEntry describes a settled task.
type HistoryEntry struct {
	TaskID     string     `json:"taskId"`
	Outcome    Outcome    `json:"outcome"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	SettledAt  time.Time  `json:"settledAt"`
	Error      string     `json:"error,omitempty"`
}

// Wait is how long the task spent pending.
func (h HistoryEntry) Wait() time.Duration {
	if h.StartedAt == nil {
		return h.SettledAt.Sub(h.EnqueuedAt)
	}
	return h.StartedAt.Sub(h.EnqueuedAt)
}

// Run is how long the task's work ran; zero for tasks that never started.
func (h HistoryEntry) Run() time.Duration {
	if h.StartedAt == nil {
		return 0
	}
	return h.SettledAt.Sub(*h.StartedAt)
}

func (q *Queue) recordLocked(t *task, outcome Outcome, err error) {
	entry := HistoryEntry{
		TaskID:     t.id,
		Outcome:    outcome,
		EnqueuedAt: t.enqueuedAt,
		SettledAt:  q.now(),
	}
	if !t.startedAt.IsZero() {
		started := t.startedAt
		entry.StartedAt = &started
	}
	if err != nil {
		entry.Error = err.Error()
	}
	q.history = append([]HistoryEntry{entry}, q.history...)
	if len(q.history) > q.historySize {
		q.history = q.history[:q.historySize]
	}
}

// History returns settled tasks, newest first, bounded by the configured
// history size.
func (q *Queue) History() []HistoryEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]HistoryEntry, len(q.history))
	copy(out, q.history)
	return out
}
