package taskqueue

import (
	"context"
	"time"

	"scenecast/internal/logging"
)

// RunStatusLogger logs a status line every interval while the queue has
// active or pending work. It returns when ctx ends.
func (q *Queue) RunStatusLogger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.logStatus()
		}
	}
}

func (q *Queue) logStatus() bool {
	status := q.Status()
	if !status.Busy() {
		return false
	}
	q.logger.Info("queue status",
		logging.Int("active", status.Active),
		logging.Int("pending", status.Pending),
		logging.Int("ceiling", status.Ceiling),
		logging.Int("completed", status.Completed),
		logging.Int("failed", status.Failed),
		logging.String(logging.FieldEventType, "queue_status"),
	)
	return true
}
