package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scenecast/internal/jobstore"
	"scenecast/internal/logging"
	"scenecast/internal/notifications"
	"scenecast/internal/providers"
	"scenecast/internal/services"
)

// fail marks step failed and the job errored, then returns stageErr. The
// failure is persisted even when ctx has been cancelled.
func (c *Controller) fail(ctx context.Context, id, step string, stageErr error) (*jobstore.Job, error) {
	if stageErr == nil {
		stageErr = services.Wrap(services.ErrGeneration, step, "", "failed without error detail", nil)
	}
	persistCtx := context.WithoutCancel(ctx)
	logger := c.jobLogger(services.WithStage(ctx, step), id)

	message := failureMessage(step, stageErr)
	job, err := c.mutate(persistCtx, id, func(job *jobstore.Job) error {
		setStep(job, step, jobstore.StepFailed, c.now())
		job.Status = jobstore.StatusError
		job.CurrentStep = "Failed: " + StepLabel(step)
		job.Error = message
		return nil
	})
	if err != nil {
		logger.Error("failed to persist stage failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_failure_persist_failed"),
		)
		return job, stageErr
	}

	if errors.Is(stageErr, context.Canceled) {
		logger.Info("job cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
	} else {
		logging.ErrorWithContext(logger, "stage failed", "job_failed",
			logging.Error(stageErr),
			logging.String("error_message", message),
		)
	}

	c.publish(persistCtx, notifications.EventJobFailed, notifications.Payload{
		"title": job.Title,
		"step":  StepLabel(step),
		"error": message,
	})
	return job, stageErr
}

func failureMessage(step string, err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("%s cancelled", step)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s timed out", step)
	}
	if message := strings.TrimSpace(services.Details(err)); message != "" {
		return message
	}
	return fmt.Sprintf("%s failed", step)
}

// finish records the composition result and marks every step completed.
func (c *Controller) finish(ctx context.Context, id string, composition providers.Composition) (*jobstore.Job, error) {
	now := c.now()
	job, err := c.mutate(ctx, id, func(job *jobstore.Job) error {
		ensureSteps(job)
		for i := range job.Steps {
			if job.Steps[i].Status != jobstore.StepCompleted {
				ts := now.UTC()
				job.Steps[i].Status = jobstore.StepCompleted
				job.Steps[i].Timestamp = &ts
			}
		}
		job.Status = jobstore.StatusCompleted
		job.Progress = 100
		job.CurrentStep = StepLabel(StepReady)
		job.Error = ""
		if job.Metadata == nil {
			job.Metadata = make(map[string]any, 2)
		}
		job.Metadata["videoUrl"] = composition.VideoURL
		job.Metadata["duration"] = composition.DurationSeconds
		return nil
	})
	if err != nil {
		return job, err
	}

	c.publish(ctx, notifications.EventJobCompleted, notifications.Payload{
		"title":    job.Title,
		"videoUrl": composition.VideoURL,
	})
	return job, nil
}

func (c *Controller) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("shutting down, could not send notification")
			return
		}
		c.logger.Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
