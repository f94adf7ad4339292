package pipeline

import (
	"context"

	"scenecast/internal/jobstore"
	"scenecast/internal/logging"
)

const interruptedMessage = "interrupted by restart"

// Recover fails jobs a previous process left queued or processing. It must
// run before any new job is submitted.
func (c *Controller) Recover(ctx context.Context) (int, error) {
	jobs, err := c.store.ListByStatus(ctx, jobstore.StatusQueued, jobstore.StatusProcessing)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, stale := range jobs {
		job, err := c.mutate(ctx, stale.ID, func(job *jobstore.Job) error {
			if job.Status.Terminal() {
				return nil
			}
			ensureSteps(job)
			step := interruptedStep(job)
			setStep(job, step, jobstore.StepFailed, c.now())
			job.Status = jobstore.StatusError
			job.CurrentStep = "Failed: " + StepLabel(step)
			job.Error = interruptedMessage
			return nil
		})
		if err != nil {
			return recovered, err
		}
		recovered++
		logging.WarnWithContext(c.jobLogger(ctx, job.ID), "interrupted job marked failed", "job_recovered",
			logging.String("previous_status", string(stale.Status)),
			logging.String(logging.FieldImpact, "job must be resubmitted"),
			logging.String(logging.FieldErrorHint, "create the job again to regenerate the video"),
		)
	}
	return recovered, nil
}

// interruptedStep picks the active step, else the first step not completed,
// else the last step for a job that finished every step but never settled.
func interruptedStep(job *jobstore.Job) string {
	for _, step := range job.Steps {
		if step.Status == jobstore.StepActive {
			return step.Name
		}
	}
	for _, step := range job.Steps {
		if step.Status != jobstore.StepCompleted {
			return step.Name
		}
	}
	if n := len(job.Steps); n > 0 {
		return job.Steps[n-1].Name
	}
	return StepQueued
}
