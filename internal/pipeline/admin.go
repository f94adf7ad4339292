package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scenecast/internal/jobstore"
	"scenecast/internal/logging"
	"scenecast/internal/services"
)

// Force presets.
const (
	PresetProcessing = "processing"
	PresetCompleted  = "completed"
)

// Placeholder artifact recorded by the completed preset.
const (
	presetVideoURL      = "/media/videos/test-video.mp4"
	presetVideoDuration = 30
)

// Override is an administrative change applied outside the normal job flow.
// A preset is applied first; explicit fields then take precedence.
type Override struct {
	Preset      string           `json:"preset,omitempty"`
	Status      *jobstore.Status `json:"status,omitempty"`
	Progress    *int             `json:"progress,omitempty"`
	CurrentStep *string          `json:"currentStep,omitempty"`
	Steps       []jobstore.Step  `json:"steps,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	Error       *string          `json:"error,omitempty"`
}

func (o Override) empty() bool {
	return o.Preset == "" && o.Status == nil && o.Progress == nil && o.CurrentStep == nil &&
		o.Steps == nil && o.Metadata == nil && o.Error == nil
}

// Force applies o to an existing job. It is rejected unless
// workflow.allow_admin_overrides is set.
func (c *Controller) Force(ctx context.Context, id string, o Override) (*jobstore.Job, error) {
	if !c.cfg.Workflow.AllowAdminOverrides {
		return nil, services.Wrap(services.ErrConflict, "pipeline", "force", "admin overrides are disabled", nil)
	}
	o.Preset = strings.ToLower(strings.TrimSpace(o.Preset))
	if o.empty() {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "force", "override is empty", nil)
	}
	switch o.Preset {
	case "", PresetProcessing, PresetCompleted:
	default:
		return nil, services.Wrap(services.ErrValidation, "pipeline", "force", fmt.Sprintf("unknown preset %q", o.Preset), nil)
	}

	now := c.now()
	job, err := c.mutate(ctx, id, func(job *jobstore.Job) error {
		switch o.Preset {
		case PresetProcessing:
			applyProcessingPreset(job, now)
		case PresetCompleted:
			applyCompletedPreset(job, now)
		}
		if o.Status != nil {
			job.Status = *o.Status
		}
		if o.Progress != nil {
			job.Progress = *o.Progress
		}
		if o.CurrentStep != nil {
			job.CurrentStep = *o.CurrentStep
		}
		if o.Steps != nil {
			job.Steps = append([]jobstore.Step(nil), o.Steps...)
		}
		if len(o.Metadata) > 0 && job.Metadata == nil {
			job.Metadata = make(map[string]any, len(o.Metadata))
		}
		for key, value := range o.Metadata {
			job.Metadata[key] = value
		}
		if o.Error != nil {
			job.Error = *o.Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.jobLogger(ctx, id).Warn("job state overridden",
		logging.String(logging.FieldEventType, "job_forced"),
		logging.String("preset", o.Preset),
		logging.String("status", string(job.Status)),
		logging.Int("progress", job.Progress),
	)
	return job, nil
}

// applyProcessingPreset leaves the job mid-way through image generation.
func applyProcessingPreset(job *jobstore.Job, now time.Time) {
	job.Steps = DefaultSteps(job.CreatedAt)
	setStep(job, StepScript, jobstore.StepCompleted, now)
	setStep(job, StepImages, jobstore.StepActive, now)
	job.Status = jobstore.StatusProcessing
	job.Progress = 15
	job.CurrentStep = "Generating images (2/5)"
	job.Error = ""
}

// applyCompletedPreset marks every step done with a placeholder video.
func applyCompletedPreset(job *jobstore.Job, now time.Time) {
	job.Steps = DefaultSteps(job.CreatedAt)
	for _, name := range canonicalSteps[1:] {
		setStep(job, name, jobstore.StepCompleted, now)
	}
	job.Status = jobstore.StatusCompleted
	job.Progress = 100
	job.CurrentStep = StepLabel(StepReady)
	job.Error = ""
	if job.Metadata == nil {
		job.Metadata = make(map[string]any, 2)
	}
	job.Metadata["videoUrl"] = presetVideoURL
	job.Metadata["duration"] = presetVideoDuration
}

// Track upserts a raw job record under the job's lock.
func (c *Controller) Track(ctx context.Context, patch jobstore.Patch) (*jobstore.Job, error) {
	patch.ID = strings.TrimSpace(patch.ID)
	unlock := c.locks.Lock(patch.ID)
	defer unlock()
	return c.store.Upsert(ctx, patch)
}

// Update merges patch onto an existing job. Unlike Track it never inserts.
func (c *Controller) Update(ctx context.Context, patch jobstore.Patch) (*jobstore.Job, error) {
	patch.ID = strings.TrimSpace(patch.ID)
	unlock := c.locks.Lock(patch.ID)
	defer unlock()
	if _, err := c.store.Get(ctx, patch.ID); err != nil {
		return nil, err
	}
	return c.store.Upsert(ctx, patch)
}

// Delete removes a job record.
func (c *Controller) Delete(ctx context.Context, id string) error {
	unlock := c.locks.Lock(id)
	defer unlock()
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.jobLogger(ctx, id).Info("job deleted", logging.String(logging.FieldEventType, "job_deleted"))
	return nil
}

// PurgeCompleted removes every completed job.
func (c *Controller) PurgeCompleted(ctx context.Context) (int64, error) {
	removed, err := c.store.PurgeCompleted(ctx)
	if err != nil {
		return 0, err
	}
	c.logger.Info("completed jobs purged",
		logging.String(logging.FieldEventType, "jobs_purged"),
		logging.Int64("removed", removed),
	)
	return removed, nil
}
