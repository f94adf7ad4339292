package pipeline

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scenecast/internal/jobstore"
)

// Canonical step names in pipeline order.
const (
	StepQueued      = "queued"
	StepScript      = "script"
	StepImages      = "images"
	StepNarration   = "narration"
	StepComposition = "composition"
	StepReady       = "ready"
)

var canonicalSteps = []string{StepQueued, StepScript, StepImages, StepNarration, StepComposition, StepReady}

// CanonicalSteps returns the step names in order.
func CanonicalSteps() []string {
	return append([]string(nil), canonicalSteps...)
}

// DefaultSteps returns the initial snapshot: queued completed at now, every
// other step pending.
func DefaultSteps(now time.Time) []jobstore.Step {
	steps := make([]jobstore.Step, len(canonicalSteps))
	for i, name := range canonicalSteps {
		steps[i] = jobstore.Step{Name: name, Status: jobstore.StepPending}
	}
	ts := now.UTC()
	steps[0].Status = jobstore.StepCompleted
	steps[0].Timestamp = &ts
	return steps
}

// StepLabel returns the display label for a step name.
func StepLabel(name string) string {
	return cases.Title(language.English).String(name)
}

// band is the progress range a stage moves through.
type band struct {
	start, end int
}

var progressBands = map[string]band{
	StepScript:      {10, 20},
	StepImages:      {20, 50},
	StepNarration:   {50, 80},
	StepComposition: {80, 95},
}

// at interpolates progress after done of total units.
func (b band) at(done, total int) int {
	if total <= 0 || done >= total {
		return b.end
	}
	if done <= 0 {
		return b.start
	}
	return b.start + (b.end-b.start)*done/total
}

// ensureSteps fills in any canonical step missing from job.
func ensureSteps(job *jobstore.Job) {
	if len(job.Steps) == 0 {
		job.Steps = DefaultSteps(job.CreatedAt)
		return
	}
	for _, name := range canonicalSteps {
		if job.StepIndex(name) < 0 {
			job.Steps = append(job.Steps, jobstore.Step{Name: name, Status: jobstore.StepPending})
		}
	}
}

func setStep(job *jobstore.Job, name string, status jobstore.StepStatus, now time.Time) {
	ensureSteps(job)
	idx := job.StepIndex(name)
	ts := now.UTC()
	job.Steps[idx].Status = status
	job.Steps[idx].Timestamp = &ts
}
