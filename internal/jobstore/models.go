package jobstore

import (
	"encoding/json"
	"time"
)

// Status represents a job's overall lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Valid reports whether s is a known job status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether the status ends the normal job flow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// StepStatus represents the state of a single pipeline step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Valid reports whether s is a known step status.
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepActive, StepCompleted, StepFailed:
		return true
	}
	return false
}

// Step is one named stage in a job's canonical progression.
type Step struct {
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Job is the durable record of one generation request.
type Job struct {
	ID          string
	Title       string
	Status      Status
	Progress    int
	CurrentStep string
	Steps       []Step
	Metadata    map[string]any
	Error       string
	// Extra holds fields this version does not model; they survive merges.
	Extra     map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StepIndex returns the position of the named step or -1.
func (j *Job) StepIndex(name string) int {
	for i, step := range j.Steps {
		if step.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the step slice and maps.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Steps = cloneSteps(j.Steps)
	cp.Metadata = cloneMap(j.Metadata)
	cp.Extra = cloneMap(j.Extra)
	return &cp
}

var knownFields = map[string]struct{}{
	"id": {}, "title": {}, "status": {}, "progress": {}, "currentStep": {},
	"steps": {}, "metadata": {}, "error": {}, "createdAt": {}, "updatedAt": {},
}

// MarshalJSON flattens Extra into the top-level object next to the known fields.
func (j Job) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(knownFields)+len(j.Extra))
	for key, value := range j.Extra {
		if _, known := knownFields[key]; known {
			continue
		}
		out[key] = value
	}
	out["id"] = j.ID
	out["title"] = j.Title
	out["status"] = j.Status
	out["progress"] = j.Progress
	out["currentStep"] = j.CurrentStep
	steps := j.Steps
	if steps == nil {
		steps = []Step{}
	}
	out["steps"] = steps
	metadata := j.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	out["metadata"] = metadata
	if j.Error != "" {
		out["error"] = j.Error
	}
	out["createdAt"] = j.CreatedAt.UTC().Format(time.RFC3339Nano)
	out["updatedAt"] = j.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// UnmarshalJSON decodes a job, routing unknown fields into Extra.
func (j *Job) UnmarshalJSON(data []byte) error {
	patch, err := DecodePatch(data)
	if err != nil {
		return err
	}
	var decoded Job
	patch.applyTo(&decoded)
	var stamps struct {
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &stamps); err == nil {
		decoded.CreatedAt = stamps.CreatedAt
		decoded.UpdatedAt = stamps.UpdatedAt
	}
	*j = decoded
	return nil
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, step := range steps {
		out[i] = step
		if step.Timestamp != nil {
			ts := *step.Timestamp
			out[i].Timestamp = &ts
		}
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
