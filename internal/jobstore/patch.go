package jobstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"scenecast/internal/services"
)

// Patch describes a partial job update. Nil pointers, nil slices and nil
// maps mean "absent" and leave the stored value untouched. Steps and
// Metadata replace the stored values wholesale when present; each key in
// Extra overwrites the stored key of the same name. CreatedAt only applies
// when the patch inserts a new job.
type Patch struct {
	ID          string
	CreatedAt   *time.Time
	Title       *string
	Status      *Status
	Progress    *int
	CurrentStep *string
	Steps       []Step
	Metadata    map[string]any
	Error       *string
	Extra       map[string]any
}

// String and friends build pointers for patch literals.
func String(v string) *string { return &v }

func Int(v int) *int { return &v }

func StatusPtr(v Status) *Status { return &v }

// DecodePatch parses a JSON object into a Patch. Fields outside the job
// model are kept in Extra. A well-formed createdAt is kept for inserts and
// anything else is dropped; updatedAt is ignored because the store owns it.
func DecodePatch(data []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Patch{}, services.Wrap(services.ErrValidation, "jobstore", "decode", "job payload must be a JSON object", err)
	}

	var patch Patch
	for key, value := range raw {
		var err error
		switch key {
		case "id":
			err = json.Unmarshal(value, &patch.ID)
		case "title":
			err = decodeOptional(value, &patch.Title)
		case "status":
			err = decodeOptional(value, &patch.Status)
		case "progress":
			var progress *float64
			if err = decodeOptional(value, &progress); err == nil && progress != nil {
				if *progress != math.Trunc(*progress) {
					return Patch{}, services.Wrap(services.ErrValidation, "jobstore", "decode",
						fmt.Sprintf("progress %v must be a whole number", *progress), nil)
				}
				patch.Progress = Int(int(*progress))
			}
		case "currentStep":
			err = decodeOptional(value, &patch.CurrentStep)
		case "steps":
			if string(value) != "null" {
				patch.Steps = []Step{}
				err = json.Unmarshal(value, &patch.Steps)
			}
		case "metadata":
			if string(value) != "null" {
				patch.Metadata = map[string]any{}
				err = json.Unmarshal(value, &patch.Metadata)
			}
		case "error":
			err = decodeOptional(value, &patch.Error)
		case "createdAt":
			var created time.Time
			if json.Unmarshal(value, &created) == nil && !created.IsZero() {
				patch.CreatedAt = &created
			}
		case "updatedAt":
		default:
			var v any
			if err = json.Unmarshal(value, &v); err == nil {
				if patch.Extra == nil {
					patch.Extra = map[string]any{}
				}
				patch.Extra[key] = v
			}
		}
		if err != nil {
			return Patch{}, services.Wrap(services.ErrValidation, "jobstore", "decode", fmt.Sprintf("field %q", key), err)
		}
	}
	patch.ID = strings.TrimSpace(patch.ID)
	return patch, nil
}

func decodeOptional[T any](value json.RawMessage, dst **T) error {
	if string(value) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

// MarshalJSON emits only the fields present in the patch.
func (p Patch) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+10)
	for key, value := range p.Extra {
		out[key] = value
	}
	out["id"] = p.ID
	if p.CreatedAt != nil {
		out["createdAt"] = p.CreatedAt.UTC()
	}
	if p.Title != nil {
		out["title"] = *p.Title
	}
	if p.Status != nil {
		out["status"] = *p.Status
	}
	if p.Progress != nil {
		out["progress"] = *p.Progress
	}
	if p.CurrentStep != nil {
		out["currentStep"] = *p.CurrentStep
	}
	if p.Steps != nil {
		out["steps"] = p.Steps
	}
	if p.Metadata != nil {
		out["metadata"] = p.Metadata
	}
	if p.Error != nil {
		out["error"] = *p.Error
	}
	return json.Marshal(out)
}

func (p Patch) validate() error {
	if p.ID == "" {
		return services.Wrap(services.ErrValidation, "jobstore", "upsert", "id is required", nil)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return services.Wrap(services.ErrValidation, "jobstore", "upsert", "title must not be empty", nil)
	}
	if p.Status != nil && !p.Status.Valid() {
		return services.Wrap(services.ErrValidation, "jobstore", "upsert", fmt.Sprintf("unknown status %q", *p.Status), nil)
	}
	if p.Progress != nil && (*p.Progress < 0 || *p.Progress > 100) {
		return services.Wrap(services.ErrValidation, "jobstore", "upsert", fmt.Sprintf("progress %d outside 0-100", *p.Progress), nil)
	}
	for _, step := range p.Steps {
		if strings.TrimSpace(step.Name) == "" {
			return services.Wrap(services.ErrValidation, "jobstore", "upsert", "step name is required", nil)
		}
		if !step.Status.Valid() {
			return services.Wrap(services.ErrValidation, "jobstore", "upsert", fmt.Sprintf("step %q has unknown status %q", step.Name, step.Status), nil)
		}
	}
	return nil
}

// applyTo overwrites every present field of job.
func (p Patch) applyTo(job *Job) {
	if p.ID != "" {
		job.ID = p.ID
	}
	if p.Title != nil {
		job.Title = *p.Title
	}
	if p.Status != nil {
		job.Status = *p.Status
	}
	if p.Progress != nil {
		job.Progress = *p.Progress
	}
	if p.CurrentStep != nil {
		job.CurrentStep = *p.CurrentStep
	}
	if p.Steps != nil {
		job.Steps = cloneSteps(p.Steps)
	}
	if p.Metadata != nil {
		job.Metadata = cloneMap(p.Metadata)
	}
	if p.Error != nil {
		job.Error = *p.Error
	}
	if len(p.Extra) > 0 {
		if job.Extra == nil {
			job.Extra = make(map[string]any, len(p.Extra))
		}
		for key, value := range p.Extra {
			job.Extra[key] = value
		}
	}
}
