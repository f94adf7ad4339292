package jobstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobColumns = "id, title, status, progress, current_step, steps_json, metadata_json, extra_json, error_message, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		title        string
		statusStr    string
		progress     sql.NullInt64
		currentStep  sql.NullString
		stepsRaw     sql.NullString
		metadataRaw  sql.NullString
		extraRaw     sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&statusStr,
		&progress,
		&currentStep,
		&stepsRaw,
		&metadataRaw,
		&extraRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		Title:       title,
		Status:      Status(statusStr),
		Progress:    int(progress.Int64),
		CurrentStep: currentStep.String,
		Error:       errorMessage.String,
	}
	if err := decodeColumn(stepsRaw, &job.Steps); err != nil {
		return nil, fmt.Errorf("decode steps for %s: %w", id, err)
	}
	if job.Steps == nil {
		job.Steps = []Step{}
	}
	if err := decodeColumn(metadataRaw, &job.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	if err := decodeColumn(extraRaw, &job.Extra); err != nil {
		return nil, fmt.Errorf("decode extra fields for %s: %w", id, err)
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

type encodedColumns struct {
	steps    string
	metadata any
	extra    any
}

func encodeJob(job *Job) (encodedColumns, error) {
	steps := job.Steps
	if steps == nil {
		steps = []Step{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return encodedColumns{}, fmt.Errorf("marshal steps: %w", err)
	}
	cols := encodedColumns{steps: string(stepsJSON)}
	if len(job.Metadata) > 0 {
		data, err := json.Marshal(job.Metadata)
		if err != nil {
			return encodedColumns{}, fmt.Errorf("marshal metadata: %w", err)
		}
		cols.metadata = string(data)
	}
	if len(job.Extra) > 0 {
		data, err := json.Marshal(job.Extra)
		if err != nil {
			return encodedColumns{}, fmt.Errorf("marshal extra fields: %w", err)
		}
		cols.extra = string(data)
	}
	return cols, nil
}

func decodeColumn(raw sql.NullString, dst any) error {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), dst)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
