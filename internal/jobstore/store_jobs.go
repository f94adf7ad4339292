package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scenecast/internal/services"
)

// Upsert merges patch onto the stored job with the same id, or inserts a new
// job ahead of every existing one. Present fields overwrite, absent fields are
// preserved, and UpdatedAt always moves strictly forward. A new job needs a
// title; an invalid patch is rejected before anything is written. A past
// CreatedAt on the patch backdates an inserted job.
func (s *Store) Upsert(ctx context.Context, patch Patch) (*Job, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var saved *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getJob(ctx, tx, patch.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		now := s.timestamp()

		if existing == nil {
			if patch.Title == nil {
				return services.Wrap(services.ErrValidation, "jobstore", "upsert",
					fmt.Sprintf("title is required for new job %s", patch.ID), nil)
			}
			job := &Job{Status: StatusQueued, CreatedAt: now, UpdatedAt: now}
			if patch.CreatedAt != nil && !patch.CreatedAt.IsZero() && patch.CreatedAt.Before(now) {
				// Imported jobs keep their history so retention ages them from creation.
				job.CreatedAt = patch.CreatedAt.UTC()
				job.UpdatedAt = job.CreatedAt
			}
			patch.applyTo(job)
			if err := insertJob(ctx, tx, job); err != nil {
				return err
			}
			saved = job
			return nil
		}

		job := existing.Clone()
		patch.applyTo(job)
		if !now.After(existing.UpdatedAt) {
			now = existing.UpdatedAt.Add(time.Microsecond)
		}
		job.UpdatedAt = now
		if err := updateJob(ctx, tx, job); err != nil {
			return err
		}
		saved = job
		return nil
	})
	if err != nil {
		return nil, storeError("upsert", err)
	}
	return saved, nil
}

// Update runs mutate against the current record and persists the result in
// the same transaction. Mutations that return an error leave the record as is.
func (s *Store) Update(ctx context.Context, id string, mutate func(job *Job) error) (*Job, error) {
	if mutate == nil {
		return nil, services.Wrap(services.ErrValidation, "jobstore", "update", "mutation is required", nil)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var saved *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getJob(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(id)
		}
		if err != nil {
			return err
		}
		job := existing.Clone()
		if err := mutate(job); err != nil {
			return err
		}
		job.ID = existing.ID
		job.CreatedAt = existing.CreatedAt
		if err := patchFromJob(job).validate(); err != nil {
			return err
		}
		now := s.timestamp()
		if !now.After(existing.UpdatedAt) {
			now = existing.UpdatedAt.Add(time.Microsecond)
		}
		job.UpdatedAt = now
		if err := updateJob(ctx, tx, job); err != nil {
			return err
		}
		saved = job
		return nil
	})
	if err != nil {
		return nil, storeError("update", err)
	}
	return saved, nil
}

// Get fetches a job by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	job, err := getJob(ensureContext(ctx), s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storeError("get", err)
	}
	return job, nil
}

// List returns every job, most recently created first, with the total count.
func (s *Store) List(ctx context.Context) ([]*Job, int, error) {
	jobs, err := s.queryJobs(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs ORDER BY seq DESC`)
	if err != nil {
		return nil, 0, storeError("list", err)
	}
	return jobs, len(jobs), nil
}

// ListByStatus returns jobs whose status matches any of the provided values.
func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]*Job, error) {
	if len(statuses) == 0 {
		jobs, _, err := s.List(ctx)
		return jobs, err
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (` + makePlaceholders(len(statuses)) + `) ORDER BY seq DESC`
	jobs, err := s.queryJobs(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, storeError("list by status", err)
	}
	return jobs, nil
}

// Delete removes a job by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return storeError("delete", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeError("delete", err)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

// PurgeCompleted removes every completed job and returns how many were removed.
func (s *Store) PurgeCompleted(ctx context.Context) (int64, error) {
	return s.purge(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
}

// PurgeCompletedBefore removes completed jobs last updated before cutoff.
func (s *Store) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.purge(ctx, `DELETE FROM jobs WHERE status = ? AND updated_at < ?`,
		StatusCompleted, formatTime(cutoff))
}

func (s *Store) purge(ctx context.Context, query string, args ...any) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, storeError("purge", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("purge", err)
	}
	return removed, nil
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getJob(ctx context.Context, q queryer, id string) (*Job, error) {
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func insertJob(ctx context.Context, tx *sql.Tx, job *Job) error {
	cols, err := encodeJob(job)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (
            id, title, status, progress, current_step, steps_json,
            metadata_json, extra_json, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Title,
		job.Status,
		job.Progress,
		nullableString(job.CurrentStep),
		cols.steps,
		cols.metadata,
		cols.extra,
		nullableString(job.Error),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func updateJob(ctx context.Context, tx *sql.Tx, job *Job) error {
	cols, err := encodeJob(job)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE jobs
         SET title = ?, status = ?, progress = ?, current_step = ?, steps_json = ?,
             metadata_json = ?, extra_json = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		job.Title,
		job.Status,
		job.Progress,
		nullableString(job.CurrentStep),
		cols.steps,
		cols.metadata,
		cols.extra,
		nullableString(job.Error),
		formatTime(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// patchFromJob turns a full record back into a patch for validation.
func patchFromJob(job *Job) Patch {
	status := job.Status
	progress := job.Progress
	return Patch{
		ID:       job.ID,
		Title:    &job.Title,
		Status:   &status,
		Progress: &progress,
		Steps:    job.Steps,
	}
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "jobstore", "", fmt.Sprintf("job %s not found", id), nil)
}
