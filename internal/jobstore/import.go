package jobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"scenecast/internal/logging"
	"scenecast/internal/services"
)

// ImportResult summarizes a legacy tracking file import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportJSON loads a legacy flat tracking file, an array of job objects
// ordered newest first, and upserts every entry. Entries are applied oldest
// first so the resulting list order matches the file. Invalid entries are
// skipped and reported.
func (s *Store) ImportJSON(ctx context.Context, path string) (ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, services.Wrap(services.ErrStoreIO, "jobstore", "import", path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ImportResult{}, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return ImportResult{}, services.Wrap(services.ErrValidation, "jobstore", "import", "tracking file must hold a JSON array", err)
	}

	var result ImportResult
	for i := len(entries) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		patch, err := DecodePatch(entries[i])
		if err == nil {
			_, err = s.Upsert(ctx, patch)
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: %s", i, services.Details(err)))
			continue
		}
		result.Imported++
	}

	s.logger.Info("legacy tracking file imported",
		logging.String(logging.FieldEventType, "jobstore_import"),
		logging.String("source", path),
		logging.Int("imported", result.Imported),
		logging.Int("skipped", result.Skipped),
	)
	return result, nil
}
