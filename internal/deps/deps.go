// Package deps probes the local engine binaries the narration queues shell out to.
package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement names one engine binary and whether the daemon can run without it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the probe result for a Requirement. Path holds the resolved
// executable when the probe succeeded.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// CheckBinaries probes each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = probe(req)
	}
	return results
}

// MissingRequired returns the names of unavailable, non-optional entries.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}

func probe(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	case err != nil:
		status.Detail = fmt.Sprintf("binary %q unusable: %v", status.Command, err)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}
