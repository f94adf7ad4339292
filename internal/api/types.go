package api

import (
	"encoding/json"
	"time"

	"scenecast/internal/jobstore"
	"scenecast/internal/preflight"
	"scenecast/internal/taskqueue"
)

// Envelope wraps every API response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    time.Time          `json:"startedAt"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Jobs         map[string]int     `json:"jobs"`
	Queues       []taskqueue.Status `json:"queues"`
	Database     jobstore.Health    `json:"database"`
	Preflight    []preflight.Result `json:"preflight"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobList is the payload of GET /api/jobs.
type JobList struct {
	Jobs  []*jobstore.Job `json:"jobs"`
	Total int             `json:"total"`
}

// CeilingRequest is the body of PUT /api/queues/{name}/ceiling.
type CeilingRequest struct {
	Ceiling int `json:"maxConcurrent"`
}

// CountResponse reports how many records an operation touched.
type CountResponse struct {
	Count int64 `json:"count"`
}

// NotificationResponse reports the outcome of a test notification.
type NotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
