package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scenecast/internal/config"
	"scenecast/internal/jobstore"
	"scenecast/internal/pipeline"
	"scenecast/internal/services"
	"scenecast/internal/taskqueue"
)

const defaultClientTimeout = 30 * time.Second

// ErrUnavailable is returned when the daemon cannot be reached.
var ErrUnavailable = errors.New("daemon unavailable")

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the admin API of a running daemon.
type Client struct {
	baseURL string
	token   string
	http    HTTPDoer
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient builds a client for baseURL. A bare host:port gets an http scheme.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig targets the configured API bind address.
func NewClientFromConfig(cfg *config.Config, opts ...ClientOption) *Client {
	return NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken, opts...)
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, statuses ...jobstore.Status) (JobList, error) {
	query := url.Values{}
	for _, status := range statuses {
		query.Add("status", string(status))
	}
	path := "/api/jobs"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out JobList
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// GetJob fetches one job.
func (c *Client) GetJob(ctx context.Context, id string) (*jobstore.Job, error) {
	var out jobstore.Job
	if err := c.do(ctx, http.MethodGet, jobPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJob submits a generation request.
func (c *Client) CreateJob(ctx context.Context, req pipeline.Request) (*jobstore.Job, error) {
	var out jobstore.Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateJob merges patch onto an existing job.
func (c *Client) UpdateJob(ctx context.Context, patch jobstore.Patch) (*jobstore.Job, error) {
	var out jobstore.Job
	if err := c.do(ctx, http.MethodPut, jobPath(patch.ID), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TrackJob upserts a raw job record.
func (c *Client) TrackJob(ctx context.Context, patch jobstore.Patch) (*jobstore.Job, error) {
	var out jobstore.Job
	if err := c.do(ctx, http.MethodPost, "/api/tracking", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteJob removes a job.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, jobPath(id), nil, nil)
}

// ForceJob applies an administrative override.
func (c *Client) ForceJob(ctx context.Context, id string, override pipeline.Override) (*jobstore.Job, error) {
	var out jobstore.Job
	if err := c.do(ctx, http.MethodPost, jobPath(id)+"/force", override, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PurgeCompleted removes every completed job.
func (c *Client) PurgeCompleted(ctx context.Context) (int64, error) {
	var out CountResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/purge-completed", nil, &out)
	return out.Count, err
}

// Queues returns a snapshot of every queue.
func (c *Client) Queues(ctx context.Context) ([]taskqueue.Status, error) {
	var out []taskqueue.Status
	err := c.do(ctx, http.MethodGet, "/api/queues", nil, &out)
	return out, err
}

// Queue returns one queue's snapshot.
func (c *Client) Queue(ctx context.Context, name string) (taskqueue.Status, error) {
	var out taskqueue.Status
	err := c.do(ctx, http.MethodGet, queuePath(name), nil, &out)
	return out, err
}

// SetCeiling changes a queue's concurrency ceiling.
func (c *Client) SetCeiling(ctx context.Context, name string, ceiling int) (taskqueue.Status, error) {
	var out taskqueue.Status
	err := c.do(ctx, http.MethodPut, queuePath(name)+"/ceiling", CeilingRequest{Ceiling: ceiling}, &out)
	return out, err
}

// CancelPending clears a queue's pending tasks and reports how many were cancelled.
func (c *Client) CancelPending(ctx context.Context, name string) (int64, error) {
	var out CountResponse
	err := c.do(ctx, http.MethodPost, queuePath(name)+"/cancel-pending", nil, &out)
	return out.Count, err
}

// CancelTask withdraws one pending task.
func (c *Client) CancelTask(ctx context.Context, name, taskID string) error {
	return c.do(ctx, http.MethodDelete, queuePath(name)+"/tasks/"+url.PathEscape(taskID), nil, nil)
}

// ResetStats zeroes a queue's cumulative counters.
func (c *Client) ResetStats(ctx context.Context, name string) (taskqueue.Status, error) {
	var out taskqueue.Status
	err := c.do(ctx, http.MethodPost, queuePath(name)+"/reset-stats", nil, &out)
	return out, err
}

// History returns a queue's settled tasks, newest first.
func (c *Client) History(ctx context.Context, name string) ([]taskqueue.HistoryEntry, error) {
	var out []taskqueue.HistoryEntry
	err := c.do(ctx, http.MethodGet, queuePath(name)+"/history", nil, &out)
	return out, err
}

// Events returns queue events with a sequence above since.
func (c *Client) Events(ctx context.Context, name string, since uint64) ([]taskqueue.Event, error) {
	var out []taskqueue.Event
	path := queuePath(name) + "/events?since=" + strconv.FormatUint(since, 10)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (NotificationResponse, error) {
	var out NotificationResponse
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, &out)
	return out, err
}

func jobPath(id string) string {
	return "/api/jobs/" + url.PathEscape(id)
}

func queuePath(name string) string {
	return "/api/queues/" + url.PathEscape(name)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c.baseURL == "" {
		return services.Wrap(services.ErrConfiguration, "api", "client", "api bind address is not configured", nil)
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %w", ErrUnavailable, c.baseURL, err)
	}
	defer resp.Body.Close()

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s %s response (http %d): %w", method, path, resp.StatusCode, err)
	}
	if !envelope.Success || resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp.StatusCode, envelope.Error)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

// statusError maps an API failure back onto the services markers.
func statusError(code int, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(code)
	}
	var marker error
	switch code {
	case http.StatusBadRequest:
		marker = services.ErrValidation
	case http.StatusNotFound:
		marker = services.ErrNotFound
	case http.StatusConflict:
		marker = services.ErrConflict
	case http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: %s", message)
	default:
		return fmt.Errorf("http %d: %s", code, message)
	}
	return fmt.Errorf("%w: %s", marker, message)
}
