package pipeline

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"scenecast/internal/config"
	"scenecast/internal/jobstore"
	"scenecast/internal/logging"
	"scenecast/internal/notifications"
	"scenecast/internal/providers"
	"scenecast/internal/services"
	"scenecast/internal/taskqueue"
)

// ErrClosed is returned by Submit once the controller has been closed.
var ErrClosed = fmt.Errorf("%w: pipeline controller closed", services.ErrConflict)

// Request describes one generation job.
type Request struct {
	ID         string         `json:"id,omitempty"`
	Title      string         `json:"title,omitempty"`
	Topic      string         `json:"topic"`
	Style      string         `json:"style,omitempty"`
	SceneCount int            `json:"sceneCount,omitempty"`
	Voice      string         `json:"voice,omitempty"`
	Language   string         `json:"language,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Controller drives jobs through the pipeline and is the sole job writer.
type Controller struct {
	cfg       *config.Config
	store     *jobstore.Store
	providers providers.Set
	notifier  notifications.Service
	logger    *slog.Logger

	speech     *taskqueue.Queue
	transcribe *taskqueue.Queue
	compose    *taskqueue.Queue

	locks keyedMutex
	slots chan struct{}
	now   func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a controller. The registry must provide the speech,
// transcription and composition queues, and every provider must be set.
func New(cfg *config.Config, store *jobstore.Store, queues *taskqueue.Registry, set providers.Set, notifier notifications.Service, logger *slog.Logger) (*Controller, error) {
	if cfg == nil || store == nil || queues == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "config, store and queues are required", nil)
	}
	if missing := set.Missing(); len(missing) > 0 {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init",
			"missing providers: "+strings.Join(missing, ", "), nil)
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}

	c := &Controller{
		cfg:       cfg,
		store:     store,
		providers: set,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		now:       time.Now,
	}
	var err error
	if c.speech, err = queues.Get(taskqueue.Speech); err != nil {
		return nil, err
	}
	if c.transcribe, err = queues.Get(taskqueue.Transcription); err != nil {
		return nil, err
	}
	if c.compose, err = queues.Get(taskqueue.Composition); err != nil {
		return nil, err
	}

	parallel := cfg.Workflow.MaxParallelJobs
	if parallel < 1 {
		parallel = 1
	}
	c.slots = make(chan struct{}, parallel)
	c.baseCtx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// NewJobID returns a lexically sortable job identifier.
func NewJobID() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
}

func (c *Controller) normalize(req Request) (Request, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.Title = strings.TrimSpace(req.Title)
	req.Topic = strings.TrimSpace(req.Topic)
	req.Style = strings.TrimSpace(req.Style)
	req.Voice = strings.TrimSpace(req.Voice)
	req.Language = strings.ToLower(strings.TrimSpace(req.Language))
	if req.Topic == "" {
		return req, services.Wrap(services.ErrValidation, "pipeline", "create", "topic is required", nil)
	}
	if req.SceneCount < 0 {
		return req, services.Wrap(services.ErrValidation, "pipeline", "create", "sceneCount must not be negative", nil)
	}
	if req.ID == "" {
		req.ID = NewJobID()
	}
	if req.Title == "" {
		req.Title = req.Topic
	}
	if req.Voice == "" {
		req.Voice = c.cfg.Providers.Voice
	}
	if req.Language == "" {
		req.Language = c.cfg.Providers.Language
	}
	return req, nil
}

// Create records a new queued job for req without running it. An existing
// id is a conflict.
func (c *Controller) Create(ctx context.Context, req Request) (*jobstore.Job, Request, error) {
	req, err := c.normalize(req)
	if err != nil {
		return nil, req, err
	}

	unlock := c.locks.Lock(req.ID)
	defer unlock()

	if _, err := c.store.Get(ctx, req.ID); err == nil {
		return nil, req, services.Wrap(services.ErrConflict, "pipeline", "create", fmt.Sprintf("job %s already exists", req.ID), nil)
	} else if !errors.Is(err, services.ErrNotFound) {
		return nil, req, err
	}

	metadata := make(map[string]any, len(req.Metadata)+1)
	for key, value := range req.Metadata {
		metadata[key] = value
	}
	metadata["request"] = map[string]any{
		"topic":      req.Topic,
		"style":      req.Style,
		"sceneCount": req.SceneCount,
		"voice":      req.Voice,
		"language":   req.Language,
	}

	status := jobstore.StatusQueued
	job, err := c.store.Upsert(ctx, jobstore.Patch{
		ID:          req.ID,
		Title:       &req.Title,
		Status:      &status,
		Progress:    jobstore.Int(0),
		CurrentStep: jobstore.String(StepLabel(StepQueued)),
		Steps:       DefaultSteps(c.now()),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, req, err
	}
	c.jobLogger(ctx, job.ID).Info("job created",
		logging.String(logging.FieldEventType, "job_created"),
		logging.String("title", job.Title),
	)
	return job, req, nil
}

// Submit creates the job and drives it in the background. At most
// workflow.max_parallel_jobs jobs run at once; the rest wait for a slot in
// the queued state.
func (c *Controller) Submit(ctx context.Context, req Request) (*jobstore.Job, error) {
	if c.baseCtx.Err() != nil {
		return nil, ErrClosed
	}
	job, req, err := c.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		runCtx := c.baseCtx
		select {
		case c.slots <- struct{}{}:
		case <-runCtx.Done():
			c.fail(runCtx, req.ID, StepQueued, runCtx.Err())
			return
		}
		defer func() { <-c.slots }()
		_, _ = c.Run(runCtx, req.ID, req)
	}()
	return job, nil
}

// Run drives an existing job through every stage and returns the final
// record. A stage error is returned after the job has been marked failed.
func (c *Controller) Run(ctx context.Context, id string, req Request) (*jobstore.Job, error) {
	ctx = services.WithJobID(ctx, id)
	logger := c.jobLogger(ctx, id)
	logger.Info("job started", logging.String(logging.FieldEventType, "job_started"))
	started := c.now()

	script, err := c.runScript(ctx, id, req)
	if err != nil {
		return c.fail(ctx, id, StepScript, err)
	}
	scenes, err := c.runImages(ctx, id, script)
	if err != nil {
		return c.fail(ctx, id, StepImages, err)
	}
	scenes, err = c.runNarration(ctx, id, req, scenes)
	if err != nil {
		return c.fail(ctx, id, StepNarration, err)
	}
	composition, err := c.runComposition(ctx, id, scenes)
	if err != nil {
		return c.fail(ctx, id, StepComposition, err)
	}

	job, err := c.finish(ctx, id, composition)
	if err != nil {
		return job, err
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.String("video_url", composition.VideoURL),
		logging.Duration("elapsed", c.now().Sub(started)),
	)
	return job, nil
}

// WaitIdle blocks until every submitted job has finished or ctx ends.
func (c *Controller) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels running jobs and waits for them to record their outcome.
func (c *Controller) Close(ctx context.Context) error {
	c.cancel()
	return c.WaitIdle(ctx)
}

// mutate runs fn against the stored job under the job's lock.
func (c *Controller) mutate(ctx context.Context, id string, fn func(job *jobstore.Job) error) (*jobstore.Job, error) {
	unlock := c.locks.Lock(id)
	defer unlock()
	return c.store.Update(ctx, id, fn)
}

func (c *Controller) jobLogger(ctx context.Context, id string) *slog.Logger {
	if _, ok := services.JobIDFromContext(ctx); !ok {
		ctx = services.WithJobID(ctx, id)
	}
	return logging.WithContext(ctx, c.logger)
}
