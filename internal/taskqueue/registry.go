package taskqueue

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"scenecast/internal/config"
	"scenecast/internal/services"
)

// Well-known queue names used by the pipeline.
const (
	Speech        = "speech"
	Transcription = "transcription"
	Composition   = "composition"
)

// Registry owns the named queues of one daemon process.
type Registry struct {
	queues map[string]*Queue
}

// NewRegistry builds one queue per entry in ceilings.
func NewRegistry(ceilings map[string]int, historySize int, logger *slog.Logger) *Registry {
	r := &Registry{queues: make(map[string]*Queue, len(ceilings))}
	for name, ceiling := range ceilings {
		r.queues[name] = New(Options{
			Name:        name,
			Ceiling:     ceiling,
			HistorySize: historySize,
			Logger:      logger,
		})
	}
	return r
}

// NewRegistryFromConfig builds the speech, transcription and composition
// queues with their configured ceilings.
func NewRegistryFromConfig(cfg *config.Config, logger *slog.Logger) *Registry {
	return NewRegistry(map[string]int{
		Speech:        cfg.Queues.SpeechConcurrency,
		Transcription: cfg.Queues.TranscriptionConcurrency,
		Composition:   cfg.Queues.CompositionConcurrency,
	}, cfg.Queues.HistorySize, logger)
}

// Get returns the named queue.
func (r *Registry) Get(name string) (*Queue, error) {
	if q, ok := r.queues[name]; ok {
		return q, nil
	}
	return nil, services.Wrap(services.ErrNotFound, "taskqueue", "lookup", "unknown queue "+name, nil)
}

// Names returns the queue names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.queues))
	for name := range r.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statuses returns a snapshot of every queue in name order.
func (r *Registry) Statuses() []Status {
	names := r.Names()
	out := make([]Status, 0, len(names))
	for _, name := range names {
		out = append(out, r.queues[name].Status())
	}
	return out
}

// RunStatusLogger runs each queue's status logger until ctx ends.
func (r *Registry) RunStatusLogger(ctx context.Context, interval time.Duration) {
	var wg sync.WaitGroup
	for _, q := range r.queues {
		wg.Add(1)
		go func(q *Queue) {
			defer wg.Done()
			q.RunStatusLogger(ctx, interval)
		}(q)
	}
	wg.Wait()
}

// Close closes every queue, waiting for running work until ctx ends.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		if err := r.queues[name].Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
