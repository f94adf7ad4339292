package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"scenecast/internal/jobstore"
	"scenecast/internal/providers"
	"scenecast/internal/services"
	"scenecast/internal/taskqueue"
)

// imageParallelism bounds concurrent calls to the remote image service per job.
const imageParallelism = 2

func (c *Controller) runScript(ctx context.Context, id string, req Request) (providers.Script, error) {
	ctx = services.WithStage(ctx, StepScript)
	b := progressBands[StepScript]
	if err := c.beginStage(ctx, id, StepScript, b.start, "Generating script"); err != nil {
		return providers.Script{}, err
	}

	script, err := c.providers.Script.Generate(ctx, providers.ScriptRequest{
		Topic:      req.Topic,
		Style:      req.Style,
		SceneCount: req.SceneCount,
		Language:   req.Language,
	})
	if err != nil {
		return providers.Script{}, generationError(StepScript, "generate", err)
	}
	if len(script.Scenes) == 0 {
		return providers.Script{}, services.Wrap(services.ErrGeneration, StepScript, "generate", "script has no scenes", nil)
	}

	err = c.completeStage(ctx, id, StepScript, b.end, map[string]any{
		"scriptTitle": script.Title,
		"sceneCount":  len(script.Scenes),
	})
	return script, err
}

func (c *Controller) runImages(ctx context.Context, id string, script providers.Script) ([]providers.SceneAssets, error) {
	ctx = services.WithStage(ctx, StepImages)
	b := progressBands[StepImages]
	total := len(script.Scenes)
	if err := c.beginStage(ctx, id, StepImages, b.start, fmt.Sprintf("Generating images (0/%d)", total)); err != nil {
		return nil, err
	}

	scenes := make([]providers.SceneAssets, total)
	var (
		progressMu sync.Mutex
		done       int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageParallelism)
	for i, scene := range script.Scenes {
		g.Go(func() error {
			prompt := scene.VisualDescription
			if prompt == "" {
				prompt = scene.Text
			}
			url, err := c.providers.Image.Generate(gctx, prompt, c.cfg.Providers.ImageWidth, c.cfg.Providers.ImageHeight)
			if err != nil {
				return generationError(StepImages, fmt.Sprintf("scene %d", i+1), err)
			}
			scenes[i] = providers.SceneAssets{Text: scene.Text, ImageURL: url}

			progressMu.Lock()
			defer progressMu.Unlock()
			done++
			return c.advance(gctx, id, b.at(done, total), fmt.Sprintf("Generating images (%d/%d)", done, total))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	imageURLs := make([]string, total)
	for i, scene := range scenes {
		imageURLs[i] = scene.ImageURL
	}
	return scenes, c.completeStage(ctx, id, StepImages, b.end, map[string]any{"images": imageURLs})
}

// runNarration synthesizes every scene through the speech queue, then aligns
// each clip through the transcription queue.
func (c *Controller) runNarration(ctx context.Context, id string, req Request, scenes []providers.SceneAssets) ([]providers.SceneAssets, error) {
	ctx = services.WithStage(ctx, StepNarration)
	b := progressBands[StepNarration]
	total := len(scenes)
	if err := c.beginStage(ctx, id, StepNarration, b.start, fmt.Sprintf("Narrating scenes (0/%d)", total)); err != nil {
		return nil, err
	}

	// Cancelling synthCtx withdraws clips still waiting in the speech queue.
	synthCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	handles := make([]*taskqueue.Handle, total)
	for i, scene := range scenes {
		text := scene.Text
		handle, err := c.speech.Submit(synthCtx, fmt.Sprintf("%s-speech-%d", id, i+1), func(runCtx context.Context) (any, error) {
			return c.providers.Speech.Synthesize(runCtx, text, req.Voice)
		})
		if err != nil {
			return nil, err
		}
		handles[i] = handle
	}

	out := make([]providers.SceneAssets, total)
	copy(out, scenes)
	for i, handle := range handles {
		result, err := handle.Wait(ctx)
		if err != nil {
			return nil, generationError(StepNarration, fmt.Sprintf("synthesize scene %d", i+1), err)
		}
		clip, ok := result.(providers.Speech)
		if !ok {
			return nil, services.Wrap(services.ErrGeneration, StepNarration, "synthesize", fmt.Sprintf("unexpected result %T", result), nil)
		}
		out[i].AudioURL = clip.AudioURL
		out[i].DurationSeconds = clip.DurationSeconds
		if err := c.advance(ctx, id, b.at(i+1, 2*total), fmt.Sprintf("Narrating scenes (%d/%d)", i+1, total)); err != nil {
			return nil, err
		}
	}

	for i := range out {
		audio := out[i].AudioURL
		transcript, err := taskqueue.Do(ctx, c.transcribe, fmt.Sprintf("%s-align-%d", id, i+1),
			func(runCtx context.Context) (providers.Transcript, error) {
				return c.providers.Transcriber.Transcribe(runCtx, audio, req.Language)
			})
		if err != nil {
			return nil, generationError(StepNarration, fmt.Sprintf("align scene %d", i+1), err)
		}
		out[i].Segments = transcript.Segments
		if err := c.advance(ctx, id, b.at(total+i+1, 2*total), fmt.Sprintf("Aligning narration (%d/%d)", i+1, total)); err != nil {
			return nil, err
		}
	}

	var duration float64
	for _, scene := range out {
		duration += scene.DurationSeconds
	}
	return out, c.completeStage(ctx, id, StepNarration, b.end, map[string]any{
		"scenes":        out,
		"narrationSecs": duration,
	})
}

func (c *Controller) runComposition(ctx context.Context, id string, scenes []providers.SceneAssets) (providers.Composition, error) {
	ctx = services.WithStage(ctx, StepComposition)
	b := progressBands[StepComposition]
	if err := c.beginStage(ctx, id, StepComposition, b.start, "Composing video"); err != nil {
		return providers.Composition{}, err
	}
	job, err := c.store.Get(ctx, id)
	if err != nil {
		return providers.Composition{}, err
	}

	composition, err := taskqueue.Do(ctx, c.compose, id+"-compose", func(runCtx context.Context) (providers.Composition, error) {
		return c.providers.Composer.Compose(runCtx, providers.ComposeRequest{JobID: id, Title: job.Title, Scenes: scenes})
	})
	if err != nil {
		return providers.Composition{}, generationError(StepComposition, "compose", err)
	}
	return composition, c.completeStage(ctx, id, StepComposition, b.end, nil)
}

// generationError tags collaborator failures as generation errors, leaving
// errors that already carry a classification untouched.
func generationError(stage, operation string, err error) error {
	for _, marker := range []error{
		services.ErrGeneration, services.ErrValidation, services.ErrNotFound, services.ErrQueueCleared,
		services.ErrStoreIO, services.ErrConfiguration, services.ErrConflict,
		context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, marker) {
			return err
		}
	}
	return services.Wrap(services.ErrGeneration, stage, operation, "", err)
}

func (c *Controller) beginStage(ctx context.Context, id, step string, progress int, label string) error {
	_, err := c.mutate(ctx, id, func(job *jobstore.Job) error {
		setStep(job, step, jobstore.StepActive, c.now())
		job.Status = jobstore.StatusProcessing
		job.CurrentStep = label
		job.Progress = max(job.Progress, progress)
		return nil
	})
	return err
}

func (c *Controller) advance(ctx context.Context, id string, progress int, label string) error {
	_, err := c.mutate(ctx, id, func(job *jobstore.Job) error {
		job.CurrentStep = label
		job.Progress = max(job.Progress, progress)
		return nil
	})
	return err
}

func (c *Controller) completeStage(ctx context.Context, id, step string, progress int, metadata map[string]any) error {
	_, err := c.mutate(ctx, id, func(job *jobstore.Job) error {
		setStep(job, step, jobstore.StepCompleted, c.now())
		job.Progress = max(job.Progress, progress)
		if len(metadata) > 0 && job.Metadata == nil {
			job.Metadata = make(map[string]any, len(metadata))
		}
		for key, value := range metadata {
			job.Metadata[key] = value
		}
		return nil
	})
	return err
}
