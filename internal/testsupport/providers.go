package testsupport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"scenecast/internal/providers"
)

// Fakes is an in-memory provider set. Each stage can be made to fail and
// speech synthesis can be held open to observe queue concurrency.
type Fakes struct {
	Scenes int

	ScriptErr     error
	ImageErr      error
	SpeechErr     error
	TranscribeErr error
	ComposeErr    error

	// SpeechGate, when set, blocks every synthesis until it is closed.
	SpeechGate chan struct{}

	mu    sync.Mutex
	calls map[string]int

	speechActive atomic.Int64
	speechPeak   atomic.Int64
}

// NewFakes returns fakes producing scenes scenes.
func NewFakes(scenes int) *Fakes {
	return &Fakes{Scenes: scenes, calls: make(map[string]int)}
}

// Set exposes the fakes as a provider set.
func (f *Fakes) Set() providers.Set {
	return providers.Set{
		Script:      fakeScript{f},
		Image:       fakeImages{f},
		Speech:      fakeSpeech{f},
		Transcriber: fakeTranscriber{f},
		Composer:    fakeComposer{f},
	}
}

// Calls reports how often the named fake ran.
func (f *Fakes) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// SpeechPeak reports the highest number of concurrent syntheses observed.
func (f *Fakes) SpeechPeak() int {
	return int(f.speechPeak.Load())
}

func (f *Fakes) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

type fakeScript struct{ f *Fakes }

func (s fakeScript) Generate(_ context.Context, req providers.ScriptRequest) (providers.Script, error) {
	s.f.record("script")
	if s.f.ScriptErr != nil {
		return providers.Script{}, s.f.ScriptErr
	}
	script := providers.Script{Title: req.Topic}
	for i := range s.f.Scenes {
		script.Scenes = append(script.Scenes, providers.Scene{
			Text:              fmt.Sprintf("scene %d about %s", i+1, req.Topic),
			VisualDescription: fmt.Sprintf("picture %d", i+1),
		})
	}
	return script, nil
}

type fakeImages struct{ f *Fakes }

func (s fakeImages) Generate(_ context.Context, prompt string, width, height int) (string, error) {
	s.f.record("image")
	if s.f.ImageErr != nil {
		return "", s.f.ImageErr
	}
	return fmt.Sprintf("/media/images/%s-%dx%d.png", prompt, width, height), nil
}

type fakeSpeech struct{ f *Fakes }

func (s fakeSpeech) Synthesize(ctx context.Context, text, voice string) (providers.Speech, error) {
	s.f.record("speech")
	active := s.f.speechActive.Add(1)
	defer s.f.speechActive.Add(-1)
	for {
		peak := s.f.speechPeak.Load()
		if active <= peak || s.f.speechPeak.CompareAndSwap(peak, active) {
			break
		}
	}
	if s.f.SpeechGate != nil {
		select {
		case <-s.f.SpeechGate:
		case <-ctx.Done():
			return providers.Speech{}, ctx.Err()
		}
	}
	if s.f.SpeechErr != nil {
		return providers.Speech{}, s.f.SpeechErr
	}
	return providers.Speech{AudioURL: fmt.Sprintf("/media/audio/%s-%d.wav", voice, len(text)), DurationSeconds: 2.5}, nil
}

type fakeTranscriber struct{ f *Fakes }

func (s fakeTranscriber) Transcribe(_ context.Context, audioURL, _ string) (providers.Transcript, error) {
	s.f.record("transcribe")
	if s.f.TranscribeErr != nil {
		return providers.Transcript{}, s.f.TranscribeErr
	}
	return providers.Transcript{Segments: []providers.Segment{{Text: audioURL, Start: 0, End: 2.5}}}, nil
}

type fakeComposer struct{ f *Fakes }

func (s fakeComposer) Compose(_ context.Context, req providers.ComposeRequest) (providers.Composition, error) {
	s.f.record("compose")
	if s.f.ComposeErr != nil {
		return providers.Composition{}, s.f.ComposeErr
	}
	var duration float64
	for _, scene := range req.Scenes {
		duration += scene.DurationSeconds
	}
	return providers.Composition{VideoURL: "/media/videos/" + req.JobID + ".mp4", DurationSeconds: duration}, nil
}
