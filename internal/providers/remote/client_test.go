package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scenecast/internal/providers"
	"scenecast/internal/services"
)

func TestScriptGeneratorPostsTopic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req providers.ScriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Topic != "tides" || req.SceneCount != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"Tides","scenes":[{"text":"one","visualDescription":"sea"},{"text":"two","visualDescription":"moon"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{ScriptURL: server.URL, APIKey: "key-123"})
	script, err := client.Scripts().Generate(context.Background(), providers.ScriptRequest{Topic: "tides", SceneCount: 2})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if script.Title != "Tides" || len(script.Scenes) != 2 || script.Scenes[1].VisualDescription != "moon" {
		t.Fatalf("unexpected script %+v", script)
	}
}

func TestHTTPFailureBecomesGenerationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{ImageURL: server.URL})
	_, err := client.Images().Generate(context.Background(), "a lighthouse", 1080, 1920)
	if !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected http status cause, got %v", err)
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestMissingEndpointIsConfigurationError(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Composer().Compose(context.Background(), providers.ComposeRequest{JobID: "job-1"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestComposerRequiresVideoURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req providers.ComposeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.JobID == "empty" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_, _ = w.Write([]byte(`{"videoUrl":"/videos/job-1.mp4","duration":31.5}`))
	}))
	defer server.Close()

	composer := NewClient(Config{ComposeURL: server.URL}).Composer()
	out, err := composer.Compose(context.Background(), providers.ComposeRequest{JobID: "job-1"})
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	if out.VideoURL != "/videos/job-1.mp4" || out.DurationSeconds != 31.5 {
		t.Fatalf("unexpected composition %+v", out)
	}
	if _, err := composer.Compose(context.Background(), providers.ComposeRequest{JobID: "empty"}); !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected generation error for empty response, got %v", err)
	}
}
