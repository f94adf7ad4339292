package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"scenecast/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	testsupport.WriteGarbage(t, f, 1)
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckEndpoint_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), "Script service", srv.URL, "good-key")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckEndpoint_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), "Script service", srv.URL, "bad-key")
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
}

func TestCheckEndpoint_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if result := CheckEndpoint(context.Background(), "Image service", srv.URL, ""); result.Passed {
		t.Fatal("expected failure for 502")
	}
}

func TestCheckEndpoint_MissingURL(t *testing.T) {
	if result := CheckEndpoint(context.Background(), "Image service", " ", "key"); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_ReportsDirectoriesAndEngines(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Providers.ScriptURL = ""
	cfg.Providers.ImageURL = ""
	cfg.Providers.ComposeURL = ""

	results := RunAll(context.Background(), cfg)
	byName := make(map[string]Result, len(results))
	for _, result := range results {
		byName[result.Name] = result
	}
	for _, name := range []string{"Data directory", "Log directory", "Media directory", "Speech engine", "Transcription engine"} {
		result, ok := byName[name]
		if !ok {
			t.Fatalf("missing check %q in %v", name, results)
		}
		if !result.Passed {
			t.Fatalf("expected %q to pass, got %q", name, result.Detail)
		}
	}
	failed := Failed(results)
	if len(failed) != 3 {
		t.Fatalf("expected the three unconfigured services to fail, got %v", failed)
	}
	if byName["Script service"].Detail != "not configured" {
		t.Fatalf("unexpected script service detail %q", byName["Script service"].Detail)
	}
}

func TestRunAll_MissingEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Speech.Command = filepath.Join(t.TempDir(), "no-such-engine")
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	for _, result := range RunAll(context.Background(), cfg) {
		if result.Name == "Speech engine" {
			if result.Passed {
				t.Fatal("expected missing speech engine to fail")
			}
			return
		}
	}
	t.Fatal("speech engine check missing")
}
