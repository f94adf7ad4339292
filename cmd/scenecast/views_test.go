package main

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"scenecast/internal/api"
	"scenecast/internal/jobstore"
	"scenecast/internal/preflight"
	"scenecast/internal/taskqueue"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"  short ", 10, "short"},
		{"abcdefghijklmnop", 10, "abcdefg..."},
		{"abcdef", 2, "ab"},
		{"日本語のタイトルです", 6, "日本語..."},
	}
	for _, test := range tests {
		if got := truncate(test.in, test.limit); got != test.want {
			t.Fatalf("truncate(%q, %d): expected %q, got %q", test.in, test.limit, test.want, got)
		}
	}
}

func TestBuildJobRows(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := buildJobRows([]*jobstore.Job{
		nil,
		{ID: "a", Title: "Alpha", Status: jobstore.StatusProcessing, Progress: 35, CurrentStep: "Generating images (2/5)", UpdatedAt: updated},
	})
	if len(rows) != 1 {
		t.Fatalf("expected nil jobs skipped, got %d rows", len(rows))
	}
	want := []string{"a", "Alpha", "processing", "35%", "Generating images (2/5)", formatTimestamp(updated)}
	if !reflect.DeepEqual(rows[0], want) {
		t.Fatalf("expected row %v, got %v", want, rows[0])
	}
}

func TestBuildHistoryRowsReportsNeverStarted(t *testing.T) {
	enqueued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	started := enqueued.Add(2 * time.Second)
	rows := buildHistoryRows([]taskqueue.HistoryEntry{
		{TaskID: "ran", Outcome: taskqueue.OutcomeCompleted, EnqueuedAt: enqueued, StartedAt: &started, SettledAt: started.Add(1500 * time.Millisecond)},
		{TaskID: "dropped", Outcome: taskqueue.OutcomeCancelled, EnqueuedAt: enqueued, SettledAt: enqueued.Add(time.Second), Error: "queue cleared"},
	})
	checks := []struct {
		row, col int
		want     string
	}{
		{0, 2, "2s"},
		{0, 3, "1.5s"},
		{1, 3, "-"},
		{1, 5, "queue cleared"},
	}
	for _, c := range checks {
		if got := rows[c.row][c.col]; got != c.want {
			t.Fatalf("row %d col %d: expected %q, got %q", c.row, c.col, c.want, got)
		}
	}
}

func TestRenderDaemonStatus(t *testing.T) {
	var buf bytes.Buffer
	renderDaemonStatus(&buf, api.DaemonStatus{
		Running:   true,
		PID:       42,
		Jobs:      map[string]int{"queued": 1, "processing": 0, "completed": 3, "error": 0},
		Queues:    []taskqueue.Status{{Name: "speech", Active: 1, Pending: 2, Ceiling: 2}},
		Preflight: []preflight.Result{{Name: "Data directory", Passed: true, Detail: "/tmp/data"}, {Name: "Script service", Passed: false, Detail: "not configured"}},
		Dependencies: []api.DependencyStatus{
			{Name: "Speech engine", Command: "piper", Available: true},
			{Name: "Transcription engine", Command: "whisper", Available: false, Detail: "not found in PATH"},
		},
	}, false)

	out := buf.String()
	expectContains(t, out, "pid 42", "[ERROR] not configured", "[ERROR] not found in PATH", "[OK] piper", "completed", "speech")
	expectNotContains(t, out, "\x1b[")
}

func TestParseStatuses(t *testing.T) {
	statuses, err := parseStatuses([]string{" Queued", "", "error"})
	if err != nil {
		t.Fatalf("parseStatuses: %v", err)
	}
	if want := []jobstore.Status{jobstore.StatusQueued, jobstore.StatusError}; !reflect.DeepEqual(statuses, want) {
		t.Fatalf("expected %v, got %v", want, statuses)
	}

	if _, err := parseStatuses([]string{"paused"}); err == nil {
		t.Fatal("expected unknown status rejected")
	}
}
