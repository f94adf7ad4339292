package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"scenecast/internal/jobstore"
	"scenecast/internal/pipeline"
	"scenecast/internal/taskqueue"
)

const timeDisplayLayout = "2006-01-02 15:04:05"

var (
	jobHeaders = []string{"ID", "Title", "Status", "Progress", "Step", "Updated"}
	jobAligns  = []text.Align{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}

	queueStatusHeaders = []string{"Queue", "Active", "Queued", "Ceiling", "Processed", "Failed"}
	queueStatusAligns  = []text.Align{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
)

func buildJobRows(jobs []*jobstore.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		rows = append(rows, []string{
			job.ID,
			truncate(job.Title, 40),
			string(job.Status),
			fmt.Sprintf("%d%%", job.Progress),
			truncate(job.CurrentStep, 32),
			formatTimestamp(job.UpdatedAt),
		})
	}
	return rows
}

func buildStepRows(steps []jobstore.Step) [][]string {
	rows := make([][]string, 0, len(steps))
	for _, step := range steps {
		when := ""
		if step.Timestamp != nil {
			when = formatTimestamp(*step.Timestamp)
		}
		rows = append(rows, []string{pipeline.StepLabel(step.Name), string(step.Status), when})
	}
	return rows
}

func buildMetadataRows(metadata map[string]any) [][]string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, truncate(fmt.Sprint(metadata[key]), 60)})
	}
	return rows
}

func buildQueueStatusRows(statuses []taskqueue.Status) [][]string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{
			s.Name,
			strconv.Itoa(s.Active),
			strconv.Itoa(s.Pending),
			strconv.Itoa(s.Ceiling),
			strconv.Itoa(s.Completed),
			strconv.Itoa(s.Failed),
		})
	}
	return rows
}

func buildHistoryRows(history []taskqueue.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(history))
	for _, entry := range history {
		rows = append(rows, []string{
			entry.TaskID,
			string(entry.Outcome),
			formatDuration(entry.Wait()),
			formatDuration(entry.Run()),
			formatTimestamp(entry.SettledAt),
			truncate(entry.Error, 40),
		})
	}
	return rows
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeDisplayLayout)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
