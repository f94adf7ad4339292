package api

import (
	"sort"

	"scenecast/internal/deps"
	"scenecast/internal/jobstore"
)

// FromDependencies converts dependency checks into their transport form.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Path:        dep.Path,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromJobStats flattens per-status counts, always listing every status.
func FromJobStats(stats map[jobstore.Status]int) map[string]int {
	out := map[string]int{
		string(jobstore.StatusQueued):     0,
		string(jobstore.StatusProcessing): 0,
		string(jobstore.StatusCompleted):  0,
		string(jobstore.StatusError):      0,
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StatusNames returns the keys of counts in a stable display order.
func StatusNames(counts map[string]int) []string {
	order := map[string]int{
		string(jobstore.StatusQueued):     0,
		string(jobstore.StatusProcessing): 1,
		string(jobstore.StatusCompleted):  2,
		string(jobstore.StatusError):      3,
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
	return names
}
