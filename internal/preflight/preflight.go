package preflight

import (
	"context"

	"scenecast/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every applicable preflight check for the given config.
// Remote endpoints are only probed when configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir),
	}
	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	endpoints := []struct {
		name string
		url  string
	}{
		{"Script service", cfg.Providers.ScriptURL},
		{"Image service", cfg.Providers.ImageURL},
		{"Composition service", cfg.Providers.ComposeURL},
	}
	for _, endpoint := range endpoints {
		if endpoint.url == "" {
			results = append(results, Result{Name: endpoint.name, Detail: "not configured"})
			continue
		}
		results = append(results, CheckEndpoint(ctx, endpoint.name, endpoint.url, cfg.Providers.APIKey))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
