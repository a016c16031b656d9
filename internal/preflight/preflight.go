package preflight

import (
	"context"

	"sermoncast/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckStorage(ctx, cfg),
	}

	if cfg.Ingest.Enabled {
		results = append(results, CheckDirectoryAccess("Watch directory", cfg.Ingest.WatchDir))
	}

	if cfg.Telemetry.Sink == config.SinkKafka {
		results = append(results, CheckKafka(ctx, cfg.Telemetry.KafkaBrokers))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
