package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	LLMCalls               atomic.Int64
	LLMErrors              atomic.Int64
	YouTubeSearchRequests  atomic.Int64
	YouTubeSearchErrors    atomic.Int64
	YouTubeContextRequests atomic.Int64
	PipelineRuns           atomic.Int64
	PipelineFailures       atomic.Int64
	CurationFallbacks      atomic.Int64
	CacheHits              atomic.Int64
	CacheMisses            atomic.Int64
}

var metricKeys = []string{
	"llm_calls", "llm_errors",
	"youtube_search_requests", "youtube_search_errors", "youtube_context_requests",
	"pipeline_runs", "pipeline_failures", "curation_fallbacks",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"llm_calls":                metrics.LLMCalls.Load(),
		"llm_errors":               metrics.LLMErrors.Load(),
		"youtube_search_requests":  metrics.YouTubeSearchRequests.Load(),
		"youtube_search_errors":    metrics.YouTubeSearchErrors.Load(),
		"youtube_context_requests": metrics.YouTubeContextRequests.Load(),
		"pipeline_runs":            metrics.PipelineRuns.Load(),
		"pipeline_failures":        metrics.PipelineFailures.Load(),
		"curation_fallbacks":       metrics.CurationFallbacks.Load(),
		"cache_hits":               metrics.CacheHits.Load(),
		"cache_misses":             metrics.CacheMisses.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sub-packages.
func IncrYouTubeSearch() { metrics.YouTubeSearchRequests.Add(1) }
func IncrYouTubeSearchError() { metrics.YouTubeSearchErrors.Add(1) }
func IncrYouTubeContext() { metrics.YouTubeContextRequests.Add(1) }
func IncrPipelineRun() { metrics.PipelineRuns.Add(1) }
func IncrPipelineFailure() { metrics.PipelineFailures.Add(1) }
func IncrCurationFallback() { metrics.CurationFallbacks.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
