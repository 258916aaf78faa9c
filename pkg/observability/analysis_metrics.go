package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsTotal     = "codegraph.pipeline.commits.total"
	metricChunksTotal      = "codegraph.pipeline.files.total"
	metricChunkDuration    = "codegraph.pipeline.file.duration.seconds"
	metricCacheHitsTotal   = "codegraph.pipeline.cache.hits.total"
	metricCacheMissesTotal = "codegraph.pipeline.cache.misses.total"

	attrCache = "cache"
)

// PipelineMetrics holds OTel instruments for the ingest/enrich phases of a
// pipeline run: commits walked during git enrichment, files parsed during
// graph build, and blame/graph cache hit rates.
type PipelineMetrics struct {
	commitsTotal  metric.Int64Counter
	chunksTotal   metric.Int64Counter
	chunkDuration metric.Float64Histogram
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
}

// PipelineStats holds the statistics for a single pipeline run's ingest and
// git-enrichment phases, decoupled from the pipeline package's own types.
type PipelineStats struct {
	CommitsEnriched  int64
	FilesParsed      int
	ParseDurations   []time.Duration
	BlameCacheHits   int64
	BlameCacheMisses int64
	GraphCacheHits   int64
	GraphCacheMisses int64
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	commits, err := mt.Int64Counter(metricCommitsTotal,
		metric.WithDescription("Total commits walked during git enrichment"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsTotal, err)
	}

	chunks, err := mt.Int64Counter(metricChunksTotal,
		metric.WithDescription("Total files parsed during graph build"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChunksTotal, err)
	}

	chunkDur, err := mt.Float64Histogram(metricChunkDuration,
		metric.WithDescription("Per-file parse duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChunkDuration, err)
	}

	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Cache hits by type"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Cache misses by type"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &PipelineMetrics{
		commitsTotal:  commits,
		chunksTotal:   chunks,
		chunkDuration: chunkDur,
		cacheHits:     hits,
		cacheMisses:   misses,
	}, nil
}

// RecordRun records pipeline statistics for a completed ingest/enrich phase.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordRun(ctx context.Context, stats PipelineStats) {
	if pm == nil {
		return
	}

	pm.commitsTotal.Add(ctx, stats.CommitsEnriched)
	pm.chunksTotal.Add(ctx, int64(stats.FilesParsed))

	for _, d := range stats.ParseDurations {
		pm.chunkDuration.Record(ctx, d.Seconds())
	}

	blameAttrs := metric.WithAttributes(attribute.String(attrCache, "blame"))
	pm.cacheHits.Add(ctx, stats.BlameCacheHits, blameAttrs)
	pm.cacheMisses.Add(ctx, stats.BlameCacheMisses, blameAttrs)

	graphAttrs := metric.WithAttributes(attribute.String(attrCache, "graph"))
	pm.cacheHits.Add(ctx, stats.GraphCacheHits, graphAttrs)
	pm.cacheMisses.Add(ctx, stats.GraphCacheMisses, graphAttrs)
}
