package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"document-extraction-platform/internal/logger"
	"document-extraction-platform/internal/telemetry"
	"document-extraction-platform/models"
)

// ParallelConverterConfig sizes the conversion worker pool.
type ParallelConverterConfig struct {
	MaxWorkers     int
	TimeoutPerFile time.Duration
}

// IndexedResult pairs a conversion result with the input position of its
// source file, so callers can restore submission order after fan-in.
type IndexedResult struct {
	Index  int
	Result models.ConversionResult
}

// ParallelConverter fans file conversion out over a fixed worker pool.
type ParallelConverter struct {
	set     *ConverterSet
	cfg     ParallelConverterConfig
	metrics *telemetry.Metrics
}

func NewParallelConverter(set *ConverterSet, cfg ParallelConverterConfig, metrics *telemetry.Metrics) *ParallelConverter {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.TimeoutPerFile <= 0 {
		cfg.TimeoutPerFile = 5 * time.Minute
	}
	return &ParallelConverter{set: set, cfg: cfg, metrics: metrics}
}

// ConvertStream converts entries concurrently and emits results in
// completion order. The returned channel closes after all entries finish.
func (pc *ParallelConverter) ConvertStream(ctx context.Context, entries []models.FileEntry) <-chan IndexedResult {
	out := make(chan IndexedResult)
	jobs := make(chan int, len(entries))
	for i := range entries {
		jobs <- i
	}
	close(jobs)

	workers := pc.cfg.MaxWorkers
	if workers > len(entries) {
		workers = len(entries)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result := pc.convertOne(ctx, entries[i])
				select {
				case out <- IndexedResult{Index: i, Result: result}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// ConvertAll converts entries concurrently and returns results in input
// order.
func (pc *ParallelConverter) ConvertAll(ctx context.Context, entries []models.FileEntry) []models.ConversionResult {
	indexed := make([]IndexedResult, 0, len(entries))
	for r := range pc.ConvertStream(ctx, entries) {
		indexed = append(indexed, r)
	}
	sort.Slice(indexed, func(i, j int) bool { return indexed[i].Index < indexed[j].Index })

	results := make([]models.ConversionResult, 0, len(indexed))
	for _, r := range indexed {
		results = append(results, r.Result)
	}
	return results
}

// convertOne enforces the per-file timeout and keeps adapter panics from
// taking down the pool. The adapter runs in its own goroutine so a deadline
// fires even when the adapter never checks the context; a late result from
// such an adapter is discarded.
func (pc *ParallelConverter) convertOne(ctx context.Context, entry models.FileEntry) models.ConversionResult {
	fileCtx, cancel := context.WithTimeout(ctx, pc.cfg.TimeoutPerFile)
	defer cancel()

	done := make(chan models.ConversionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("converter panic", "file", entry.DisplayName, "panic", r)
				done <- models.FailedConversion(entry, models.ErrKindInternal,
					fmt.Errorf("conversion panicked: %v", r))
			}
		}()
		done <- pc.set.Convert(fileCtx, entry)
	}()

	var result models.ConversionResult
	select {
	case result = <-done:
		if !result.OK && fileCtx.Err() == context.DeadlineExceeded {
			result.ErrorKind = models.ErrKindTimeout
			result.Error = fmt.Sprintf("conversion exceeded %s", pc.cfg.TimeoutPerFile)
		}
	case <-fileCtx.Done():
		result = models.FailedConversion(entry, models.ErrKindTimeout,
			fmt.Errorf("conversion exceeded %s", pc.cfg.TimeoutPerFile))
		result.Duration = pc.cfg.TimeoutPerFile.Seconds()
	}

	adapter := "none"
	if a := pc.set.Select(entry.Path); a != nil {
		adapter = a.Name()
	}
	pc.metrics.RecordConversion(result.Duration, adapter)
	return result
}
