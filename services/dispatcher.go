package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"document-extraction-platform/internal/logger"
	"document-extraction-platform/internal/telemetry"
	"document-extraction-platform/models"
)

// DispatcherConfig bounds extraction concurrency.
type DispatcherConfig struct {
	MaxConcurrent        int
	EnablePartialResults bool
}

// Dispatcher fans extraction tasks out under a concurrency permit, checking
// the result cache before spending provider tokens.
type Dispatcher struct {
	extractor *Extractor
	cache     *ResultCache
	metrics   *telemetry.Metrics
	cfg       DispatcherConfig
}

func NewDispatcher(extractor *Extractor, cache *ResultCache, metrics *telemetry.Metrics, cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	return &Dispatcher{extractor: extractor, cache: cache, metrics: metrics, cfg: cfg}
}

// Dispatch runs all tasks concurrently under the permit and emits their
// results (partials first when enabled, then exactly one terminal result
// per task) in completion order. The channel closes when every task is
// done.
func (d *Dispatcher) Dispatch(ctx context.Context, schema models.Schema, tasks []models.ExtractionTask, agg *UsageAggregator) <-chan models.ExtractionResult {
	out := make(chan models.ExtractionResult)
	permits := make(chan struct{}, d.cfg.MaxConcurrent)

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task models.ExtractionTask) {
			defer wg.Done()

			select {
			case permits <- struct{}{}:
			case <-ctx.Done():
				d.emit(ctx, out, models.ExtractionResult{
					Entry:     task.Conversion.Entry,
					Error:     "processing cancelled",
					ErrorKind: models.ErrKindTimeout,
					Final:     true,
				})
				return
			}
			defer func() { <-permits }()

			d.runTask(ctx, schema, task, agg, out)
		}(task)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// runTask processes one document end to end, recovering panics into an
// internal-kind terminal result.
func (d *Dispatcher) runTask(ctx context.Context, schema models.Schema, task models.ExtractionTask, agg *UsageAggregator, out chan<- models.ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("extraction panic", "file", task.Conversion.Entry.DisplayName, "panic", r)
			d.emit(ctx, out, models.ExtractionResult{
				Entry:     task.Conversion.Entry,
				Error:     fmt.Sprintf("extraction panicked: %v", r),
				ErrorKind: models.ErrKindInternal,
				Final:     true,
			})
		}
	}()

	// The cache key is computed over the original conversion output, not the
	// summary, so oversized documents stay cacheable across runs.
	content := []byte(task.Conversion.Markdown)
	agg.RecordFileEstimate(task.Conversion.Entry.DisplayName, EstimateTokens(task.Conversion.Content()))

	cacheKey := d.cache.Key(content, task.SchemaKey, task.ModelID)
	if entry, ok := d.cache.Get(cacheKey); ok {
		var structured any
		if err := json.Unmarshal([]byte(entry.Value), &structured); err != nil {
			logger.Warn("corrupt cache value, re-extracting", "error", err)
		} else {
			agg.RecordCacheHit()
			logger.Debug("cache hit", "file", task.Conversion.Entry.DisplayName)
			d.emit(ctx, out, models.ExtractionResult{
				Entry:          task.Conversion.Entry,
				OK:             true,
				Structured:     structured,
				ProcessingTime: entry.ProcessingTime,
				Final:          true,
				Cached:         true,
			})
			return
		}
	}

	var terminal models.ExtractionResult
	if d.cfg.EnablePartialResults {
		for result := range d.extractor.ExtractStream(ctx, schema, task) {
			if result.Final {
				terminal = result
				break
			}
			d.emit(ctx, out, result)
		}
	} else {
		terminal = d.extractor.Extract(ctx, schema, task)
	}

	if terminal.Usage != nil {
		agg.Record(*terminal.Usage)
		d.metrics.RecordTokensUsed(terminal.Usage.Total, task.ModelID)
	}
	d.metrics.RecordExtraction(terminal.ProcessingTime, task.ModelID)
	if terminal.OK {
		d.storeResult(cacheKey, task, terminal, len(content), agg)
	} else {
		d.metrics.RecordExtractionFailure(string(terminal.ErrorKind))
	}
	d.emit(ctx, out, terminal)
}

func (d *Dispatcher) storeResult(cacheKey string, task models.ExtractionTask, result models.ExtractionResult, contentSize int, agg *UsageAggregator) {
	if !d.cache.Enabled() {
		return
	}
	value, err := json.Marshal(result.Structured)
	if err != nil {
		logger.Warn("failed to encode result for cache", "error", err)
		return
	}
	contentHash := d.cache.ContentHash([]byte(task.Conversion.Markdown))
	d.cache.Set(cacheKey, contentHash, task.SchemaKey, task.ModelID,
		string(value), contentSize, result.ProcessingTime)
	agg.RecordCacheWrite()
}

func (d *Dispatcher) emit(ctx context.Context, out chan<- models.ExtractionResult, result models.ExtractionResult) {
	select {
	case out <- result:
	case <-ctx.Done():
	}
}
