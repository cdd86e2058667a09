package services

import (
	"context"
	"fmt"
	"time"

	"document-extraction-platform/internal/logger"
	"document-extraction-platform/internal/telemetry"
	"document-extraction-platform/models"
)

// Result statuses surfaced on the stream.
const (
	ResultStatusSuccess = "success"
	ResultStatusFailed  = "error"
)

// EventSink receives every stream event in order. A non-nil error means the
// client is gone and the run should stop.
type EventSink func(event any) error

// RunRequest describes one processing run.
type RunRequest struct {
	RunID        string
	Files        []models.FileEntry
	SchemaKey    string
	Instructions string
	ModelID      string
}

// OrchestratorConfig carries the knobs echoed in the init event.
type OrchestratorConfig struct {
	MaxWorkers           int
	MaxConcurrentItems   int
	EnablePartialResults bool
}

// Orchestrator drives a full run: archive expansion, parallel conversion,
// optional summarization, extraction fan-out, and the ordered event stream.
type Orchestrator struct {
	registry   *SchemaRegistry
	expander   *ArchiveExpander
	converter  *ParallelConverter
	summarizer *Summarizer
	dispatcher *Dispatcher
	ledger     *RunLedger
	lifecycle  *FileLifecycle
	metrics    *telemetry.Metrics
	cfg        OrchestratorConfig
}

func NewOrchestrator(registry *SchemaRegistry, expander *ArchiveExpander, converter *ParallelConverter,
	summarizer *Summarizer, dispatcher *Dispatcher, ledger *RunLedger, lifecycle *FileLifecycle,
	metrics *telemetry.Metrics, cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		expander:   expander,
		converter:  converter,
		summarizer: summarizer,
		dispatcher: dispatcher,
		ledger:     ledger,
		lifecycle:  lifecycle,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// runState tracks per-run progress shared across emit helpers.
type runState struct {
	req       RunRequest
	schema    models.Schema
	sink      EventSink
	total     int
	progress  models.ProgressCounters
	usage     *UsageAggregator
	phases    map[string]float64
	summaries models.SummarizationStats
	startedAt time.Time
}

func (rs *runState) emit(event any) error { return rs.sink(event) }

// Run executes one processing run, emitting events to sink until the
// terminal complete event. It returns an error only for requests that fail
// before the stream opens (unknown schema key); everything after init is
// reported in-stream.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest, sink EventSink) error {
	schema, ok := o.registry.Get(req.SchemaKey)
	if !ok {
		return fmt.Errorf("unknown schema key %q", req.SchemaKey)
	}

	entries := o.expandInputs(req.Files)
	rs := &runState{
		req:       req,
		schema:    schema,
		sink:      sink,
		total:     len(entries),
		usage:     NewUsageAggregator(),
		phases:    make(map[string]float64),
		startedAt: time.Now(),
	}
	rs.progress.Total = rs.total

	if err := rs.emit(models.InitEvent{
		Type:           models.EventInit,
		RunID:          req.RunID,
		TotalFiles:     rs.total,
		SchemaKey:      schema.Key,
		SchemaName:     schema.Name,
		ModelID:        req.ModelID,
		MaxWorkers:     o.cfg.MaxWorkers,
		MaxConcurrent:  o.cfg.MaxConcurrentItems,
		PartialEnabled: o.cfg.EnablePartialResults,
	}); err != nil {
		return nil
	}

	o.ledger.InsertRunStart(models.RunRecord{
		RunID:        req.RunID,
		StartedAt:    rs.startedAt,
		TotalFiles:   rs.total,
		SchemaKey:    schema.Key,
		SchemaName:   schema.Name,
		ModelID:      req.ModelID,
		Instructions: req.Instructions,
	})

	if rs.total == 0 {
		return o.finish(rs, models.RunStatusCompleted)
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	release := o.lifecycle.BatchContext(paths)
	defer release()
	defer o.lifecycle.MarkStreamComplete(paths)

	converted, failures, err := o.convertPhase(ctx, rs, entries)
	if err != nil {
		return o.finish(rs, models.RunStatusFailed)
	}

	if err := o.summarizePhase(ctx, rs, converted); err != nil {
		return o.finish(rs, models.RunStatusFailed)
	}

	if err := o.extractPhase(ctx, rs, converted); err != nil {
		return o.finish(rs, models.RunStatusFailed)
	}

	// Conversion failures surface as terminal results only after the AI
	// phase, so successful documents stream first.
	for _, f := range failures {
		rs.progress.Failed++
		o.metrics.RecordFileProcessed(ResultStatusFailed)
		if err := rs.emit(models.ResultEvent{
			Type:            models.EventResult,
			SourceFile:      f.Entry.DisplayName,
			DisplayName:     f.Entry.DisplayName,
			Status:          ResultStatusFailed,
			Error:           f.Error,
			ErrorKind:       f.ErrorKind,
			IsPrimaryResult: true,
			ItemCount:       1,
			Progress:        rs.progress,
		}); err != nil {
			return o.finish(rs, models.RunStatusFailed)
		}
	}

	return o.finish(rs, models.RunStatusCompleted)
}

// expandInputs replaces archive uploads with their expanded entries,
// preserving submission order.
func (o *Orchestrator) expandInputs(files []models.FileEntry) []models.FileEntry {
	out := make([]models.FileEntry, 0, len(files))
	for _, f := range files {
		if IsArchive(f.DisplayName) {
			out = append(out, o.expander.Expand(f.Path, f.DisplayName)...)
			continue
		}
		out = append(out, f)
	}
	return out
}

// convertPhase runs parallel Markdown conversion, streaming per-file
// progress and the closing summary.
func (o *Orchestrator) convertPhase(ctx context.Context, rs *runState, entries []models.FileEntry) ([]models.ConversionResult, []models.ConversionResult, error) {
	if err := rs.emit(models.PhaseEvent{
		Type: models.EventPhase, Phase: models.PhaseMarkdownConversion, Status: models.PhaseStarted,
	}); err != nil {
		return nil, nil, err
	}
	phaseStart := time.Now()

	converted := make([]models.ConversionResult, 0, len(entries))
	var failures []models.ConversionResult
	completed := 0
	for r := range o.converter.ConvertStream(ctx, entries) {
		completed++
		result := r.Result
		if result.OK {
			converted = append(converted, result)
		} else {
			failures = append(failures, result)
		}

		elapsed := time.Since(phaseStart).Seconds()
		throughput := 0.0
		if elapsed > 0 {
			throughput = float64(completed) / elapsed
		}
		if err := rs.emit(models.ConversionProgressEvent{
			Type:       models.EventConversionProgress,
			File:       result.Entry.DisplayName,
			OK:         result.OK,
			Completed:  completed,
			Total:      rs.total,
			Throughput: throughput,
		}); err != nil {
			return nil, nil, err
		}
	}

	rs.phases[models.PhaseMarkdownConversion] = time.Since(phaseStart).Seconds()
	if err := rs.emit(models.PhaseEvent{
		Type: models.EventPhase, Phase: models.PhaseMarkdownConversion,
		Status: models.PhaseCompleted, Duration: rs.phases[models.PhaseMarkdownConversion],
	}); err != nil {
		return nil, nil, err
	}

	summary := models.ConversionSummaryEvent{
		Type:       models.EventConversionSummary,
		Successful: len(converted),
		Failed:     len(failures),
	}
	for _, f := range failures {
		summary.FailedFiles = append(summary.FailedFiles, f.Entry.DisplayName)
		if f.ErrorKind == models.ErrKindPasswordRequired {
			summary.PasswordRequired = append(summary.PasswordRequired, f.Entry.DisplayName)
		}
	}
	if err := rs.emit(summary); err != nil {
		return nil, nil, err
	}
	return converted, failures, nil
}

// summarizePhase compresses oversized documents in place. The phase events
// appear only when at least one document crosses the threshold.
func (o *Orchestrator) summarizePhase(ctx context.Context, rs *runState, converted []models.ConversionResult) error {
	var oversized []int
	for i := range converted {
		if o.summarizer.NeedsSummarization(converted[i].Markdown) {
			oversized = append(oversized, i)
		}
	}
	if len(oversized) == 0 {
		return nil
	}

	if err := rs.emit(models.PhaseEvent{
		Type: models.EventPhase, Phase: models.PhaseSummarization, Status: models.PhaseStarted,
	}); err != nil {
		return err
	}
	phaseStart := time.Now()

	for _, i := range oversized {
		result := o.summarizer.Summarize(ctx, converted[i].Markdown, rs.schema)
		if !result.OK {
			// Extraction proceeds on the original text.
			continue
		}
		converted[i].Summary = result.Summary
		rs.summaries.FilesSummarized++
		rs.summaries.OriginalLength += result.OriginalLength
		rs.summaries.SummaryLength += result.SummaryLength
	}
	if rs.summaries.OriginalLength > 0 {
		rs.summaries.CompressionRatio = float64(rs.summaries.SummaryLength) / float64(rs.summaries.OriginalLength)
	}

	rs.phases[models.PhaseSummarization] = time.Since(phaseStart).Seconds()
	return rs.emit(models.PhaseEvent{
		Type: models.EventPhase, Phase: models.PhaseSummarization,
		Status: models.PhaseCompleted, Duration: rs.phases[models.PhaseSummarization],
	})
}

// extractPhase fans converted documents out to the dispatcher and streams
// partial and terminal results.
func (o *Orchestrator) extractPhase(ctx context.Context, rs *runState, converted []models.ConversionResult) error {
	if err := rs.emit(models.PhaseEvent{
		Type: models.EventPhase, Phase: models.PhaseAIProcessing, Status: models.PhaseStarted,
	}); err != nil {
		return err
	}
	phaseStart := time.Now()

	tasks := make([]models.ExtractionTask, 0, len(converted))
	for _, c := range converted {
		tasks = append(tasks, models.ExtractionTask{
			Conversion:   c,
			SchemaKey:    rs.schema.Key,
			Instructions: rs.req.Instructions,
			ModelID:      rs.req.ModelID,
			EnqueuedAt:   time.Now(),
		})
	}

	for result := range o.dispatcher.Dispatch(ctx, rs.schema, tasks, rs.usage) {
		if !result.Final {
			if err := rs.emit(models.PartialEvent{
				Type:       models.EventPartial,
				SourceFile: result.Entry.DisplayName,
				Structured: result.Structured,
			}); err != nil {
				return err
			}
			continue
		}
		if err := o.emitTerminal(rs, result); err != nil {
			return err
		}
	}

	rs.phases[models.PhaseAIProcessing] = time.Since(phaseStart).Seconds()
	return rs.emit(models.PhaseEvent{
		Type: models.EventPhase, Phase: models.PhaseAIProcessing,
		Status: models.PhaseCompleted, Duration: rs.phases[models.PhaseAIProcessing],
	})
}

// emitTerminal turns one terminal extraction into result events, expanding
// nested-schema rows. Progress counters advance once per source file.
func (o *Orchestrator) emitTerminal(rs *runState, result models.ExtractionResult) error {
	if !result.OK {
		rs.progress.Failed++
		o.metrics.RecordFileProcessed(ResultStatusFailed)
		return rs.emit(models.ResultEvent{
			Type:            models.EventResult,
			SourceFile:      result.Entry.DisplayName,
			DisplayName:     result.Entry.DisplayName,
			Status:          ResultStatusFailed,
			Error:           result.Error,
			ErrorKind:       result.ErrorKind,
			ErrorDetails:    result.ErrorDetails,
			IsPrimaryResult: true,
			ItemCount:       1,
			ProcessingTime:  result.ProcessingTime,
			Progress:        rs.progress,
		})
	}

	rs.progress.Successful++
	o.metrics.RecordFileProcessed(ResultStatusSuccess)

	base := models.ResultEvent{
		Type:           models.EventResult,
		SourceFile:     result.Entry.DisplayName,
		DisplayName:    result.Entry.DisplayName,
		Status:         ResultStatusSuccess,
		Cached:         result.Cached,
		ProcessingTime: result.ProcessingTime,
		Progress:       rs.progress,
	}

	rows := nestedRows(rs.schema, result.Structured)
	if rows == nil {
		base.Structured = result.Structured
		base.IsPrimaryResult = true
		base.ItemCount = 1
		return rs.emit(base)
	}

	if len(rows) == 0 {
		base.IsPrimaryResult = true
		base.ItemCount = 0
		return rs.emit(base)
	}
	for i, row := range rows {
		ev := base
		ev.Structured = row
		ev.IsPrimaryResult = i == 0
		ev.ItemIndex = i
		ev.ItemCount = len(rows)
		if err := rs.emit(ev); err != nil {
			return err
		}
	}
	return nil
}

// nestedRows returns the item rows for a nested-shape schema, or nil when
// the schema is flat.
func nestedRows(schema models.Schema, structured any) []any {
	if schema.Shape() != models.ShapeNested {
		return nil
	}
	obj, ok := structured.(map[string]any)
	if !ok {
		return nil
	}
	items, ok := obj["item"].([]any)
	if !ok {
		return []any{}
	}
	return items
}

// finish emits the complete event and finalizes the ledger row.
func (o *Orchestrator) finish(rs *runState, status models.RunStatus) error {
	duration := time.Since(rs.startedAt).Seconds()

	if status == models.RunStatusCompleted {
		if err := rs.emit(models.CompleteEvent{
			Type:           models.EventComplete,
			RunID:          rs.req.RunID,
			TotalFiles:     rs.total,
			Successful:     rs.progress.Successful,
			Failed:         rs.progress.Failed,
			Duration:       duration,
			PhaseDurations: rs.phases,
			Usage:          rs.usage.Snapshot(),
			Summarization:  rs.summaries,
		}); err != nil {
			status = models.RunStatusFailed
		}
	} else {
		logger.Warn("run aborted before completion", "run_id", rs.req.RunID)
	}

	now := time.Now()
	o.ledger.UpdateRunComplete(models.RunRecord{
		RunID:      rs.req.RunID,
		EndedAt:    &now,
		TotalFiles: rs.total,
		Successful: rs.progress.Successful,
		Failed:     rs.progress.Failed,
		Usage:      rs.usage.Snapshot(),
		Status:     status,
	})
	logger.Info("run finished",
		"run_id", rs.req.RunID, "status", string(status),
		"successful", rs.progress.Successful, "failed", rs.progress.Failed,
		"duration_seconds", fmt.Sprintf("%.2f", duration))
	return nil
}
