package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	FilesProcessed     metric.Int64Counter
	ConversionDuration metric.Float64Histogram
	ExtractionDuration metric.Float64Histogram
	CacheLookups       metric.Int64Counter
	TokensUsed         metric.Int64Counter
	ExtractionFailures metric.Int64Counter
}

// InitMetrics initializes all pipeline metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("document-extraction-platform")

	filesProcessed, err := meter.Int64Counter(
		"pipeline.files.processed",
		metric.WithDescription("Total files processed"),
	)
	if err != nil {
		return nil, err
	}

	conversionDuration, err := meter.Float64Histogram(
		"pipeline.conversion.duration",
		metric.WithDescription("Markdown conversion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	extractionDuration, err := meter.Float64Histogram(
		"pipeline.extraction.duration",
		metric.WithDescription("LLM extraction duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"pipeline.cache.lookups",
		metric.WithDescription("Result cache lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"pipeline.tokens.used",
		metric.WithDescription("Total provider tokens used"),
	)
	if err != nil {
		return nil, err
	}

	extractionFailures, err := meter.Int64Counter(
		"pipeline.extraction.failures",
		metric.WithDescription("Extraction failures by error kind"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		FilesProcessed:     filesProcessed,
		ConversionDuration: conversionDuration,
		ExtractionDuration: extractionDuration,
		CacheLookups:       cacheLookups,
		TokensUsed:         tokensUsed,
		ExtractionFailures: extractionFailures,
	}, nil
}

// RecordFileProcessed records one terminal file outcome
func (m *Metrics) RecordFileProcessed(status string) {
	if m == nil {
		return
	}
	m.FilesProcessed.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("pipeline.status", status),
	))
}

// RecordConversion records one Markdown conversion
func (m *Metrics) RecordConversion(duration float64, adapter string) {
	if m == nil {
		return
	}
	m.ConversionDuration.Record(context.Background(), duration, metric.WithAttributes(
		attribute.String("pipeline.adapter", adapter),
	))
}

// RecordExtraction records one LLM extraction
func (m *Metrics) RecordExtraction(duration float64, model string) {
	if m == nil {
		return
	}
	m.ExtractionDuration.Record(context.Background(), duration, metric.WithAttributes(
		attribute.String("pipeline.model", model),
	))
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("cache.outcome", outcome),
	))
}

// RecordTokensUsed records provider token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	if m == nil {
		return
	}
	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(
		attribute.String("pipeline.model", model),
	))
}

// RecordExtractionFailure records a failed extraction by error kind
func (m *Metrics) RecordExtractionFailure(kind string) {
	if m == nil {
		return
	}
	m.ExtractionFailures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("pipeline.error_kind", kind),
	))
}
