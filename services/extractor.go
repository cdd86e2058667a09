package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"document-extraction-platform/internal/ai"
	"document-extraction-platform/internal/logger"
	"document-extraction-platform/models"
)

// defaultPromptTemplate is used when a request carries no custom template.
// Placeholders: {schema_name}, {schema_description}, {instructions},
// {content}.
const defaultPromptTemplate = `You are a data extraction engine. Extract structured data from the document below.

Target schema: {schema_name}
{schema_description}

{instructions}

Respond with a single JSON object matching the schema exactly. Use null for values the document does not contain. Do not invent data.

Document:

{content}`

// ExtractorConfig controls extraction retries and the per-call deadline.
type ExtractorConfig struct {
	RetryAttempts int
	Timeout       time.Duration
}

// Extractor runs schema-guided extraction against the provider, validating
// output and retrying transient failures with backoff.
type Extractor struct {
	provider ai.Provider
	cfg      ExtractorConfig
}

func NewExtractor(provider ai.Provider, cfg ExtractorConfig) *Extractor {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Extractor{provider: provider, cfg: cfg}
}

// BuildPrompt renders the prompt template for one document.
func BuildPrompt(template string, schema models.Schema, instructions, content string) string {
	if strings.TrimSpace(template) == "" {
		template = defaultPromptTemplate
	}
	r := strings.NewReplacer(
		"{schema_name}", schema.Name,
		"{schema_description}", models.DescribeSchema(schema),
		"{instructions}", instructions,
		"{content}", content,
	)
	return r.Replace(template)
}

// Extract performs one blocking extraction with retries and returns the
// terminal result.
func (e *Extractor) Extract(ctx context.Context, schema models.Schema, task models.ExtractionTask) models.ExtractionResult {
	start := time.Now()
	prompt := BuildPrompt("", schema, task.Instructions, task.Conversion.Content())

	var lastErr error
	for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		resp, err := e.provider.Generate(callCtx, ai.GenerateRequest{
			Model:        task.ModelID,
			Prompt:       prompt,
			Params:       ai.ParamsFor(task.ModelID),
			JSONResponse: true,
		})
		cancel()
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			logger.Warn("extraction attempt failed",
				"file", task.Conversion.Entry.DisplayName, "attempt", attempt, "error", err)
			e.backoff(ctx, attempt)
			continue
		}

		result := e.finalize(schema, task, resp.Text, &resp.Usage, start)
		return result
	}

	kind := models.ErrKindExtractionFailed
	if ctx.Err() != nil || errors.Is(lastErr, context.DeadlineExceeded) {
		kind = models.ErrKindTimeout
	}
	return models.ExtractionResult{
		Entry:          task.Conversion.Entry,
		OK:             false,
		Error:          fmt.Sprintf("extraction failed after %d attempts: %v", e.cfg.RetryAttempts, lastErr),
		ErrorKind:      kind,
		ProcessingTime: time.Since(start).Seconds(),
		Final:          true,
	}
}

// ExtractStream performs one extraction, emitting parseable partial results
// as the provider streams, then the validated terminal result. The channel
// closes after the terminal result.
func (e *Extractor) ExtractStream(ctx context.Context, schema models.Schema, task models.ExtractionTask) <-chan models.ExtractionResult {
	out := make(chan models.ExtractionResult)
	go func() {
		defer close(out)
		start := time.Now()
		prompt := BuildPrompt("", schema, task.Instructions, task.Conversion.Content())

		var lastErr error
		for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
			result, retryable := e.streamOnce(ctx, schema, task, prompt, start, out, attempt > 1)
			if result != nil {
				out <- *result
				return
			}
			lastErr = retryable
			if ctx.Err() != nil {
				break
			}
			logger.Warn("streaming extraction attempt failed",
				"file", task.Conversion.Entry.DisplayName, "attempt", attempt, "error", retryable)
			e.backoff(ctx, attempt)
		}

		kind := models.ErrKindExtractionFailed
		if ctx.Err() != nil || errors.Is(lastErr, context.DeadlineExceeded) {
			kind = models.ErrKindTimeout
		}
		out <- models.ExtractionResult{
			Entry:          task.Conversion.Entry,
			OK:             false,
			Error:          fmt.Sprintf("extraction failed after %d attempts: %v", e.cfg.RetryAttempts, lastErr),
			ErrorKind:      kind,
			ProcessingTime: time.Since(start).Seconds(),
			Final:          true,
		}
	}()
	return out
}

// streamOnce runs a single streaming attempt. It returns a terminal result,
// or nil with the retryable error. Partials are suppressed on retry attempts
// so clients never see the document restart.
func (e *Extractor) streamOnce(ctx context.Context, schema models.Schema, task models.ExtractionTask, prompt string, start time.Time, out chan<- models.ExtractionResult, mutePartials bool) (*models.ExtractionResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	chunks, err := e.provider.GenerateStream(callCtx, ai.GenerateRequest{
		Model:        task.ModelID,
		Prompt:       prompt,
		Params:       ai.ParamsFor(task.ModelID),
		JSONResponse: true,
	})
	if err != nil {
		return nil, err
	}

	var accumulated strings.Builder
	var usage *models.TokenUsage
	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if chunk.Delta == "" {
			continue
		}
		accumulated.WriteString(chunk.Delta)

		if mutePartials {
			continue
		}
		// Forward only snapshots that already parse as JSON; clients
		// render them without their own repair logic.
		if partial, ok := parseJSON(accumulated.String()); ok {
			out <- models.ExtractionResult{
				Entry:      task.Conversion.Entry,
				OK:         true,
				Structured: partial,
				Final:      false,
			}
		}
	}

	result := e.finalize(schema, task, accumulated.String(), usage, start)
	return &result, nil
}

// finalize parses and validates the raw model output into a terminal result.
func (e *Extractor) finalize(schema models.Schema, task models.ExtractionTask, raw string, usage *models.TokenUsage, start time.Time) models.ExtractionResult {
	result := models.ExtractionResult{
		Entry:          task.Conversion.Entry,
		Usage:          usage,
		ProcessingTime: time.Since(start).Seconds(),
		Final:          true,
	}

	value, ok := parseJSON(raw)
	if !ok {
		result.Error = "model response is not valid JSON"
		result.ErrorKind = models.ErrKindExtractionFailed
		return result
	}

	if errs := models.Validate(schema, value); len(errs) > 0 {
		details := HumanizeErrors(errs)
		result.Error = SummarizeErrors(details)
		result.ErrorKind = models.ErrKindExtractionFailed
		result.ErrorDetails = details
		return result
	}

	result.OK = true
	result.Structured = value
	return result
}

// parseJSON decodes text as JSON after stripping Markdown code fences.
func parseJSON(text string) (any, bool) {
	cleaned := stripCodeFences(text)
	if strings.TrimSpace(cleaned) == "" {
		return nil, false
	}
	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return nil, false
	}
	return value, true
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// backoff sleeps exponentially with jitter, respecting ctx cancellation.
func (e *Extractor) backoff(ctx context.Context, attempt int) {
	base := time.Duration(1<<uint(attempt-1)) * time.Second
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	select {
	case <-time.After(base + jitter):
	case <-ctx.Done():
	}
}
