package services

import (
	"context"
	"fmt"
	"strings"

	"document-extraction-platform/internal/ai"
	"document-extraction-platform/internal/logger"
	"document-extraction-platform/models"
)

// SummarizerConfig controls when oversized documents are compressed before
// extraction.
type SummarizerConfig struct {
	TokenThreshold int
	Model          string
}

// SummaryResult reports one summarization attempt.
type SummaryResult struct {
	OK               bool
	Summary          string
	OriginalLength   int
	SummaryLength    int
	CompressionRatio float64
	Err              error
}

// Summarizer condenses documents whose estimated token count exceeds the
// configured threshold, preserving the fields a schema will extract.
type Summarizer struct {
	provider ai.Provider
	cfg      SummarizerConfig
}

func NewSummarizer(provider ai.Provider, cfg SummarizerConfig) *Summarizer {
	if cfg.TokenThreshold <= 0 {
		cfg.TokenThreshold = 200000
	}
	return &Summarizer{provider: provider, cfg: cfg}
}

// NeedsSummarization reports whether the text is over the token threshold.
func (s *Summarizer) NeedsSummarization(text string) bool {
	return EstimateTokens(text) > s.cfg.TokenThreshold
}

// Summarize compresses the document while keeping every value the target
// fields could reference. On failure the result carries the error and the
// caller extracts from the original text instead.
func (s *Summarizer) Summarize(ctx context.Context, text string, schema models.Schema) SummaryResult {
	result := SummaryResult{OriginalLength: len(text)}

	prompt := s.buildPrompt(text, schema)
	resp, err := s.provider.Generate(ctx, ai.GenerateRequest{
		Model:  s.cfg.Model,
		Prompt: prompt,
		Params: ai.ParamsFor(s.cfg.Model),
	})
	if err != nil {
		result.Err = fmt.Errorf("summarization failed: %w", err)
		logger.Warn("summarization failed, using original text", "error", err)
		return result
	}

	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		result.Err = fmt.Errorf("summarization returned empty text")
		return result
	}

	result.OK = true
	result.Summary = summary
	result.SummaryLength = len(summary)
	if result.OriginalLength > 0 {
		result.CompressionRatio = float64(result.SummaryLength) / float64(result.OriginalLength)
	}
	logger.Info("summarized document",
		"original_chars", result.OriginalLength,
		"summary_chars", result.SummaryLength,
		"ratio", fmt.Sprintf("%.2f", result.CompressionRatio))
	return result
}

func (s *Summarizer) buildPrompt(text string, schema models.Schema) string {
	var b strings.Builder
	b.WriteString("Condense the following document. You MUST keep, verbatim, every value relevant to these target fields:\n\n")
	for _, name := range schema.FieldNames() {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString("\nDrop boilerplate, repeated headers, and unrelated narrative. Keep all numbers, dates, names, and identifiers. Respond with the condensed document only.\n\nDocument:\n\n")
	b.WriteString(text)
	return b.String()
}
