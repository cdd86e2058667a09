package services

import (
	"sync"

	"document-extraction-platform/models"
)

// EstimateTokens approximates the token count of a text for budgeting
// decisions (1 token ≈ 4 characters for Gemini). Deterministic for
// identical input.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// UsageAggregator accumulates per-run token usage across concurrent tasks.
type UsageAggregator struct {
	mu      sync.Mutex
	usage   models.TokenUsage
	perFile map[string]int
}

// NewUsageAggregator creates an empty aggregator.
func NewUsageAggregator() *UsageAggregator {
	return &UsageAggregator{perFile: make(map[string]int)}
}

// Record folds one extraction's usage into the run totals.
func (ua *UsageAggregator) Record(usage models.TokenUsage) {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	ua.usage.Add(usage)
}

// RecordCacheHit counts a cache hit; hits contribute zero tokens.
func (ua *UsageAggregator) RecordCacheHit() {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	ua.usage.Cached++
	ua.usage.CacheRead++
}

// RecordCacheWrite counts a cache population.
func (ua *UsageAggregator) RecordCacheWrite() {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	ua.usage.CacheWrite++
}

// RecordFileEstimate stores the input-size token estimate for one file.
func (ua *UsageAggregator) RecordFileEstimate(displayName string, tokens int) {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	ua.perFile[displayName] = tokens
}

// FileEstimate returns the recorded estimate for a file.
func (ua *UsageAggregator) FileEstimate(displayName string) int {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	return ua.perFile[displayName]
}

// Snapshot returns a copy of the aggregate usage.
func (ua *UsageAggregator) Snapshot() models.TokenUsage {
	ua.mu.Lock()
	defer ua.mu.Unlock()
	return ua.usage
}
