package services

import (
	"strings"
	"sync"
	"testing"

	"document-extraction-platform/models"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 1},
		{"ab", 1},
		{"abcd", 1},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}

	// Identical input, identical estimate.
	if EstimateTokens("same text") != EstimateTokens("same text") {
		t.Error("estimate not deterministic")
	}
}

func TestUsageAggregatorConcurrent(t *testing.T) {
	agg := NewUsageAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Record(models.TokenUsage{Input: 10, Output: 5, Total: 15, Requests: 1})
		}()
	}
	wg.Wait()

	usage := agg.Snapshot()
	if usage.Total != 750 || usage.Requests != 50 {
		t.Errorf("aggregate = %+v", usage)
	}
}

func TestUsageAggregatorCacheCounters(t *testing.T) {
	agg := NewUsageAggregator()
	agg.RecordCacheHit()
	agg.RecordCacheHit()
	agg.RecordCacheWrite()

	usage := agg.Snapshot()
	if usage.Cached != 2 || usage.CacheRead != 2 || usage.CacheWrite != 1 {
		t.Errorf("cache counters = %+v", usage)
	}
	if usage.Total != 0 {
		t.Error("cache hits contributed tokens")
	}
}
