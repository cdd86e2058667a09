package services

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"document-extraction-platform/internal/ai"
	"document-extraction-platform/models"
)

func dispatcherCache(t *testing.T) *ResultCache {
	t.Helper()
	rc, err := NewResultCache(ResultCacheConfig{
		Enabled:  true,
		DBPath:   filepath.Join(t.TempDir(), "cache.db"),
		TTLHours: 1,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(rc.Stop)
	return rc
}

func invoiceTasks(markdowns ...string) []models.ExtractionTask {
	tasks := make([]models.ExtractionTask, 0, len(markdowns))
	for i, md := range markdowns {
		task := invoiceTask(md)
		task.Conversion.Entry.DisplayName = task.Conversion.Entry.DisplayName + string(rune('a'+i))
		tasks = append(tasks, task)
	}
	return tasks
}

func TestDispatchCachesTerminalResults(t *testing.T) {
	provider := &stubProvider{generateFn: fixedResponse(`{"vendor":"Acme","number":"1","amount":2}`)}
	cache := dispatcherCache(t)
	d := NewDispatcher(testExtractor(provider), cache, nil, DispatcherConfig{MaxConcurrent: 2})
	agg := NewUsageAggregator()

	// First pass populates the cache.
	for result := range d.Dispatch(context.Background(), flatInvoiceSchema(), invoiceTasks("doc"), agg) {
		if !result.OK {
			t.Fatalf("first pass failed: %s", result.Error)
		}
		if result.Cached {
			t.Error("first pass reported cached")
		}
	}
	firstCalls := provider.calls.Load()

	// Second pass must be served from the cache.
	for result := range d.Dispatch(context.Background(), flatInvoiceSchema(), invoiceTasks("doc"), agg) {
		if !result.OK {
			t.Fatalf("second pass failed: %s", result.Error)
		}
		if !result.Cached {
			t.Error("second pass not served from cache")
		}
	}
	if provider.calls.Load() != firstCalls {
		t.Error("cache hit still called the provider")
	}
	if usage := agg.Snapshot(); usage.Cached != 1 {
		t.Errorf("cached counter = %d, want 1", usage.Cached)
	}
}

func TestDispatchCacheKeyedOnOriginalNotSummary(t *testing.T) {
	provider := &stubProvider{generateFn: fixedResponse(`{"vendor":"Acme","number":"1","amount":2}`)}
	cache := dispatcherCache(t)
	d := NewDispatcher(testExtractor(provider), cache, nil, DispatcherConfig{MaxConcurrent: 1})
	agg := NewUsageAggregator()

	tasks := invoiceTasks("the original oversized conversion output")
	tasks[0].Conversion.Summary = "first summary"
	for range d.Dispatch(context.Background(), flatInvoiceSchema(), tasks, agg) {
	}
	firstCalls := provider.calls.Load()

	// Same source document, different summary text. Summaries are model
	// output and vary between runs; the cache must still hit.
	tasks = invoiceTasks("the original oversized conversion output")
	tasks[0].Conversion.Summary = "second summary, worded differently"
	for result := range d.Dispatch(context.Background(), flatInvoiceSchema(), tasks, agg) {
		if !result.Cached {
			t.Error("rerun with a different summary missed the cache")
		}
	}
	if provider.calls.Load() != firstCalls {
		t.Error("cache hit still called the provider")
	}
}

func TestDispatchRespectsConcurrencyCap(t *testing.T) {
	var current, peak atomic.Int64
	provider := &stubProvider{generateFn: func(req ai.GenerateRequest) (*ai.GenerateResponse, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return fixedResponse(`{"vendor":"A","number":"1","amount":1}`)(req)
	}}

	d := NewDispatcher(testExtractor(provider), dispatcherCache(t), nil, DispatcherConfig{MaxConcurrent: 2})
	count := 0
	for range d.Dispatch(context.Background(), flatInvoiceSchema(),
		invoiceTasks("a", "b", "c", "d", "e"), NewUsageAggregator()) {
		count++
	}

	if count != 5 {
		t.Fatalf("got %d terminal results, want 5", count)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency %d exceeds cap 2", p)
	}
}

func TestDispatchRecordsTokenEstimates(t *testing.T) {
	provider := &stubProvider{generateFn: fixedResponse(`{"vendor":"A","number":"1","amount":1}`)}
	d := NewDispatcher(testExtractor(provider), dispatcherCache(t), nil, DispatcherConfig{MaxConcurrent: 1})
	agg := NewUsageAggregator()

	tasks := invoiceTasks("a long markdown document used for estimation")
	for range d.Dispatch(context.Background(), flatInvoiceSchema(), tasks, agg) {
	}

	want := EstimateTokens(tasks[0].Conversion.Markdown)
	if got := agg.FileEstimate(tasks[0].Conversion.Entry.DisplayName); got != want {
		t.Errorf("file estimate = %d, want %d", got, want)
	}
	if usage := agg.Snapshot(); usage.Total == 0 {
		t.Error("provider usage not aggregated")
	}
}

func TestDispatchFailedResultsNotCached(t *testing.T) {
	provider := &stubProvider{generateFn: fixedResponse(`not json at all`)}
	cache := dispatcherCache(t)
	d := NewDispatcher(testExtractor(provider), cache, nil, DispatcherConfig{MaxConcurrent: 1})

	for result := range d.Dispatch(context.Background(), flatInvoiceSchema(), invoiceTasks("doc"), NewUsageAggregator()) {
		if result.OK {
			t.Fatal("invalid response reported OK")
		}
	}
	if cache.Count() != 0 {
		t.Errorf("failed result cached, count = %d", cache.Count())
	}
}
