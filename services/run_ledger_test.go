package services

import (
	"path/filepath"
	"testing"
	"time"

	"document-extraction-platform/models"
)

func testLedger(t *testing.T) *RunLedger {
	t.Helper()
	rl, err := NewRunLedger(RunLedgerConfig{
		Enabled: true,
		DBPath:  filepath.Join(t.TempDir(), "runs.db"),
	})
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(rl.Close)
	return rl
}

func startRecord(id string) models.RunRecord {
	return models.RunRecord{
		RunID:      id,
		StartedAt:  time.Now(),
		TotalFiles: 3,
		SchemaKey:  "invoice",
		SchemaName: "Invoice",
		ModelID:    "gemini-2.0-flash",
	}
}

func TestLedgerRunLifecycle(t *testing.T) {
	rl := testLedger(t)

	rl.InsertRunStart(startRecord("run-1"))
	runs := rl.RecentRuns(10)
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Status != models.RunStatusRunning {
		t.Errorf("status = %q, want running", runs[0].Status)
	}

	rl.UpdateRunComplete(models.RunRecord{
		RunID:      "run-1",
		TotalFiles: 3,
		Successful: 2,
		Failed:     1,
		Usage:      models.TokenUsage{Input: 100, Output: 50, Total: 150, Requests: 3},
		Status:     models.RunStatusCompleted,
	})

	runs = rl.RecentRuns(10)
	if runs[0].Status != models.RunStatusCompleted {
		t.Errorf("status = %q, want completed", runs[0].Status)
	}
	if runs[0].EndedAt == nil {
		t.Error("end timestamp not set")
	}
	if runs[0].Usage.Total != 150 {
		t.Errorf("usage total = %d", runs[0].Usage.Total)
	}
}

func TestLedgerInsertIsIdempotent(t *testing.T) {
	rl := testLedger(t)

	rl.InsertRunStart(startRecord("run-1"))
	rl.InsertRunStart(startRecord("run-1"))

	if runs := rl.RecentRuns(10); len(runs) != 1 {
		t.Errorf("got %d runs after duplicate insert, want 1", len(runs))
	}
}

func TestLedgerUnknownRunUpdateDropped(t *testing.T) {
	rl := testLedger(t)

	// Must not create a row or panic.
	rl.UpdateRunComplete(models.RunRecord{RunID: "ghost", Status: models.RunStatusCompleted})
	if runs := rl.RecentRuns(10); len(runs) != 0 {
		t.Errorf("update of unknown run created rows: %+v", runs)
	}
}

func TestLedgerRecentRunsOrderAndLimit(t *testing.T) {
	rl := testLedger(t)

	for i, id := range []string{"old", "mid", "new"} {
		rec := startRecord(id)
		rec.StartedAt = time.Now().Add(time.Duration(i) * time.Minute)
		rl.InsertRunStart(rec)
	}

	runs := rl.RecentRuns(2)
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "new" || runs[1].RunID != "mid" {
		t.Errorf("order = %s, %s", runs[0].RunID, runs[1].RunID)
	}
}

func TestLedgerStats(t *testing.T) {
	rl := testLedger(t)

	rl.InsertRunStart(startRecord("a"))
	rl.UpdateRunComplete(models.RunRecord{
		RunID: "a", TotalFiles: 3, Successful: 2, Failed: 1,
		Usage:  models.TokenUsage{Total: 100, Requests: 4},
		Status: models.RunStatusCompleted,
	})
	rl.InsertRunStart(startRecord("b"))
	rl.UpdateRunComplete(models.RunRecord{
		RunID: "b", TotalFiles: 1, Failed: 1,
		Status: models.RunStatusFailed,
	})

	stats := rl.Stats(7)
	if stats.Runs != 2 || stats.Completed != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalTokens != 100 || stats.TotalRequests != 4 {
		t.Errorf("token stats = %+v", stats)
	}
}

func TestLedgerDisabledNoOps(t *testing.T) {
	rl, err := NewRunLedger(RunLedgerConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	rl.InsertRunStart(startRecord("x"))
	if runs := rl.RecentRuns(10); runs != nil {
		t.Errorf("disabled ledger returned runs: %+v", runs)
	}
}
