package models

import "time"

// RunStatus is the lifecycle state of a processing run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is one row of the append-only run ledger.
type RunRecord struct {
	RunID        string     `json:"run_id"`
	StartedAt    time.Time  `json:"start_timestamp"`
	EndedAt      *time.Time `json:"end_timestamp,omitempty"`
	TotalFiles   int        `json:"total_files"`
	Successful   int        `json:"successful"`
	Failed       int        `json:"failed"`
	SchemaKey    string     `json:"schema_key"`
	SchemaName   string     `json:"schema_name"`
	ModelID      string     `json:"model_key"`
	Instructions string     `json:"instructions,omitempty"`
	Usage        TokenUsage `json:"usage"`
	Status       RunStatus  `json:"status"`
}

// RunStats is an aggregate over recent ledger rows.
type RunStats struct {
	Days           int   `json:"days"`
	Runs           int   `json:"runs"`
	Completed      int   `json:"completed"`
	Failed         int   `json:"failed"`
	TotalFiles     int   `json:"total_files"`
	FilesSucceeded int   `json:"files_succeeded"`
	FilesFailed    int   `json:"files_failed"`
	TotalTokens    int64 `json:"total_tokens"`
	TotalRequests  int64 `json:"total_requests"`
}

// CacheEntry is one row of the content-addressed result cache.
type CacheEntry struct {
	CacheKey       string    `json:"cache_key"`
	ContentHash    string    `json:"content_hash"`
	SchemaKey      string    `json:"schema_key"`
	ModelID        string    `json:"model_id"`
	Value          string    `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	HitCount       int       `json:"hit_count"`
	ContentSize    int       `json:"content_size"`
	ProcessingTime float64   `json:"processing_time"`
}
