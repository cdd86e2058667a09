package models

// Event type discriminators carried in every stream payload.
const (
	EventInit               = "init"
	EventPhase              = "phase"
	EventConversionProgress = "conversion_progress"
	EventConversionSummary  = "conversion_summary"
	EventPartial            = "partial"
	EventResult             = "result"
	EventComplete           = "complete"
)

// Pipeline phase names.
const (
	PhaseMarkdownConversion = "markdown_conversion"
	PhaseSummarization      = "summarization"
	PhaseAIProcessing       = "ai_processing"
)

// Phase statuses.
const (
	PhaseStarted   = "started"
	PhaseCompleted = "completed"
)

// InitEvent opens every run stream.
type InitEvent struct {
	Type           string `json:"type"`
	RunID          string `json:"run_id"`
	TotalFiles     int    `json:"total_files"`
	SchemaKey      string `json:"schema_key"`
	SchemaName     string `json:"schema_name"`
	ModelID        string `json:"model"`
	MaxWorkers     int    `json:"max_workers"`
	MaxConcurrent  int    `json:"max_concurrent_items"`
	PartialEnabled bool   `json:"partial_streaming"`
}

// PhaseEvent marks a phase transition.
type PhaseEvent struct {
	Type     string  `json:"type"`
	Phase    string  `json:"phase"`
	Status   string  `json:"status"`
	Duration float64 `json:"duration,omitempty"`
}

// ConversionProgressEvent is emitted once per completed conversion.
type ConversionProgressEvent struct {
	Type       string  `json:"type"`
	File       string  `json:"file"`
	OK         bool    `json:"ok"`
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Throughput float64 `json:"files_per_second"`
}

// ConversionSummaryEvent closes the conversion phase.
type ConversionSummaryEvent struct {
	Type             string   `json:"type"`
	Successful       int      `json:"successful"`
	Failed           int      `json:"failed"`
	FailedFiles      []string `json:"failed_files,omitempty"`
	PasswordRequired []string `json:"password_required,omitempty"`
}

// ProgressCounters ride along on every terminal result event.
type ProgressCounters struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// PartialEvent forwards a non-final extractor update. It never advances
// progress counters.
type PartialEvent struct {
	Type       string `json:"type"`
	SourceFile string `json:"source_file"`
	Structured any    `json:"structured,omitempty"`
	Final      bool   `json:"final"`
}

// ResultEvent is one terminal extraction outcome. Nested schemas emit one
// ResultEvent per expanded row sharing SourceFile.
type ResultEvent struct {
	Type            string           `json:"type"`
	SourceFile      string           `json:"source_file"`
	DisplayName     string           `json:"display_name"`
	Status          string           `json:"status"`
	Structured      any              `json:"structured,omitempty"`
	Error           string           `json:"error,omitempty"`
	ErrorKind       ErrorKind        `json:"error_kind,omitempty"`
	ErrorDetails    []HumanError     `json:"error_details,omitempty"`
	Cached          bool             `json:"cached"`
	IsPrimaryResult bool             `json:"is_primary_result"`
	ItemIndex       int              `json:"item_index"`
	ItemCount       int              `json:"item_count"`
	ProcessingTime  float64          `json:"processing_time"`
	Progress        ProgressCounters `json:"progress"`
}

// SummarizationStats summarizes what the summarizer did for a run.
type SummarizationStats struct {
	FilesSummarized  int     `json:"files_summarized"`
	OriginalLength   int     `json:"original_length"`
	SummaryLength    int     `json:"summary_length"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// CompleteEvent is always the last event of a run stream.
type CompleteEvent struct {
	Type           string             `json:"type"`
	RunID          string             `json:"run_id"`
	TotalFiles     int                `json:"total_files"`
	Successful     int                `json:"successful"`
	Failed         int                `json:"failed"`
	Duration       float64            `json:"duration"`
	PhaseDurations map[string]float64 `json:"phase_durations"`
	Usage          TokenUsage         `json:"usage"`
	Summarization  SummarizationStats `json:"summarization"`
}
