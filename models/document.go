package models

import (
	"fmt"
	"time"
)

// ErrorKind classifies pipeline failures at component boundaries.
type ErrorKind string

const (
	ErrKindUnsupported      ErrorKind = "unsupported"
	ErrKindPasswordRequired ErrorKind = "password_required"
	ErrKindOCRUnavailable   ErrorKind = "ocr_unavailable"
	ErrKindExtractionFailed ErrorKind = "extraction_failed"
	ErrKindTimeout          ErrorKind = "timeout"
	ErrKindInvalidSchemaKey ErrorKind = "invalid_schema_key"
	ErrKindInternal         ErrorKind = "internal"
)

// FileOrigin records whether a file was uploaded directly or expanded from
// an archive.
type FileOrigin struct {
	Archive      string `json:"archive,omitempty"`
	RelativePath string `json:"relative_path,omitempty"`
}

// IsArchive reports whether the entry came out of an archive.
func (o FileOrigin) IsArchive() bool { return o.Archive != "" }

// FileEntry is one input file tracked through the pipeline.
type FileEntry struct {
	Path        string     `json:"path"`
	DisplayName string     `json:"display_name"`
	Origin      FileOrigin `json:"origin"`
}

// NewDirectEntry builds a FileEntry for a directly uploaded file.
func NewDirectEntry(path, displayName string) FileEntry {
	return FileEntry{Path: path, DisplayName: displayName}
}

// NewArchiveEntry builds a FileEntry for a file expanded from an archive.
func NewArchiveEntry(path, archiveName, relPath string) FileEntry {
	return FileEntry{
		Path:        path,
		DisplayName: fmt.Sprintf("%s → %s", archiveName, relPath),
		Origin:      FileOrigin{Archive: archiveName, RelativePath: relPath},
	}
}

// ConversionResult is the outcome of converting one file to Markdown.
// Summary holds a compressed rendition of an oversized document; Markdown
// always keeps the original conversion output so cache keys stay stable.
type ConversionResult struct {
	Entry     FileEntry `json:"entry"`
	OK        bool      `json:"ok"`
	Markdown  string    `json:"markdown,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Duration  float64   `json:"duration_seconds"`
}

// Content returns the text handed to extraction, preferring the summary
// when one replaced an oversized conversion.
func (r ConversionResult) Content() string {
	if r.Summary != "" {
		return r.Summary
	}
	return r.Markdown
}

// FailedConversion builds a failure result for the given entry.
func FailedConversion(entry FileEntry, kind ErrorKind, err error) ConversionResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ConversionResult{Entry: entry, OK: false, Error: msg, ErrorKind: kind}
}

// ExtractionTask is a unit of work for the dispatcher.
type ExtractionTask struct {
	Conversion   ConversionResult
	SchemaKey    string
	Instructions string
	ModelID      string
	EnqueuedAt   time.Time
}

// TokenUsage is the additive token accounting for a call or a run.
type TokenUsage struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	CacheRead  int64 `json:"cache_read"`
	CacheWrite int64 `json:"cache_write"`
	Total      int64 `json:"total"`
	Requests   int64 `json:"requests"`
	Cached     int64 `json:"cached,omitempty"`
}

// Add folds another usage sample into the receiver.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
	u.CacheRead += other.CacheRead
	u.CacheWrite += other.CacheWrite
	u.Total += other.Total
	u.Requests += other.Requests
	u.Cached += other.Cached
}

// ExtractionResult is the outcome (partial or terminal) of one extraction.
type ExtractionResult struct {
	Entry          FileEntry      `json:"entry"`
	OK             bool           `json:"ok"`
	Structured     any            `json:"structured,omitempty"`
	Error          string         `json:"error,omitempty"`
	ErrorKind      ErrorKind      `json:"error_kind,omitempty"`
	ErrorDetails   []HumanError   `json:"error_details,omitempty"`
	ProcessingTime float64        `json:"processing_time"`
	Usage          *TokenUsage    `json:"usage,omitempty"`
	Final          bool           `json:"final"`
	Cached         bool           `json:"cached"`
}

// HumanError is a humanized validation error surfaced to clients.
type HumanError struct {
	Field            string   `json:"field"`
	Message          string   `json:"message"`
	Row              *int     `json:"row,omitempty"`
	TechnicalDetails string   `json:"technical_details"`
	Tips             []string `json:"tips,omitempty"`
}
