package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"document-extraction-platform/models"
)

// Converter turns one input file into Markdown. Adapters never panic or
// return Go errors across this boundary; failures are carried inside the
// ConversionResult.
type Converter interface {
	Name() string
	Supports(filename string) bool
	Convert(ctx context.Context, entry models.FileEntry) models.ConversionResult
}

// ConverterSet selects the first adapter that supports a filename, in fixed
// order: pdf, audio, vision, passthrough.
type ConverterSet struct {
	adapters []Converter
}

// NewConverterSet wires the adapter chain.
func NewConverterSet(pdf, audio, vision, passthrough Converter) *ConverterSet {
	return &ConverterSet{adapters: []Converter{pdf, audio, vision, passthrough}}
}

// Select returns the adapter handling the filename, or nil when none does.
func (cs *ConverterSet) Select(filename string) Converter {
	for _, a := range cs.adapters {
		if a.Supports(filename) {
			return a
		}
	}
	return nil
}

// Convert routes the entry to its adapter; unmatched extensions fail with
// the unsupported kind.
func (cs *ConverterSet) Convert(ctx context.Context, entry models.FileEntry) models.ConversionResult {
	adapter := cs.Select(entry.Path)
	if adapter == nil {
		return models.FailedConversion(entry, models.ErrKindUnsupported,
			fmt.Errorf("no converter accepts %q", filepath.Ext(entry.Path)))
	}
	start := time.Now()
	result := adapter.Convert(ctx, entry)
	result.Duration = time.Since(start).Seconds()
	return result
}

func hasExtension(filename string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// PassthroughConverter reads text and Markdown files through unchanged.
type PassthroughConverter struct{}

func NewPassthroughConverter() *PassthroughConverter { return &PassthroughConverter{} }

func (p *PassthroughConverter) Name() string { return "passthrough" }

func (p *PassthroughConverter) Supports(filename string) bool {
	return hasExtension(filename, ".txt", ".md", ".markdown")
}

func (p *PassthroughConverter) Convert(ctx context.Context, entry models.FileEntry) models.ConversionResult {
	content, err := os.ReadFile(entry.Path)
	if err != nil {
		return models.FailedConversion(entry, models.ErrKindInternal,
			fmt.Errorf("failed to read file: %w", err))
	}
	return models.ConversionResult{Entry: entry, OK: true, Markdown: string(content)}
}
