package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"document-extraction-platform/internal/ai"
	"document-extraction-platform/models"
)

var visionMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// VisionConverter renders images and office documents as Markdown through
// the provider's file-understanding path.
type VisionConverter struct {
	provider ai.Provider
	model    string
}

func NewVisionConverter(provider ai.Provider, model string) *VisionConverter {
	return &VisionConverter{provider: provider, model: model}
}

func (v *VisionConverter) Name() string { return "vision" }

func (v *VisionConverter) Supports(filename string) bool {
	_, ok := visionMIMETypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func (v *VisionConverter) Convert(ctx context.Context, entry models.FileEntry) models.ConversionResult {
	mime := visionMIMETypes[strings.ToLower(filepath.Ext(entry.Path))]
	markdown, err := v.provider.TranscribeFile(ctx, entry.Path, mime,
		"Render this document as clean Markdown. Describe embedded images briefly in place.", v.model)
	if err != nil {
		if ctx.Err() != nil {
			return models.FailedConversion(entry, models.ErrKindTimeout, ctx.Err())
		}
		return models.FailedConversion(entry, models.ErrKindExtractionFailed,
			fmt.Errorf("vision conversion failed: %w", err))
	}
	return models.ConversionResult{Entry: entry, OK: true, Markdown: markdown}
}
