package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"document-extraction-platform/internal/ai"
	"document-extraction-platform/models"
)

var audioMIMETypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// AudioConverter transcribes speech recordings to Markdown text.
type AudioConverter struct {
	provider ai.Provider
	model    string
}

func NewAudioConverter(provider ai.Provider, model string) *AudioConverter {
	return &AudioConverter{provider: provider, model: model}
}

func (a *AudioConverter) Name() string { return "audio" }

func (a *AudioConverter) Supports(filename string) bool {
	_, ok := audioMIMETypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func (a *AudioConverter) Convert(ctx context.Context, entry models.FileEntry) models.ConversionResult {
	mime := audioMIMETypes[strings.ToLower(filepath.Ext(entry.Path))]
	markdown, err := a.provider.TranscribeFile(ctx, entry.Path, mime,
		"Transcribe this recording verbatim as Markdown. Mark speaker changes when they are audible.", a.model)
	if err != nil {
		if ctx.Err() != nil {
			return models.FailedConversion(entry, models.ErrKindTimeout, ctx.Err())
		}
		return models.FailedConversion(entry, models.ErrKindExtractionFailed,
			fmt.Errorf("audio transcription failed: %w", err))
	}
	return models.ConversionResult{Entry: entry, OK: true, Markdown: markdown}
}
