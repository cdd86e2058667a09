package services

import (
	"context"
	"sync/atomic"

	"document-extraction-platform/internal/ai"
	"document-extraction-platform/models"
)

// stubProvider scripts provider behavior for pipeline tests.
type stubProvider struct {
	generateFn    func(req ai.GenerateRequest) (*ai.GenerateResponse, error)
	generateCtxFn func(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error)
	streamChunks  []ai.StreamChunk
	streamErr     error
	transcribeFn  func(path, mimeType string) (string, error)
	calls         atomic.Int64
}

func (s *stubProvider) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	s.calls.Add(1)
	if s.generateCtxFn != nil {
		return s.generateCtxFn(ctx, req)
	}
	if s.generateFn != nil {
		return s.generateFn(req)
	}
	return &ai.GenerateResponse{Text: "{}", Usage: models.TokenUsage{Total: 1, Requests: 1}}, nil
}

func (s *stubProvider) GenerateStream(ctx context.Context, req ai.GenerateRequest) (<-chan ai.StreamChunk, error) {
	s.calls.Add(1)
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	out := make(chan ai.StreamChunk, len(s.streamChunks))
	for _, c := range s.streamChunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (s *stubProvider) TranscribeFile(ctx context.Context, path, mimeType, prompt, model string) (string, error) {
	s.calls.Add(1)
	if s.transcribeFn != nil {
		return s.transcribeFn(path, mimeType)
	}
	return "# Transcribed\n\ncontent", nil
}

// fixedResponse builds a generateFn returning the same payload every call.
func fixedResponse(text string) func(req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return func(req ai.GenerateRequest) (*ai.GenerateResponse, error) {
		return &ai.GenerateResponse{
			Text:  text,
			Usage: models.TokenUsage{Input: 10, Output: 5, Total: 15, Requests: 1},
		}, nil
	}
}
