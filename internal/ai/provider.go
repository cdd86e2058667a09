package ai

import (
	"context"

	"document-extraction-platform/models"
)

// ModelParams are the only generation knobs drawn from per-model
// configuration.
type ModelParams struct {
	Temperature float32
}

// GenerateRequest is a single text-generation call.
type GenerateRequest struct {
	Model        string
	Prompt       string
	Params       ModelParams
	JSONResponse bool
}

// GenerateResponse carries the provider text and actual token usage.
type GenerateResponse struct {
	Text  string
	Usage models.TokenUsage
}

// StreamChunk is one incremental piece of a streaming generation. Usage is
// populated on the final chunk when the provider reports it.
type StreamChunk struct {
	Delta string
	Usage *models.TokenUsage
	Err   error
}

// Provider abstracts the LLM backend. The shipped implementation is Gemini;
// tests substitute stubs.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	// GenerateStream returns a channel of incremental chunks; the channel is
	// closed after the final chunk (or after a chunk carrying Err).
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamChunk, error)
	// TranscribeFile uploads a binary file (image, audio, office document or
	// scanned PDF) and asks the model to render it as Markdown text.
	TranscribeFile(ctx context.Context, path, mimeType, prompt, model string) (string, error)
}

// ModelConfig is one row of the static per-model configuration table.
type ModelConfig struct {
	Key         string  `json:"key"`
	DisplayName string  `json:"name"`
	Temperature float32 `json:"temperature"`
}

var modelConfigs = []ModelConfig{
	{Key: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash", Temperature: 0.1},
	{Key: "gemini-2.0-flash-lite", DisplayName: "Gemini 2.0 Flash Lite", Temperature: 0.1},
	{Key: "gemini-1.5-pro", DisplayName: "Gemini 1.5 Pro", Temperature: 0.2},
}

// AvailableModels lists the configured models.
func AvailableModels() []ModelConfig {
	out := make([]ModelConfig, len(modelConfigs))
	copy(out, modelConfigs)
	return out
}

// GetModelConfig resolves a model key, falling back to the first configured
// model for unknown keys.
func GetModelConfig(key string) ModelConfig {
	for _, mc := range modelConfigs {
		if mc.Key == key {
			return mc
		}
	}
	return modelConfigs[0]
}

// ParamsFor returns the generation parameters for a model key.
func ParamsFor(key string) ModelParams {
	mc := GetModelConfig(key)
	return ModelParams{Temperature: mc.Temperature}
}
