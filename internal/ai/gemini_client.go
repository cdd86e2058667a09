package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"document-extraction-platform/models"

	genai "github.com/google/generative-ai-go/genai"
)

// GeminiClient implements Provider on top of the Gemini API with a circuit
// breaker and client-side request pacing.
type GeminiClient struct {
	apiKey       string
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	client       *genai.Client
	tier         string
}

type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewGeminiClient(apiKey string, tier string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	// Configure rate limits based on tier
	limits := getRateLimits(tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10)

	return &GeminiClient{
		apiKey:       apiKey,
		breaker:      breaker,
		rateLimiter:  rateLimiter,
		tokenCounter: &TokenCounter{limits: limits},
		client:       client,
		tier:         tier,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

func (gc *GeminiClient) model(req GenerateRequest) *genai.GenerativeModel {
	model := gc.client.GenerativeModel(req.Model)
	model.SetTemperature(req.Params.Temperature)
	if req.JSONResponse {
		model.ResponseMIMEType = "application/json"
	}
	return model
}

// Generate runs a one-shot generation call.
func (gc *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	estimated := len(req.Prompt) / 4
	if !gc.tokenCounter.CanConsume(estimated, 1) {
		return nil, errors.New("rate limit exceeded: wait before retry")
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		resp, err := gc.model(req).GenerateContent(ctx, genai.Text(req.Prompt))
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp := result.(*genai.GenerateContentResponse)
	usage := usageFromResponse(resp)
	gc.tokenCounter.RecordUsage(int(usage.Total), 1)

	return &GenerateResponse{Text: responseText(resp), Usage: usage}, nil
}

// GenerateStream runs a streaming generation call and forwards text deltas.
func (gc *GeminiClient) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamChunk, error) {
	estimated := len(req.Prompt) / 4
	if !gc.tokenCounter.CanConsume(estimated, 1) {
		return nil, errors.New("rate limit exceeded: wait before retry")
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	iter := gc.model(req).GenerateContentStream(ctx, genai.Text(req.Prompt))
	out := make(chan StreamChunk)

	go func() {
		defer close(out)
		var usage models.TokenUsage
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				gc.tokenCounter.RecordUsage(int(usage.Total), 1)
				out <- StreamChunk{Usage: &usage}
				return
			}
			if err != nil {
				out <- StreamChunk{Err: err}
				return
			}
			if resp.UsageMetadata != nil {
				usage = usageFromResponse(resp)
			}
			if delta := responseText(resp); delta != "" {
				select {
				case out <- StreamChunk{Delta: delta}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// TranscribeFile uploads a binary file and asks the model to render it as
// Markdown.
func (gc *GeminiClient) TranscribeFile(ctx context.Context, path, mimeType, prompt, modelKey string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for upload: %w", err)
	}
	defer f.Close()

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	file, err := gc.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to gemini: %w", err)
	}
	defer gc.client.DeleteFile(ctx, file.Name)

	params := ParamsFor(modelKey)
	model := gc.client.GenerativeModel(modelKey)
	model.SetTemperature(params.Temperature)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(`You are a precise document transcriber. Render ALL content of the provided file as clean Markdown, preserving structure, tables, headings and readable text. Do not summarize, interpret, or omit content.`)},
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		resp, err := model.GenerateContent(ctx,
			genai.FileData{URI: file.URI},
			genai.Text(prompt),
		)
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini transcription failed: %w", err)
	}

	resp := result.(*genai.GenerateContentResponse)
	text := responseText(resp)
	if text == "" {
		return "", errors.New("no content transcribed by gemini")
	}
	gc.tokenCounter.RecordUsage(int(usageFromResponse(resp).Total), 1)
	return text, nil
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()

	// Reset counters if time windows expired
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	limits := tc.limits
	if limits.RPM == 0 {
		limits = getRateLimits("free")
	}

	if tc.minuteRequests+requests > limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// usageFromResponse reads the provider-reported token counts, falling back
// to a length heuristic when metadata is absent.
func usageFromResponse(resp *genai.GenerateContentResponse) models.TokenUsage {
	if resp.UsageMetadata != nil {
		return models.TokenUsage{
			Input:    int64(resp.UsageMetadata.PromptTokenCount),
			Output:   int64(resp.UsageMetadata.CandidatesTokenCount),
			Total:    int64(resp.UsageMetadata.TotalTokenCount),
			Requests: 1,
		}
	}
	estimated := int64(len(responseText(resp)) / 4)
	if estimated < 1 {
		estimated = 1
	}
	return models.TokenUsage{Output: estimated, Total: estimated, Requests: 1}
}

func responseText(resp *genai.GenerateContentResponse) string {
	text := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text += string(t)
				}
			}
		}
	}
	return text
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
