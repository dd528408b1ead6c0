package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

// GeminiProvider implements domain.LLMProvider against Google's Generative
// Language API (or Vertex AI, when configured for it).
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	maxRetries   int
}

// NewGeminiProvider builds a GeminiProvider from an API key. When
// useVertex is true, project and location select the Vertex AI backend
// instead of the public Gemini API. maxRetries <= 0 falls back to the
// package default of 3.
func NewGeminiProvider(ctx context.Context, apiKey string, useVertex bool, project, location string, maxRetries int) (*GeminiProvider, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if useVertex {
		cfg = &genai.ClientConfig{Project: project, Location: location, Backend: genai.BackendVertexAI}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, domain.ProviderError("create gemini client", err)
	}

	return &GeminiProvider{client: client, defaultModel: DefaultModels["google"], maxRetries: maxRetries}, nil
}

// Name implements domain.LLMProvider.
func (p *GeminiProvider) Name() string { return "google" }

// CallLLM implements domain.LLMProvider, mirroring the Python
// _call_gemini path: a system_instruction config entry plus an
// application/json response MIME type when ResponseJSON is set.
func (p *GeminiProvider) CallLLM(ctx context.Context, req domain.LLMRequest) (*domain.LLMResult, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		genConfig.Temperature = &t
	}
	if req.ResponseJSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	var resp *genai.GenerateContentResponse
	start := time.Now()
	err := retryWithBackoff(ctx, retryConfigWithMax(p.maxRetries), func() error {
		var callErr error
		resp, callErr = p.client.Models.GenerateContent(ctx, model, genai.Text(req.UserContent), genConfig)
		if callErr != nil {
			return newProviderError("google", "generate content", isTransientGeminiErr(callErr), callErr)
		}
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, domain.ProviderError(fmt.Sprintf("gemini call failed for %s", req.FileName), err)
	}

	text := extractGeminiText(resp)

	var content interface{}
	if req.ResponseJSON {
		content, err = parseJSONContent(text)
		if err != nil {
			return nil, domain.SchemaError("gemini returned invalid JSON", err)
		}
	} else {
		content = text
	}

	result := &domain.LLMResult{
		Content:    content,
		DurationMS: int(elapsed.Milliseconds()),
		Provider:   "google",
		Model:      model,
	}
	if resp.UsageMetadata != nil {
		result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.CacheReadTokens = int(resp.UsageMetadata.CachedContentTokenCount)
	}

	return result, nil
}

func extractGeminiText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func parseJSONContent(text string) (interface{}, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	var v interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func isTransientGeminiErr(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "500", "502", "503", "504", "timeout", "deadline exceeded", "unavailable"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
