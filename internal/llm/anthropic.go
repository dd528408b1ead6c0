package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

const anthropicMaxTokens = 8192

// AnthropicProvider implements domain.LLMProvider against the Anthropic
// Messages API. Requests always go to the Anthropic API authenticated with
// the API key; no Vertex AI endpoint is configured, and useVertex only
// changes how the system prompt is sent.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	useVertex    bool
	maxRetries   int
}

// NewAnthropicProvider builds an AnthropicProvider from an API key.
// maxRetries <= 0 falls back to the package default of 3.
func NewAnthropicProvider(apiKey string, useVertex bool, maxRetries int) *AnthropicProvider {
	return &AnthropicProvider{
		client:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: DefaultModels["anthropic"],
		useVertex:    useVertex,
		maxRetries:   maxRetries,
	}
}

// Name implements domain.LLMProvider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// CallLLM implements domain.LLMProvider, mirroring the Python
// _call_anthropic path. The direct API wraps the system prompt in an
// ephemeral cache_control block so repeated extractor calls against the
// same prompt reuse Anthropic's prompt cache; when useVertex is set the
// system prompt is sent as a plain string without cache_control.
func (p *AnthropicProvider) CallLLM(ctx context.Context, req domain.LLMRequest) (*domain.LLMResult, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserContent)),
		},
	}
	if p.useVertex {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	} else {
		params.System = []anthropic.TextBlockParam{
			{
				Text:         req.SystemPrompt,
				CacheControl: anthropic.NewCacheControlEphemeralParam(),
			},
		}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	var resp *anthropic.Message
	start := time.Now()
	err := retryWithBackoff(ctx, retryConfigWithMax(p.maxRetries), func() error {
		var callErr error
		resp, callErr = p.client.Messages.New(ctx, params)
		if callErr != nil {
			return newProviderError("anthropic", "create message", isTransientAnthropicErr(callErr), callErr)
		}
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, domain.ProviderError(fmt.Sprintf("anthropic call failed for %s", req.FileName), err)
	}

	text := extractAnthropicText(resp)

	var content interface{}
	if req.ResponseJSON {
		content, err = parseJSONContent(text)
		if err != nil {
			return nil, domain.SchemaError("anthropic returned invalid JSON", err)
		}
	} else {
		content = text
	}

	return &domain.LLMResult{
		Content:             content,
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
		DurationMS:          int(elapsed.Milliseconds()),
		Provider:            "anthropic",
		Model:               model,
	}, nil
}

func extractAnthropicText(resp *anthropic.Message) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func isTransientAnthropicErr(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "500", "502", "503", "504", "overloaded", "timeout", "deadline exceeded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
