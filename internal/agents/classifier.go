package agents

import (
	"context"
	"fmt"

	"github.com/tbeh-star/solvate-ai/internal/domain"
	"github.com/tbeh-star/solvate-ai/internal/observability"
)

// maxClassifierContentChars bounds how much of the document markdown is
// sent to the classifier — roughly the first two pages.
const maxClassifierContentChars = 4000

// Classifier is Agent 1: document type + brand classification via a single
// focused LLM call over the first ~2 pages plus the filename.
type Classifier struct {
	provider     domain.LLMProvider
	model        string
	costTracker  *CostTracker
	systemPrompt string
	logger       *observability.Logger
}

// NewClassifier builds a Classifier bound to one LLM provider.
func NewClassifier(provider domain.LLMProvider, model, systemPrompt string, costTracker *CostTracker, logger *observability.Logger) *Classifier {
	return &Classifier{
		provider:     provider,
		model:        model,
		costTracker:  costTracker,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// Classify implements domain.Classifier. On any failure it returns an
// "unknown" result rather than propagating the error — the pipeline must be
// resilient to misclassification.
func (c *Classifier) Classify(ctx context.Context, markdown, fileName string) domain.ClassificationResult {
	sample := markdown
	if len(sample) > maxClassifierContentChars {
		sample = sample[:maxClassifierContentChars]
	}

	userContent := fmt.Sprintf("Filename: %s\n\n--- Document Content (first 2 pages) ---\n\n%s", fileName, sample)

	result, err := c.provider.CallLLM(ctx, domain.LLMRequest{
		SystemPrompt: c.systemPrompt,
		UserContent:  userContent,
		ResponseJSON: true,
		FileName:     fileName,
		DocType:      "classification",
		Model:        c.model,
	})
	if err != nil {
		c.logger.Warn().Str("file", fileName).Err(err).Msg("classification failed, falling back to unknown")
		return domain.ClassificationResult{
			DocType:    domain.DocTypeUnknown,
			Confidence: 0.0,
			Reasoning:  fmt.Sprintf("classification error: %v", err),
		}
	}

	c.recordCost(result, fileName)

	raw, ok := result.Content.(map[string]interface{})
	if !ok {
		return domain.ClassificationResult{
			DocType:    domain.DocTypeUnknown,
			Confidence: 0.0,
			Reasoning:  "classifier returned non-object JSON",
		}
	}

	classification := parseClassification(raw)
	c.logger.Info().
		Str("file", fileName).
		Str("doc_type", classification.DocType).
		Float64("confidence", classification.Confidence).
		Msg("document classified")

	return classification
}

func (c *Classifier) recordCost(result *domain.LLMResult, fileName string) {
	if c.costTracker == nil {
		return
	}
	c.costTracker.Record(TokenRecordInput{
		Provider:            result.Provider,
		Model:               result.Model,
		InputTokens:         result.InputTokens,
		OutputTokens:        result.OutputTokens,
		CacheCreationTokens: result.CacheCreationTokens,
		CacheReadTokens:     result.CacheReadTokens,
		FileName:            fileName,
		DocType:             "classification",
		DurationMS:          result.DurationMS,
	})
}

func parseClassification(raw map[string]interface{}) domain.ClassificationResult {
	result := domain.ClassificationResult{DocType: domain.DocTypeUnknown}
	if v, ok := raw["doc_type"].(string); ok && v != "" {
		result.DocType = v
	}
	if v, ok := raw["brand"].(string); ok && v != "" {
		result.Brand = &v
	}
	if v, ok := raw["product_name"].(string); ok && v != "" {
		result.ProductName = &v
	}
	if v, ok := raw["confidence"].(float64); ok {
		result.Confidence = v
	}
	if v, ok := raw["reasoning"].(string); ok {
		result.Reasoning = v
	}
	return result
}
