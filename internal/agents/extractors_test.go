package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

// stubProvider returns queued responses in order, failing when exhausted.
type stubProvider struct {
	name      string
	responses []interface{}
	errs      []error
	calls     int
	requests  []domain.LLMRequest
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) CallLLM(ctx context.Context, req domain.LLMRequest) (*domain.LLMResult, error) {
	s.requests = append(s.requests, req)
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	var content interface{}
	if idx < len(s.responses) {
		content = s.responses[idx]
	}
	return &domain.LLMResult{
		Content:      content,
		InputTokens:  100,
		OutputTokens: 50,
		DurationMS:   10,
		Provider:     s.name,
		Model:        "stub-model",
	}, nil
}

// extractionJSON builds an LLM-shaped extraction response populating
// product_name and cas_numbers, plus density when density is non-empty.
func extractionJSON(productName string, density string) map[string]interface{} {
	out := map[string]interface{}{
		"document_info": map[string]interface{}{"document_type": "TDS", "language": "en", "page_count": float64(3)},
		"identity":      map[string]interface{}{"product_name": productName},
		"chemical": map[string]interface{}{
			"cas_numbers": map[string]interface{}{
				"value": "63148-62-9", "source_section": "Section 3",
				"raw_string": "63148-62-9", "confidence": "high", "is_specification": true,
			},
		},
	}
	if density != "" {
		out["physical"] = map[string]interface{}{
			"density": map[string]interface{}{
				"value": density, "source_section": "properties table",
				"raw_string": density, "confidence": "high", "is_specification": true,
			},
		}
	}
	return out
}

func TestExtractorProducesPartial(t *testing.T) {
	provider := &stubProvider{name: "google", responses: []interface{}{extractionJSON("RT 601", "1.02 g/cm³")}}
	tracker := NewCostTracker(fakeClock(0))
	e := NewExtractor("tds_extractor", domain.DocTypeTDS, "extract things", provider, "stub-model", tracker, testLogger())

	partial := e.Extract(context.Background(), "## Page 1\n\ncontent", domain.DocTypeTDS, "tds.pdf")

	require.NotNil(t, partial.ExtractionResult)
	assert.Equal(t, "RT 601", partial.ExtractionResult.Identity.ProductName)
	assert.Contains(t, partial.ExtractedFields, "product_name")
	assert.Contains(t, partial.ExtractedFields, "cas_numbers")
	assert.Contains(t, partial.ExtractedFields, "density")
	assert.Contains(t, partial.MissingFields, "un_number")
	assert.NotContains(t, partial.MissingFields, "density")
	assert.Equal(t, 1, tracker.Summary().TotalExtractions)

	// missing ∪ extracted covers all 33 attributes, disjointly.
	assert.Len(t, partial.MissingFields, len(domain.AllAttributeNames)-len(partial.ExtractedFields))
	for _, m := range partial.MissingFields {
		assert.NotContains(t, partial.ExtractedFields, m)
	}
}

func TestExtractorSchemaHintAppended(t *testing.T) {
	provider := &stubProvider{name: "google", responses: []interface{}{extractionJSON("X", "")}}
	e := NewExtractor("tds_extractor", domain.DocTypeTDS, "base prompt", provider, "stub-model", nil, testLogger())

	e.Extract(context.Background(), "content", domain.DocTypeTDS, "x.pdf")
	require.Len(t, provider.requests, 1)
	assert.Contains(t, provider.requests[0].SystemPrompt, "base prompt")
	assert.Contains(t, provider.requests[0].SystemPrompt, "document_info")
	assert.True(t, provider.requests[0].ResponseJSON)
}

func TestExtractorProviderFailure(t *testing.T) {
	provider := &stubProvider{name: "google", errs: []error{errors.New("boom")}}
	e := NewExtractor("tds_extractor", domain.DocTypeTDS, "p", provider, "stub-model", nil, testLogger())

	partial := e.Extract(context.Background(), "content", domain.DocTypeTDS, "x.pdf")

	require.NotNil(t, partial.ExtractionResult)
	assert.Empty(t, partial.ExtractedFields)
	assert.Len(t, partial.MissingFields, len(domain.AllAttributeNames))
	require.Len(t, partial.Warnings, 1)
	assert.Contains(t, partial.Warnings[0], "extraction error")
}

func TestExtractorNonObjectJSON(t *testing.T) {
	provider := &stubProvider{name: "google", responses: []interface{}{[]interface{}{"not", "an", "object"}}}
	e := NewExtractor("tds_extractor", domain.DocTypeTDS, "p", provider, "stub-model", nil, testLogger())

	partial := e.Extract(context.Background(), "content", domain.DocTypeTDS, "x.pdf")
	assert.Len(t, partial.MissingFields, len(domain.AllAttributeNames))
	assert.Contains(t, partial.Warnings[0], "non-object JSON")
}

func TestCascadeNotTriggeredBelowThreshold(t *testing.T) {
	primary := &stubProvider{name: "google", responses: []interface{}{extractionJSON("RT 601", "1.02")}}
	fallback := &stubProvider{name: "anthropic"}
	tracker := NewCostTracker(fakeClock(0))
	logger := testLogger()

	c := NewCascadeExtractor(
		NewExtractor("tds_extractor", domain.DocTypeTDS, "p", primary, "cheap", tracker, logger),
		NewExtractor("tds_extractor_fallback", domain.DocTypeTDS, "p", fallback, "expensive", tracker, logger),
		30, tracker, logger,
	)

	partial := c.Extract(context.Background(), "content", domain.DocTypeTDS, "x.pdf")
	assert.Equal(t, 0, fallback.calls)
	assert.False(t, partial.CascadeTriggered)
}

func TestCascadeNotTriggeredAtExactThreshold(t *testing.T) {
	// extractionJSON with no density populates 5 attributes: missing is
	// exactly 28, which must NOT trigger a fallback call at threshold 28.
	primary := &stubProvider{name: "google", responses: []interface{}{extractionJSON("RT 601", "")}}
	fallback := &stubProvider{name: "anthropic"}
	tracker := NewCostTracker(fakeClock(0))
	logger := testLogger()

	c := NewCascadeExtractor(
		NewExtractor("tds_extractor", domain.DocTypeTDS, "p", primary, "cheap", tracker, logger),
		NewExtractor("tds_extractor_fallback", domain.DocTypeTDS, "p", fallback, "expensive", tracker, logger),
		28, tracker, logger,
	)

	partial := c.Extract(context.Background(), "content", domain.DocTypeTDS, "x.pdf")
	require.Len(t, partial.MissingFields, 28)
	assert.Equal(t, 0, fallback.calls)
	assert.False(t, partial.CascadeTriggered)
	require.Len(t, tracker.ToRecordsList(), 1)
}

func TestCascadeFallbackWins(t *testing.T) {
	// Primary populates few attributes; fallback populates more.
	primary := &stubProvider{name: "google", responses: []interface{}{
		map[string]interface{}{"identity": map[string]interface{}{"product_name": "RT 601"}},
	}}
	fallback := &stubProvider{name: "anthropic", responses: []interface{}{extractionJSON("RT 601", "1.02")}}
	tracker := NewCostTracker(fakeClock(0))
	logger := testLogger()

	c := NewCascadeExtractor(
		NewExtractor("tds_extractor", domain.DocTypeTDS, "p", primary, "cheap", tracker, logger),
		NewExtractor("tds_extractor_fallback", domain.DocTypeTDS, "p", fallback, "expensive", tracker, logger),
		10, tracker, logger,
	)

	partial := c.Extract(context.Background(), "content", domain.DocTypeTDS, "x.pdf")

	assert.Equal(t, 1, fallback.calls)
	assert.False(t, partial.CascadeTriggered)
	assert.Equal(t, "RT 601", partial.ExtractionResult.Identity.ProductName)
	assert.NotNil(t, partial.ExtractionResult.Physical.Density)

	// Both calls billed; the losing (primary) side is tagged triggered.
	records := tracker.ToRecordsList()
	require.Len(t, records, 2)
	triggered := 0
	for _, r := range records {
		if r.CascadeTriggered {
			triggered++
		}
	}
	assert.Equal(t, 1, triggered)
}

func TestCascadeTieGoesToPrimary(t *testing.T) {
	// Both sides populate the same attribute count.
	primary := &stubProvider{name: "google", responses: []interface{}{extractionJSON("Primary", "")}}
	fallback := &stubProvider{name: "anthropic", responses: []interface{}{extractionJSON("Fallback", "")}}
	tracker := NewCostTracker(fakeClock(0))
	logger := testLogger()

	c := NewCascadeExtractor(
		NewExtractor("tds_extractor", domain.DocTypeTDS, "p", primary, "cheap", tracker, logger),
		NewExtractor("tds_extractor_fallback", domain.DocTypeTDS, "p", fallback, "expensive", tracker, logger),
		5, tracker, logger,
	)

	partial := c.Extract(context.Background(), "content", domain.DocTypeTDS, "x.pdf")
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, "Primary", partial.ExtractionResult.Identity.ProductName)
	assert.False(t, partial.CascadeTriggered)
}

func TestGetExtractorConfigFallsBackToTDS(t *testing.T) {
	cfg := GetExtractorConfig(domain.DocTypeUnknown)
	assert.Equal(t, domain.DocTypeTDS, cfg.DocType)

	cfg = GetExtractorConfig(domain.DocTypeSDS)
	assert.Equal(t, "extractor_sds.txt", cfg.PromptFile)
}
