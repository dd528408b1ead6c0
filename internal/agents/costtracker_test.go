package agents

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(start float64) func() float64 {
	now := start
	return func() float64 {
		now += 0.5
		return now
	}
}

func TestRecordComputesCostAndTotals(t *testing.T) {
	tracker := NewCostTracker(fakeClock(1000))

	rec := tracker.Record(TokenRecordInput{
		Provider:            "google",
		Model:               "gemini-2.5-flash",
		InputTokens:         1_000_000,
		OutputTokens:        500_000,
		CacheCreationTokens: 100_000,
		CacheReadTokens:     200_000,
		FileName:            "tds.pdf",
		DocType:             "TDS",
		DurationMS:          1200,
	})

	assert.Equal(t, 1_800_000, rec.TotalTokens)
	// 1.0*0.15 + 0.5*0.60 + 0.1*0.0375 + 0.2*0.0375
	assert.InDelta(t, 0.46125, rec.CostUSD, 1e-9)
}

func TestTotalTokensInvariant(t *testing.T) {
	tracker := NewCostTracker(fakeClock(0))
	inputs := []TokenRecordInput{
		{Provider: "google", Model: "gemini-2.5-flash", InputTokens: 100, OutputTokens: 50},
		{Provider: "anthropic", Model: "claude-sonnet-4@20250514", InputTokens: 10, CacheCreationTokens: 5, CacheReadTokens: 2},
	}
	for _, in := range inputs {
		tracker.Record(in)
	}
	for _, rec := range tracker.ToRecordsList() {
		assert.Equal(t, rec.InputTokens+rec.OutputTokens+rec.CacheCreationTokens+rec.CacheReadTokens, rec.TotalTokens)
		assert.GreaterOrEqual(t, rec.CostUSD, 0.0)
	}
}

func TestUnknownModelFallbackPricing(t *testing.T) {
	tracker := NewCostTracker(fakeClock(0))
	rec := tracker.Record(TokenRecordInput{
		Provider:    "mystery",
		Model:       "totally-unknown-model",
		InputTokens: 1_000_000,
	})
	// Conservative fallback pricing applies rather than zero cost.
	assert.InDelta(t, fallbackPricing.input, rec.CostUSD, 1e-9)
	assert.Equal(t, []string{"totally-unknown-model"}, tracker.UnknownModels())
	assert.Contains(t, tracker.SummaryText(), "no pricing for totally-unknown-model")
}

func TestSummaryAggregatesByProviderModel(t *testing.T) {
	tracker := NewCostTracker(fakeClock(0))
	tracker.Record(TokenRecordInput{Provider: "google", Model: "gemini-2.5-flash", InputTokens: 100, OutputTokens: 10, DurationMS: 100})
	tracker.Record(TokenRecordInput{Provider: "google", Model: "gemini-2.5-flash", InputTokens: 300, OutputTokens: 30, DurationMS: 300, CascadeTriggered: true})
	tracker.Record(TokenRecordInput{Provider: "anthropic", Model: "claude-sonnet-4@20250514", InputTokens: 50, CacheCreationTokens: 40, CacheReadTokens: 60})

	s := tracker.Summary()
	assert.Equal(t, 3, s.TotalExtractions)
	assert.Equal(t, 1, s.CascadeTriggeredCount)

	gemini, ok := s.Providers["google/gemini-2.5-flash"]
	require.True(t, ok)
	assert.Equal(t, 2, gemini.Calls)
	assert.Equal(t, 400, gemini.InputTokens)
	assert.InDelta(t, 200.0, gemini.AvgDurationMS, 1e-9)

	claude, ok := s.Providers["anthropic/claude-sonnet-4@20250514"]
	require.True(t, ok)
	assert.InDelta(t, 60.0, claude.CacheHitRatePct, 1e-9)
}

func TestMarkCascadeTriggered(t *testing.T) {
	tracker := NewCostTracker(fakeClock(0))
	rec := tracker.Record(TokenRecordInput{Provider: "google", Model: "gemini-2.5-flash"})
	assert.False(t, rec.CascadeTriggered)

	tracker.MarkCascadeTriggered(rec, true)
	assert.Equal(t, 1, tracker.Summary().CascadeTriggeredCount)

	tracker.MarkCascadeTriggered(nil, true) // must not panic
}

func TestRecordConcurrentSafety(t *testing.T) {
	tracker := NewCostTracker(fakeClock(0))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record(TokenRecordInput{Provider: "google", Model: "gemini-2.5-flash", InputTokens: 10})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tracker.Summary().TotalExtractions)
}

func TestSummaryTextMentionsProviders(t *testing.T) {
	tracker := NewCostTracker(fakeClock(0))
	tracker.Record(TokenRecordInput{Provider: "google", Model: "gemini-2.5-flash", InputTokens: 100})
	text := tracker.SummaryText()
	assert.Contains(t, text, "google/gemini-2.5-flash")
	assert.Contains(t, text, "cache hit rate")
}
