package agents

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// pricing holds per-1M-token prices: input, output, cache write, cache read.
type pricing struct {
	input, output, cacheWrite, cacheRead float64
}

// pricingTable mirrors the provider/model price list consulted by the cost
// tracker. Prices are USD per 1M tokens.
var pricingTable = map[string]pricing{
	"gemini-2.5-flash": {0.15, 0.60, 0.0375, 0.0375},
	"gemini-2.0-flash": {0.10, 0.40, 0.025, 0.025},
	"gemini-1.5-flash": {0.075, 0.30, 0.01875, 0.01875},
	"gemini-2.5-pro":   {1.25, 10.00, 0.3125, 0.3125},
	"gemini-1.5-pro":   {1.25, 5.00, 0.3125, 0.3125},

	"claude-sonnet-4@20250514":          {3.00, 15.00, 3.75, 0.30},
	"claude-sonnet-4-20250514":          {3.00, 15.00, 3.75, 0.30},
	"claude-3-5-sonnet-v2@20241022":     {3.00, 15.00, 3.75, 0.30},
	"claude-3-5-sonnet@20241022":        {3.00, 15.00, 3.75, 0.30},
	"claude-opus-4@20250514":            {15.00, 75.00, 18.75, 1.50},
	"claude-3-5-haiku@20241022":         {0.80, 4.00, 1.00, 0.08},

	"gpt-4o":        {2.50, 10.00, 0.0, 1.25},
	"gpt-4o-mini":   {0.15, 0.60, 0.0, 0.075},
	"gpt-4.1":       {2.00, 8.00, 0.0, 0.50},
	"gpt-4.1-mini":  {0.40, 1.60, 0.0, 0.10},
	"gpt-4.1-nano":  {0.10, 0.40, 0.0, 0.025},
}

var fallbackPricing = pricing{3.00, 15.00, 3.75, 0.30}

func getPricing(model string) (pricing, bool) {
	if p, ok := pricingTable[model]; ok {
		return p, true
	}
	for key, p := range pricingTable {
		if strings.Contains(model, key) || strings.Contains(key, model) {
			return p, true
		}
	}
	return fallbackPricing, false
}

// TokenRecordInput carries the raw counters of one LLM call, before cost is
// computed.
type TokenRecordInput struct {
	Provider            string
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	FileName            string
	DocType             string
	DurationMS          int
	CascadeTriggered    bool
}

// TokenRecord is one LLM call's accounting, with cost computed.
type TokenRecord struct {
	Provider            string  `json:"provider"`
	Model               string  `json:"model"`
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	TotalTokens         int     `json:"total_tokens"`
	CostUSD             float64 `json:"cost_usd"`
	FileName            string  `json:"file_name"`
	DocType             string  `json:"doc_type"`
	DurationMS          int     `json:"duration_ms"`
	CascadeTriggered    bool    `json:"cascade_triggered"`
	Timestamp           float64 `json:"timestamp"`
}

// computeCost fills TotalTokens and CostUSD, reporting whether the model had
// a known pricing entry.
func computeCost(r *TokenRecord) bool {
	r.TotalTokens = r.InputTokens + r.OutputTokens + r.CacheCreationTokens + r.CacheReadTokens
	p, known := getPricing(r.Model)
	r.CostUSD = float64(r.InputTokens)/1e6*p.input +
		float64(r.OutputTokens)/1e6*p.output +
		float64(r.CacheCreationTokens)/1e6*p.cacheWrite +
		float64(r.CacheReadTokens)/1e6*p.cacheRead
	return known
}

// ProviderStats aggregates TokenRecords by provider/model.
type ProviderStats struct {
	Provider                 string
	Model                    string
	CallCount                int
	TotalInputTokens         int
	TotalOutputTokens        int
	TotalCacheCreationTokens int
	TotalCacheReadTokens     int
	TotalTokens              int
	TotalCostUSD             float64
	TotalDurationMS          int
	CacheHitRate             float64
}

// CostTracker is the single shared mutable resource of the pipeline: every
// LLM-calling component records through it. Record is safe under concurrent
// invocation.
type CostTracker struct {
	mu            sync.Mutex
	records       []*TokenRecord
	unknownModels map[string]bool
	startSeconds  float64
	nowFn         func() float64
}

// NewCostTracker returns a CostTracker. nowFn supplies wall-clock seconds
// for record timestamps and elapsed-time reporting, letting tests substitute
// a fake clock instead of time.Now().
func NewCostTracker(nowFn func() float64) *CostTracker {
	return &CostTracker{nowFn: nowFn, startSeconds: nowFn(), unknownModels: make(map[string]bool)}
}

// Record builds a TokenRecord from the given input, computes its cost, and
// appends it to the ledger. The returned pointer may be used by a cascade
// extractor to retroactively flip CascadeTriggered once the winning side of
// a cascade is known; mutate it only via MarkCascadeTriggered.
func (c *CostTracker) Record(in TokenRecordInput) *TokenRecord {
	rec := &TokenRecord{
		Provider:            in.Provider,
		Model:               in.Model,
		InputTokens:         in.InputTokens,
		OutputTokens:        in.OutputTokens,
		CacheCreationTokens: in.CacheCreationTokens,
		CacheReadTokens:     in.CacheReadTokens,
		FileName:            in.FileName,
		DocType:             in.DocType,
		DurationMS:          in.DurationMS,
		CascadeTriggered:    in.CascadeTriggered,
		Timestamp:           c.nowFn(),
	}
	known := computeCost(rec)

	c.mu.Lock()
	c.records = append(c.records, rec)
	if !known {
		c.unknownModels[rec.Model] = true
	}
	c.mu.Unlock()

	return rec
}

// UnknownModels reports models billed at the conservative fallback price
// because no pricing entry matched them.
func (c *CostTracker) UnknownModels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.unknownModels))
	for m := range c.unknownModels {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// MarkCascadeTriggered safely updates a previously recorded TokenRecord's
// cascade_triggered flag under the tracker's lock.
func (c *CostTracker) MarkCascadeTriggered(rec *TokenRecord, triggered bool) {
	if rec == nil {
		return
	}
	c.mu.Lock()
	rec.CascadeTriggered = triggered
	c.mu.Unlock()
}

func (c *CostTracker) statsByProvider() map[string]*ProviderStats {
	out := make(map[string]*ProviderStats)
	for _, r := range c.records {
		key := fmt.Sprintf("%s/%s", r.Provider, r.Model)
		s, ok := out[key]
		if !ok {
			s = &ProviderStats{Provider: r.Provider, Model: r.Model}
			out[key] = s
		}
		s.CallCount++
		s.TotalInputTokens += r.InputTokens
		s.TotalOutputTokens += r.OutputTokens
		s.TotalCacheCreationTokens += r.CacheCreationTokens
		s.TotalCacheReadTokens += r.CacheReadTokens
		s.TotalTokens += r.TotalTokens
		s.TotalCostUSD += r.CostUSD
		s.TotalDurationMS += r.DurationMS
	}
	for _, s := range out {
		denom := s.TotalCacheCreationTokens + s.TotalCacheReadTokens
		if denom > 0 {
			s.CacheHitRate = float64(s.TotalCacheReadTokens) / float64(denom) * 100
		}
	}
	return out
}

// Summary is the structured report returned by CostTracker.Summary.
type Summary struct {
	TotalExtractions      int                        `json:"total_extractions"`
	CascadeTriggeredCount int                        `json:"cascade_triggered_count"`
	TotalTokens           int                        `json:"total_tokens"`
	TotalCostUSD          float64                    `json:"total_cost_usd"`
	AvgCostPerPDF         float64                    `json:"avg_cost_per_pdf"`
	ElapsedSeconds        float64                    `json:"elapsed_seconds"`
	Providers             map[string]ProviderSummary `json:"providers"`
}

// ProviderSummary is one provider/model's entry in Summary.Providers.
type ProviderSummary struct {
	Calls               int     `json:"calls"`
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	TotalTokens         int     `json:"total_tokens"`
	CostUSD             float64 `json:"cost_usd"`
	AvgCostPerCall      float64 `json:"avg_cost_per_call"`
	AvgDurationMS       float64 `json:"avg_duration_ms"`
	CacheHitRatePct     float64 `json:"cache_hit_rate_pct"`
}

// Summary aggregates the ledger into totals and per-provider stats.
func (c *CostTracker) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	totalTokens := 0
	totalCost := 0.0
	cascadeCount := 0
	for _, r := range c.records {
		totalTokens += r.TotalTokens
		totalCost += r.CostUSD
		if r.CascadeTriggered {
			cascadeCount++
		}
	}

	avgCost := 0.0
	if len(c.records) > 0 {
		avgCost = totalCost / float64(len(c.records))
	}

	providers := make(map[string]ProviderSummary)
	for key, s := range c.statsByProvider() {
		avgDuration := 0.0
		avgCostCall := 0.0
		if s.CallCount > 0 {
			avgDuration = float64(s.TotalDurationMS) / float64(s.CallCount)
			avgCostCall = s.TotalCostUSD / float64(s.CallCount)
		}
		providers[key] = ProviderSummary{
			Calls:               s.CallCount,
			InputTokens:         s.TotalInputTokens,
			OutputTokens:        s.TotalOutputTokens,
			CacheCreationTokens: s.TotalCacheCreationTokens,
			CacheReadTokens:     s.TotalCacheReadTokens,
			TotalTokens:         s.TotalTokens,
			CostUSD:             round4(s.TotalCostUSD),
			AvgCostPerCall:      round4(avgCostCall),
			AvgDurationMS:       avgDuration,
			CacheHitRatePct:     s.CacheHitRate,
		}
	}

	return Summary{
		TotalExtractions:      len(c.records),
		CascadeTriggeredCount: cascadeCount,
		TotalTokens:           totalTokens,
		TotalCostUSD:          round4(totalCost),
		AvgCostPerPDF:         round4(avgCost),
		ElapsedSeconds:        round1(c.nowFn() - c.startSeconds),
		Providers:             providers,
	}
}

// SummaryText renders a human-readable box report of Summary, matching the
// CLI's final cost-summary requirement.
func (c *CostTracker) SummaryText() string {
	s := c.Summary()
	var b strings.Builder
	fmt.Fprintf(&b, "Cost Summary\n")
	fmt.Fprintf(&b, "  extractions: %d (cascade triggered: %d)\n", s.TotalExtractions, s.CascadeTriggeredCount)
	fmt.Fprintf(&b, "  total tokens: %d\n", s.TotalTokens)
	fmt.Fprintf(&b, "  total cost: $%.4f (avg/pdf $%.4f)\n", s.TotalCostUSD, s.AvgCostPerPDF)
	fmt.Fprintf(&b, "  elapsed: %.1fs\n", s.ElapsedSeconds)
	for key, p := range s.Providers {
		fmt.Fprintf(&b, "  %s: %d calls, $%.4f, cache hit rate %.1f%%\n", key, p.Calls, p.CostUSD, p.CacheHitRatePct)
	}
	if unknown := c.UnknownModels(); len(unknown) > 0 {
		fmt.Fprintf(&b, "  warning: no pricing for %s, fallback rates applied\n", strings.Join(unknown, ", "))
	}
	return b.String()
}

// ToRecordsList returns the raw ledger for CSV/JSON export.
func (c *CostTracker) ToRecordsList() []TokenRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TokenRecord, len(c.records))
	for i, r := range c.records {
		rec := *r
		rec.CostUSD = round6(rec.CostUSD)
		out[i] = rec
	}
	return out
}

func round1(v float64) float64 { return roundN(v, 1) }
func round4(v float64) float64 { return roundN(v, 4) }
func round6(v float64) float64 { return roundN(v, 6) }

func roundN(v float64, n int) float64 {
	p := 1.0
	for i := 0; i < n; i++ {
		p *= 10
	}
	return float64(int64(v*p+0.5)) / p
}
