// Package export writes the pipeline's on-disk result files: batch summary
// CSVs, full-result JSON trees, and cost ledgers.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tbeh-star/solvate-ai/internal/agents"
	"github.com/tbeh-star/solvate-ai/internal/domain"
)

// FileMeta carries the discovery-time brand and product folder of one PDF,
// keyed by path in the maps the writers receive.
type FileMeta struct {
	Brand         string
	ProductFolder string
}

// TimestampedName builds "<prefix>_<ts>.<ext>" with the batch convention's
// compact timestamp format.
func TimestampedName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format("20060102_150405"), ext)
}

// summaryColumns is the fixed column set of the batch summary CSV.
var summaryColumns = []string{
	"file_name", "brand", "product_folder", "doc_type", "success",
	"product_name", "cas_numbers", "missing_count", "provider", "model",
	"input_tokens", "output_tokens", "cache_read_tokens", "duration_ms",
	"error", "warnings",
}

// WriteBatchResultsCSV writes the per-PDF summary CSV. Token columns
// aggregate every LLM call billed to that file; provider/model are those of
// the last call recorded for it, which is the audit call when one ran.
func WriteBatchResultsCSV(path string, partials []*domain.PartialExtraction, meta map[string]FileMeta, records []agents.TokenRecord) error {
	byFile := groupRecordsByFile(records)

	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(summaryColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range partials {
		m := meta[p.SourceFile]
		recs := byFile[p.SourceFile]

		provider, model := "", ""
		inputTokens, outputTokens, cacheRead, durationMS := 0, 0, 0, 0
		for _, r := range recs {
			provider, model = r.Provider, r.Model
			inputTokens += r.InputTokens
			outputTokens += r.OutputTokens
			cacheRead += r.CacheReadTokens
			durationMS += r.DurationMS
		}

		success := p.ExtractionResult != nil && len(p.ExtractedFields) > 0
		errMsg := ""
		if !success && len(p.Warnings) > 0 {
			errMsg = p.Warnings[0]
		}

		row := []string{
			filepath.Base(p.SourceFile),
			m.Brand,
			m.ProductFolder,
			p.DocType,
			strconv.FormatBool(success),
			productNameOf(p),
			casNumbersOf(p),
			strconv.Itoa(len(p.MissingFields)),
			provider,
			model,
			strconv.Itoa(inputTokens),
			strconv.Itoa(outputTokens),
			strconv.Itoa(cacheRead),
			strconv.Itoa(durationMS),
			errMsg,
			strings.Join(p.Warnings, " | "),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// PDFExportRecord is one per-PDF entry of the full JSON export: the partial
// extraction tree plus the token records attributed to it.
type PDFExportRecord struct {
	Partial          *domain.PartialExtraction `json:"partial"`
	CascadeTriggered bool                      `json:"cascade_triggered"`
	TokenRecords     []agents.TokenRecord      `json:"token_records"`
}

// batchResultsJSON is the top-level shape of the full JSON export.
type batchResultsJSON struct {
	PDFs            []PDFExportRecord           `json:"pdfs"`
	ProductGroups   []*domain.ProductGroup      `json:"product_groups,omitempty"`
	GoldenRecords   []*domain.MergeRecordResult `json:"golden_records,omitempty"`
	PipelineSummary domain.PipelineSummary      `json:"pipeline_summary"`
	CostSummary     interface{}                 `json:"cost_summary"`
}

// WriteBatchResultsJSON writes the full per-PDF ExtractionResult trees with
// token attribution, plus the pipeline and cost summaries.
func WriteBatchResultsJSON(path string, result *domain.PipelineResult, records []agents.TokenRecord) error {
	byFile := groupRecordsByFile(records)

	out := batchResultsJSON{
		ProductGroups:   result.ProductGroups,
		GoldenRecords:   result.GoldenRecords,
		PipelineSummary: result.PipelineSummary,
		CostSummary:     result.CostSummary,
	}
	for _, p := range result.Partials {
		out.PDFs = append(out.PDFs, PDFExportRecord{
			Partial:          p,
			CascadeTriggered: p.CascadeTriggered,
			TokenRecords:     byFile[p.SourceFile],
		})
	}

	return writeJSON(path, out)
}

// costColumns is the fixed column set of the cost ledger CSV.
var costColumns = []string{
	"timestamp", "provider", "model", "file_name", "doc_type",
	"input_tokens", "output_tokens", "cache_creation_tokens",
	"cache_read_tokens", "total_tokens", "cost_usd", "duration_ms",
	"cascade_triggered",
}

// WriteCostsCSV writes the raw TokenRecord ledger as CSV, one row per LLM
// call.
func WriteCostsCSV(path string, records []agents.TokenRecord) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(costColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			strconv.FormatFloat(r.Timestamp, 'f', 3, 64),
			r.Provider,
			r.Model,
			filepath.Base(r.FileName),
			r.DocType,
			strconv.Itoa(r.InputTokens),
			strconv.Itoa(r.OutputTokens),
			strconv.Itoa(r.CacheCreationTokens),
			strconv.Itoa(r.CacheReadTokens),
			strconv.Itoa(r.TotalTokens),
			strconv.FormatFloat(r.CostUSD, 'f', 6, 64),
			strconv.Itoa(r.DurationMS),
			strconv.FormatBool(r.CascadeTriggered),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteCostsJSON writes the aggregated cost summary plus the raw ledger.
func WriteCostsJSON(path string, summary agents.Summary, records []agents.TokenRecord) error {
	return writeJSON(path, map[string]interface{}{
		"summary": summary,
		"records": records,
	})
}

// WritePartialsJSON writes the per-PDF partial extractions as one JSON list.
func WritePartialsJSON(path string, partials []*domain.PartialExtraction) error {
	return writeJSON(path, partials)
}

// WriteGoldenRecordsJSON writes the merged Golden Record results, including
// per-group merge errors.
func WriteGoldenRecordsJSON(path string, results []*domain.MergeRecordResult) error {
	return writeJSON(path, results)
}

func groupRecordsByFile(records []agents.TokenRecord) map[string][]agents.TokenRecord {
	byFile := make(map[string][]agents.TokenRecord)
	for _, r := range records {
		byFile[r.FileName] = append(byFile[r.FileName], r)
	}
	return byFile
}

func productNameOf(p *domain.PartialExtraction) string {
	if p.ExtractionResult == nil {
		return ""
	}
	return p.ExtractionResult.Identity.ProductName
}

func casNumbersOf(p *domain.PartialExtraction) string {
	if p.ExtractionResult == nil || p.ExtractionResult.Chemical.CASNumbers == nil {
		return ""
	}
	if v := p.ExtractionResult.Chemical.CASNumbers.Value; v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

func writeJSON(path string, v interface{}) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
