package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeh-star/solvate-ai/internal/agents"
	"github.com/tbeh-star/solvate-ai/internal/domain"
)

func samplePartials() []*domain.PartialExtraction {
	return []*domain.PartialExtraction{
		{
			SourceFile: "/data/ELASTOSIL/RT-601/tds.pdf",
			DocType:    domain.DocTypeTDS,
			ExtractionResult: &domain.ExtractionResult{
				Identity: domain.Identity{ProductName: "RT 601"},
				Chemical: domain.Chemical{
					CASNumbers: &domain.Fact{Value: "63148-62-9", SourceSection: "§3", Confidence: domain.ConfidenceHigh},
				},
			},
			ExtractedFields: []string{"product_name", "cas_numbers"},
			MissingFields:   []string{"purity"},
			Warnings:        []string{"ambiguous density unit"},
		},
		{
			SourceFile:    "/data/ELASTOSIL/RT-601/broken.pdf",
			DocType:       domain.DocTypeUnknown,
			MissingFields: append([]string(nil), domain.AllAttributeNames...),
			Warnings:      []string{"PDF parse error: bad xref"},
		},
	}
}

func sampleRecords() []agents.TokenRecord {
	return []agents.TokenRecord{
		{
			Provider: "google", Model: "gemini-2.5-flash",
			InputTokens: 1000, OutputTokens: 200, CacheReadTokens: 50,
			TotalTokens: 1250, CostUSD: 0.00027, DurationMS: 900,
			FileName: "/data/ELASTOSIL/RT-601/tds.pdf", DocType: "classification",
		},
		{
			Provider: "google", Model: "gemini-2.5-flash",
			InputTokens: 4000, OutputTokens: 800,
			TotalTokens: 4800, CostUSD: 0.00108, DurationMS: 2100,
			FileName: "/data/ELASTOSIL/RT-601/tds.pdf", DocType: "TDS",
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteBatchResultsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "batch_results.csv")
	meta := map[string]FileMeta{
		"/data/ELASTOSIL/RT-601/tds.pdf":    {Brand: "ELASTOSIL", ProductFolder: "RT-601"},
		"/data/ELASTOSIL/RT-601/broken.pdf": {Brand: "ELASTOSIL", ProductFolder: "RT-601"},
	}

	require.NoError(t, WriteBatchResultsCSV(path, samplePartials(), meta, sampleRecords()))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, summaryColumns, rows[0])

	tds := rows[1]
	assert.Equal(t, "tds.pdf", tds[0])
	assert.Equal(t, "ELASTOSIL", tds[1])
	assert.Equal(t, "RT-601", tds[2])
	assert.Equal(t, "TDS", tds[3])
	assert.Equal(t, "true", tds[4])
	assert.Equal(t, "RT 601", tds[5])
	assert.Equal(t, "63148-62-9", tds[6])
	assert.Equal(t, "1", tds[7])
	assert.Equal(t, "google", tds[8])
	// Token columns aggregate both calls billed to the file.
	assert.Equal(t, "5000", tds[10])
	assert.Equal(t, "1000", tds[11])
	assert.Equal(t, "50", tds[12])
	assert.Equal(t, "3000", tds[13])

	broken := rows[2]
	assert.Equal(t, "false", broken[4])
	assert.Contains(t, broken[14], "PDF parse error")
}

func TestWriteCostsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "costs.csv")
	require.NoError(t, WriteCostsCSV(path, sampleRecords()))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, costColumns, rows[0])
	assert.Equal(t, "gemini-2.5-flash", rows[1][2])
	assert.Equal(t, "tds.pdf", rows[1][3])
	assert.Equal(t, "1250", rows[1][9])
}

func TestWriteBatchResultsJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch_results.json")
	result := &domain.PipelineResult{
		Partials: samplePartials(),
		PipelineSummary: domain.PipelineSummary{
			TotalPDFs:             2,
			SuccessfulExtractions: 1,
			FailedExtractions:     1,
		},
	}

	require.NoError(t, WriteBatchResultsJSON(path, result, sampleRecords()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded batchResultsJSON
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.PDFs, 2)
	assert.Equal(t, "RT 601", decoded.PDFs[0].Partial.ExtractionResult.Identity.ProductName)
	assert.Len(t, decoded.PDFs[0].TokenRecords, 2)
	assert.Empty(t, decoded.PDFs[1].TokenRecords)
	assert.Equal(t, 2, decoded.PipelineSummary.TotalPDFs)
}

func TestWritePartialsAndGoldenJSON(t *testing.T) {
	dir := t.TempDir()

	partialsPath := filepath.Join(dir, "partials.json")
	require.NoError(t, WritePartialsJSON(partialsPath, samplePartials()))
	var partials []*domain.PartialExtraction
	data, err := os.ReadFile(partialsPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &partials))
	assert.Len(t, partials, 2)

	goldenPath := filepath.Join(dir, "golden.json")
	golden := []*domain.MergeRecordResult{
		{ProductName: "RT 601", GoldenRecord: samplePartials()[0].ExtractionResult, SourceCount: 2},
		{ProductName: "broken", Error: "merge: empty product group"},
	}
	require.NoError(t, WriteGoldenRecordsJSON(goldenPath, golden))
	var decoded []*domain.MergeRecordResult
	data, err = os.ReadFile(goldenPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.NotNil(t, decoded[0].GoldenRecord)
	assert.Equal(t, "merge: empty product group", decoded[1].Error)
}

func TestTimestampedName(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)
	assert.Equal(t, "batch_results_20250601_143005.csv", TimestampedName("batch_results", "csv", ts))
}
