package commands

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	ui "github.com/tbeh-star/solvate-ai/internal/cliui"
	"github.com/tbeh-star/solvate-ai/internal/domain"
	"github.com/tbeh-star/solvate-ai/internal/export"
	"github.com/tbeh-star/solvate-ai/internal/pdf"
)

var (
	batchInputDir         string
	batchLimit            int
	batchBrand            string
	batchDocType          string
	batchNoCascade        bool
	batchCascadeThreshold int
	batchDryRun           bool
	batchDelaySeconds     float64
)

var batchExtractCmd = &cobra.Command{
	Use:   "batch-extract",
	Short: "Extract every PDF under a directory and export per-file results",
	Long: `Discover PDFs laid out as <input-dir>/<BRAND>/<PRODUCT>/<FILE>.pdf, run each
through the parse/classify/extract/audit pipeline, and write a summary CSV,
full JSON results, and a cost ledger CSV to the output directory.`,
	RunE: runBatchExtract,
}

func init() {
	batchExtractCmd.Flags().StringVar(&batchInputDir, "input-dir", "", "root directory to discover PDFs under (required)")
	batchExtractCmd.Flags().IntVar(&batchLimit, "limit", 0, "process at most N PDFs")
	batchExtractCmd.Flags().StringVar(&batchBrand, "brand", "", "process only this brand's PDFs")
	batchExtractCmd.Flags().StringVar(&batchDocType, "doc-type", "", "process only files named for this doc type (TDS, SDS, RPI, CoA, Brochure)")
	batchExtractCmd.Flags().BoolVar(&batchNoCascade, "no-cascade", false, "disable the cheap-first extraction cascade")
	batchExtractCmd.Flags().IntVar(&batchCascadeThreshold, "cascade-threshold", 0, "missing-attribute count that triggers the fallback extractor")
	batchExtractCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "list discovered PDFs without processing them")
	batchExtractCmd.Flags().Float64Var(&batchDelaySeconds, "delay", 0, "seconds to wait between PDFs (forces sequential processing)")
	_ = batchExtractCmd.MarkFlagRequired("input-dir")
	rootCmd.AddCommand(batchExtractCmd)
}

func runBatchExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)
	defer ui.Close()

	pdfs, err := discoverInput(batchInputDir, batchBrand, batchDocType, batchLimit, cfg.PDF.MaxFileSizeMB)
	if err != nil {
		return err
	}

	ui.Section("Batch Extraction")
	ui.Info("Discovered %d PDFs under %s", len(pdfs), batchInputDir)

	if batchDryRun {
		rows := make([][]string, 0, len(pdfs))
		for _, p := range pdfs {
			rows = append(rows, []string{p.Brand, p.ProductFolder, filepath.Base(p.Path)})
		}
		ui.Table([]string{"Brand", "Product", "File"}, rows)
		return nil
	}

	cascadeEnabled := cfg.Cascade.Enabled && !batchNoCascade
	threshold := cfg.Cascade.MissingThreshold
	if batchCascadeThreshold > 0 {
		threshold = batchCascadeThreshold
	}

	deps, err := buildPipeline(ctx, cfg, cascadeEnabled, threshold, func() float64 {
		return float64(time.Now().UnixNano()) / 1e9
	})
	if err != nil {
		return err
	}
	defer deps.Close()

	start := time.Now()
	partials := runBatch(ctx, deps, pdf.Paths(pdfs))
	for _, p := range partials {
		printPartialStatus(p)
	}

	successful, failed := 0, 0
	for _, p := range partials {
		if p.ExtractionResult != nil && len(p.ExtractedFields) > 0 {
			successful++
		} else {
			failed++
		}
	}

	now := time.Now()
	records := deps.tracker.ToRecordsList()
	meta := fileMetaByPath(pdfs)

	csvPath := filepath.Join(cfg.Output.Dir, export.TimestampedName("batch_results", "csv", now))
	jsonPath := filepath.Join(cfg.Output.Dir, export.TimestampedName("batch_results", "json", now))
	costsPath := filepath.Join(cfg.Output.Dir, export.TimestampedName("batch_costs", "csv", now))

	if err := export.WriteBatchResultsCSV(csvPath, partials, meta, records); err != nil {
		ui.Error("write summary CSV: %v", err)
	}
	result := &domain.PipelineResult{
		Partials: partials,
		PipelineSummary: domain.PipelineSummary{
			TotalPDFs:             len(pdfs),
			SuccessfulExtractions: successful,
			FailedExtractions:     failed,
			ElapsedSeconds:        time.Since(start).Seconds(),
		},
		CostSummary: deps.tracker.Summary(),
	}
	if err := export.WriteBatchResultsJSON(jsonPath, result, records); err != nil {
		ui.Error("write results JSON: %v", err)
	}
	if err := export.WriteCostsCSV(costsPath, records); err != nil {
		ui.Error("write costs CSV: %v", err)
	}

	ui.Newline()
	ui.Box("Cost Summary", deps.tracker.SummaryText())
	printPipelineSummary(result.PipelineSummary)
	ui.Newline()
	ui.Success("Results written to %s", cfg.Output.Dir)

	return nil
}

// runBatch dispatches the batch through the orchestrator. A non-zero --delay
// forces sequential processing with a pause between PDFs, for providers with
// tight rate limits; otherwise the orchestrator's bounded fan-out applies.
func runBatch(ctx context.Context, deps *pipelineDeps, paths []string) []*domain.PartialExtraction {
	if batchDelaySeconds <= 0 {
		return deps.orch.ProcessBatch(ctx, paths)
	}

	bar := ui.NewProgressBar(int64(len(paths)), "extracting")
	defer bar.Finish()

	partials := make([]*domain.PartialExtraction, 0, len(paths))
	for i, path := range paths {
		if i > 0 {
			select {
			case <-ctx.Done():
				return partials
			case <-time.After(time.Duration(batchDelaySeconds * float64(time.Second))):
			}
		}
		partials = append(partials, deps.orch.ProcessSingle(ctx, path))
		bar.Set(int64(i + 1))
	}
	return partials
}
