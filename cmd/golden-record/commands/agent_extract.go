package commands

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/tbeh-star/solvate-ai/internal/agents"
	ui "github.com/tbeh-star/solvate-ai/internal/cliui"
	"github.com/tbeh-star/solvate-ai/internal/config"
	"github.com/tbeh-star/solvate-ai/internal/domain"
	"github.com/tbeh-star/solvate-ai/internal/export"
	"github.com/tbeh-star/solvate-ai/internal/pdf"
	"github.com/tbeh-star/solvate-ai/internal/storage"
)

var (
	agentInputDir string
	agentLimit    int
	agentBrand    string
	agentNoMerge  bool
	agentDryRun   bool
)

var agentExtractCmd = &cobra.Command{
	Use:   "agent-extract",
	Short: "Run the multi-agent pipeline and persist Golden Records",
	Long: `Discover PDFs, run the full multi-agent pipeline (parse, classify, extract,
audit, group, merge), and persist versioned Golden Records per (product,
region). Writes partials JSON, golden records JSON, a summary CSV, and a
costs JSON to the output directory.`,
	RunE: runAgentExtract,
}

func init() {
	agentExtractCmd.Flags().StringVar(&agentInputDir, "input-dir", "", "root directory to discover PDFs under (required)")
	agentExtractCmd.Flags().IntVar(&agentLimit, "limit", 0, "process at most N PDFs")
	agentExtractCmd.Flags().StringVar(&agentBrand, "brand", "", "process only this brand's PDFs")
	agentExtractCmd.Flags().BoolVar(&agentNoMerge, "no-merge", false, "skip the merge stage, emitting partials only")
	agentExtractCmd.Flags().BoolVar(&agentDryRun, "dry-run", false, "list discovered PDFs without processing them")
	_ = agentExtractCmd.MarkFlagRequired("input-dir")
	rootCmd.AddCommand(agentExtractCmd)
}

func runAgentExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)
	defer ui.Close()

	pdfs, err := discoverInput(agentInputDir, agentBrand, "", agentLimit, cfg.PDF.MaxFileSizeMB)
	if err != nil {
		return err
	}

	ui.Section("Multi-Agent Extraction")
	ui.Info("Discovered %d PDFs under %s", len(pdfs), agentInputDir)

	if agentDryRun {
		rows := make([][]string, 0, len(pdfs))
		for _, p := range pdfs {
			rows = append(rows, []string{p.Brand, p.ProductFolder, filepath.Base(p.Path)})
		}
		ui.Table([]string{"Brand", "Product", "File"}, rows)
		return nil
	}

	deps, err := buildPipeline(ctx, cfg, cfg.Cascade.Enabled, cfg.Cascade.MissingThreshold, func() float64 {
		return float64(time.Now().UnixNano()) / 1e9
	})
	if err != nil {
		return err
	}
	defer deps.Close()

	spinner := ui.NewSpinner(fmt.Sprintf("Processing %d PDFs...", len(pdfs)))
	spinner.Start()

	var result *domain.PipelineResult
	if agentNoMerge {
		start := time.Now()
		partials := deps.orch.ProcessBatch(ctx, pdf.Paths(pdfs))
		successful, failed := 0, 0
		for _, p := range partials {
			if p.ExtractionResult != nil && len(p.ExtractedFields) > 0 {
				successful++
			} else {
				failed++
			}
		}
		result = &domain.PipelineResult{
			Partials: partials,
			PipelineSummary: domain.PipelineSummary{
				TotalPDFs:             len(pdfs),
				SuccessfulExtractions: successful,
				FailedExtractions:     failed,
				ElapsedSeconds:        time.Since(start).Seconds(),
			},
			CostSummary: deps.tracker.Summary(),
		}
	} else {
		result = deps.orch.RunFullPipeline(ctx, pdf.Paths(pdfs))
	}
	spinner.Stop()

	for _, p := range result.Partials {
		printPartialStatus(p)
	}

	if cfg.Database.DSN != "" && !agentNoMerge {
		persistResults(ctx, cfg, result, deps)
	}

	now := time.Now()
	records := deps.tracker.ToRecordsList()
	meta := fileMetaByPath(pdfs)

	partialsPath := filepath.Join(cfg.Output.Dir, export.TimestampedName("agent_partials", "json", now))
	goldenPath := filepath.Join(cfg.Output.Dir, export.TimestampedName("agent_golden_records", "json", now))
	summaryPath := filepath.Join(cfg.Output.Dir, export.TimestampedName("agent_summary", "csv", now))
	costsPath := filepath.Join(cfg.Output.Dir, export.TimestampedName("agent_costs", "json", now))

	if err := export.WritePartialsJSON(partialsPath, result.Partials); err != nil {
		ui.Error("write partials JSON: %v", err)
	}
	if !agentNoMerge {
		if err := export.WriteGoldenRecordsJSON(goldenPath, result.GoldenRecords); err != nil {
			ui.Error("write golden records JSON: %v", err)
		}
	}
	if err := export.WriteBatchResultsCSV(summaryPath, result.Partials, meta, records); err != nil {
		ui.Error("write summary CSV: %v", err)
	}
	if err := export.WriteCostsJSON(costsPath, deps.tracker.Summary(), records); err != nil {
		ui.Error("write costs JSON: %v", err)
	}

	ui.Newline()
	ui.Box("Cost Summary", deps.tracker.SummaryText())
	printPipelineSummary(result.PipelineSummary)
	ui.Newline()
	ui.Success("Results written to %s", cfg.Output.Dir)

	return nil
}

// persistResults writes the run's Golden Records to Postgres with region and
// version resolution. A persistence failure aborts further persistence and
// marks the run failed, but already-committed records are preserved and the
// on-disk exports still happen.
func persistResults(ctx context.Context, cfg *config.Config, result *domain.PipelineResult, deps *pipelineDeps) {
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		ui.Error("open database: %v", err)
		return
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	runRepo := storage.NewExtractionRunRepository(db)
	run := &storage.ExtractionRun{PDFCount: result.PipelineSummary.TotalPDFs}
	if err := runRepo.Create(ctx, run); err != nil {
		ui.Error("create extraction run: %v", err)
		return
	}
	logger := deps.logger.WithRun(run.ID.String())

	persister := storage.NewPersister(db)
	recordRepo := storage.NewGoldenRecordRepository(db)
	persisted := 0
	var persistErr error

	for _, g := range result.GoldenRecords {
		if g.GoldenRecord == nil {
			continue
		}
		r := g.GoldenRecord
		region := agents.ResolveRegion(r.DocumentInfo.DocumentType, r.DocumentInfo.Language, r.Safety.GlobalInventories)

		productName := g.ProductName
		if r.Identity.ProductName != "" {
			productName = r.Identity.ProductName
		}

		gr, err := persister.PersistGoldenRecord(ctx, storage.GoldenRecordInput{
			RunID:        run.ID,
			ProductName:  productName,
			Brand:        g.Brand,
			Region:       region,
			DocLanguage:  r.DocumentInfo.Language,
			RevisionDate: r.DocumentInfo.RevisionDate,
			DocumentType: r.DocumentInfo.DocumentType,
			Record:       r,
			SourceFiles:  sourceFilesOf(g, result),
			MissingCount: len(r.MissingAttributes),
		})
		if err != nil {
			persistErr = err
			logger.Error().Err(err).Str("product", productName).Msg("persist golden record failed")
			break
		}
		persisted++
		logger.Info().Str("product", productName).Str("region", region).Int("version", gr.Version).Msg("golden record persisted")
		ui.Info("Persisted %s [%s] version %d (%.1f%% complete)", productName, region, gr.Version, gr.Completeness)

		if gr.Version > 1 {
			reportVersionDiff(ctx, recordRepo, gr)
		}
	}

	summary := deps.tracker.Summary()
	if persistErr != nil {
		msg := persistErr.Error()
		if err := runRepo.Finish(ctx, run.ID, storage.RunStatusFailed, persisted, summary.TotalCostUSD, &msg); err != nil {
			ui.Error("finish extraction run: %v", err)
		}
		ui.ErrorBox("Persistence failed", fmt.Sprintf("%v\n%d records committed before the failure were preserved", persistErr, persisted))
		return
	}

	if err := runRepo.Finish(ctx, run.ID, storage.RunStatusCompleted, persisted, summary.TotalCostUSD, nil); err != nil {
		ui.Error("finish extraction run: %v", err)
	}
	ui.Success("Run %s completed: %d golden records persisted", run.ID, persisted)
}

// reportVersionDiff prints what changed against the version this record just
// obsoleted.
func reportVersionDiff(ctx context.Context, repo *storage.GoldenRecordRepository, gr *storage.GoldenRecord) {
	versions, err := repo.ListVersions(ctx, gr.ProductName, gr.Region)
	if err != nil || len(versions) < 2 {
		return
	}
	var prev *storage.GoldenRecord
	for _, v := range versions {
		if v.Version == gr.Version-1 {
			prev = v
			break
		}
	}
	if prev == nil {
		return
	}
	diff, err := repo.Diff(ctx, prev.ID, gr.ID)
	if err != nil {
		return
	}
	ui.Info("  vs version %d: %d changed, %d added, %d removed attributes",
		diff.OldVersion, len(diff.Changed), len(diff.Added), len(diff.Removed))
}

// sourceFilesOf collects the source file list of one merged group.
func sourceFilesOf(g *domain.MergeRecordResult, result *domain.PipelineResult) []string {
	for _, group := range result.ProductGroups {
		if group.ProductFolder != g.ProductFolder {
			continue
		}
		files := make([]string, 0, len(group.PartialExtractions))
		for _, p := range group.PartialExtractions {
			files = append(files, p.SourceFile)
		}
		return files
	}
	return nil
}
