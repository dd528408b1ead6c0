package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tbeh-star/solvate-ai/internal/agents"
	"github.com/tbeh-star/solvate-ai/internal/cache"
	ui "github.com/tbeh-star/solvate-ai/internal/cliui"
	"github.com/tbeh-star/solvate-ai/internal/config"
	"github.com/tbeh-star/solvate-ai/internal/domain"
	"github.com/tbeh-star/solvate-ai/internal/export"
	"github.com/tbeh-star/solvate-ai/internal/llm"
	"github.com/tbeh-star/solvate-ai/internal/observability"
	"github.com/tbeh-star/solvate-ai/internal/orchestrator"
	"github.com/tbeh-star/solvate-ai/internal/pdf"
	"github.com/tbeh-star/solvate-ai/internal/prompts"
)

// maxBatchFiles is the ceiling on a single invocation's discovery result
// when --limit is unset. Exceeding it is a configuration error, not a silent
// truncation: operators must pass an explicit --limit to process more.
const maxBatchFiles = 20

// pipelineDeps holds everything one command invocation needs: the assembled
// orchestrator, its cost tracker, and the loaded configuration.
type pipelineDeps struct {
	cfg         *config.Config
	logger      *observability.Logger
	registry    *prompts.Registry
	tracker     *agents.CostTracker
	orch        *orchestrator.Orchestrator
	cacheClient cache.Client

	mu        sync.Mutex
	providers map[string]domain.LLMProvider
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, domain.ConfigError("load configuration", err)
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) *observability.Logger {
	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "golden-record-pipeline",
	})
}

// providerForModel returns the lazily-constructed, cached provider adapter
// for a model ID: claude-* models route to Anthropic, everything else to
// Gemini. Clients are created once per invocation and reused.
func (d *pipelineDeps) providerForModel(ctx context.Context, model string) (domain.LLMProvider, error) {
	name := "google"
	if strings.HasPrefix(model, "claude") {
		name = "anthropic"
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.providers[name]; ok {
		return p, nil
	}

	var provider domain.LLMProvider
	var err error
	switch name {
	case "anthropic":
		provider = llm.NewAnthropicProvider(d.cfg.LLM.AnthropicAPIKey, d.cfg.LLM.UseVertex, d.cfg.LLM.MaxRetries)
	default:
		provider, err = llm.NewGeminiProvider(ctx, d.cfg.LLM.GoogleAPIKey, d.cfg.LLM.UseVertex,
			d.cfg.LLM.VertexProject, d.cfg.LLM.VertexRegion, d.cfg.LLM.MaxRetries)
		if err != nil {
			return nil, err
		}
	}
	d.providers[name] = provider
	return provider, nil
}

// buildPipeline assembles the full orchestrator from configuration:
// prompt registry, provider adapters, classifier, extractor factory
// (optionally cascading), auditor, merger, and cache.
func buildPipeline(ctx context.Context, cfg *config.Config, cascadeEnabled bool, cascadeThreshold int, nowSeconds func() float64) (*pipelineDeps, error) {
	logger := buildLogger(cfg)

	registry, err := prompts.LoadRegistry(cfg.Prompts.Dir)
	if err != nil {
		return nil, domain.ConfigError("load prompt templates", err)
	}

	deps := &pipelineDeps{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		tracker:   agents.NewCostTracker(nowSeconds),
		providers: make(map[string]domain.LLMProvider),
	}

	primaryModel := cfg.LLM.Model
	if cascadeEnabled {
		primaryModel = cfg.Cascade.CheapModel
	}
	primary, err := deps.providerForModel(ctx, primaryModel)
	if err != nil {
		return nil, domain.ConfigError("create primary LLM provider", err)
	}

	var fallback domain.LLMProvider
	if cascadeEnabled {
		fallback, err = deps.providerForModel(ctx, cfg.Cascade.ExpensiveModel)
		if err != nil {
			return nil, domain.ConfigError("create fallback LLM provider", err)
		}
	}

	classifierPrompt, err := registry.Get("classifier.txt")
	if err != nil {
		return nil, domain.ConfigError("classifier prompt", err)
	}
	auditorPrompt, err := registry.Get("auditor.txt")
	if err != nil {
		return nil, domain.ConfigError("auditor prompt", err)
	}

	classifier := agents.NewClassifier(primary, primaryModel, classifierPrompt, deps.tracker, logger)
	auditor := agents.NewAuditor(auditorPrompt, primary, primaryModel, deps.tracker, logger)
	merger := agents.NewMerger()

	extractorFactory := func(docType string) domain.DocTypeExtractor {
		ecfg := agents.GetExtractorConfig(docType)
		body, perr := registry.Get(ecfg.PromptFile)
		if perr != nil {
			// Registry loading is fail-fast at startup, so every registered
			// prompt file is present; GetExtractorConfig only returns
			// registered entries.
			body = ""
		}
		primaryEx := agents.NewExtractor(ecfg.AgentName, ecfg.DocType, body, primary, primaryModel, deps.tracker, logger)
		if !cascadeEnabled {
			return primaryEx
		}
		fallbackEx := agents.NewExtractor(ecfg.AgentName+"_fallback", ecfg.DocType, body, fallback, cfg.Cascade.ExpensiveModel, deps.tracker, logger)
		return agents.NewCascadeExtractor(primaryEx, fallbackEx, cascadeThreshold, deps.tracker, logger)
	}

	var cacheClient cache.Client
	switch cfg.Cache.Driver {
	case "redis":
		rc, cerr := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Addr,
			DB:       cfg.Cache.DB,
			PoolSize: cfg.Cache.PoolSize,
		})
		if cerr != nil {
			logger.Warn().Err(cerr).Msg("redis unavailable, running without extraction cache")
		} else {
			cacheClient = rc
		}
	case "memory":
		cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}
	deps.cacheClient = cacheClient

	deps.orch = orchestrator.New(orchestrator.Config{
		Parser:           pdf.NewParser(),
		Classifier:       classifier,
		ExtractorFactory: extractorFactory,
		Auditor:          auditor,
		Merger:           merger,
		CostTracker:      deps.tracker,
		Concurrency:      cfg.Pipeline.Concurrency,
		Logger:           logger,
		Cache:            cacheClient,
		CacheTTL:         cfg.Cache.TTL,
	})

	return deps, nil
}

func (d *pipelineDeps) Close() {
	if d.cacheClient != nil {
		_ = d.cacheClient.Close()
	}
}

// discoverInput runs PDF discovery with the shared flag conventions and
// enforces the unlimited-batch ceiling.
func discoverInput(inputDir, brand, docType string, limit, maxSizeMB int) ([]pdf.DiscoveredPDF, error) {
	pdfs, warnings, err := pdf.Discover(inputDir, pdf.DiscoverOptions{
		Brand:       brand,
		DocTypeHint: docType,
		MaxSizeMB:   maxSizeMB,
		Limit:       limit,
	})
	for _, w := range warnings {
		ui.Warning("%s", w)
	}
	if err != nil {
		return nil, err
	}
	if limit == 0 && len(pdfs) > maxBatchFiles {
		return nil, domain.ConfigError(fmt.Sprintf(
			"%d PDFs discovered, exceeding the %d-file batch ceiling; pass --limit to process more",
			len(pdfs), maxBatchFiles), nil)
	}
	return pdfs, nil
}

// fileMetaByPath indexes the discovery result for the export writers.
func fileMetaByPath(pdfs []pdf.DiscoveredPDF) map[string]export.FileMeta {
	meta := make(map[string]export.FileMeta, len(pdfs))
	for _, p := range pdfs {
		meta[p.Path] = export.FileMeta{Brand: p.Brand, ProductFolder: p.ProductFolder}
	}
	return meta
}

// printPartialStatus prints the per-PDF progress line the CLI contract
// requires.
func printPartialStatus(partial *domain.PartialExtraction) {
	ok := partial.ExtractionResult != nil && len(partial.ExtractedFields) > 0
	if ok {
		ui.Success("%s [%s] %d/%d attributes", partial.SourceFile, partial.DocType,
			len(partial.ExtractedFields), len(domain.AllAttributeNames))
		return
	}
	reason := "no attributes extracted"
	if len(partial.Warnings) > 0 {
		reason = partial.Warnings[0]
	}
	ui.Error("%s [%s] failed: %s", partial.SourceFile, partial.DocType, reason)
}

// printPipelineSummary prints the final pipeline summary block.
func printPipelineSummary(s domain.PipelineSummary) {
	ui.Section("Pipeline Summary")
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Total PDFs", fmt.Sprintf("%d", s.TotalPDFs)},
		{"Successful extractions", fmt.Sprintf("%d", s.SuccessfulExtractions)},
		{"Failed extractions", fmt.Sprintf("%d", s.FailedExtractions)},
		{"Product groups", fmt.Sprintf("%d", s.ProductGroups)},
		{"Golden records", fmt.Sprintf("%d", s.GoldenRecords)},
		{"Elapsed", fmt.Sprintf("%.1fs", s.ElapsedSeconds)},
	})
}
