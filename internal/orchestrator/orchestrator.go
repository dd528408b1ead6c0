// Package orchestrator drives a batch of PDFs through classification,
// extraction, conditional auditing, product grouping, and merging into
// Golden Records.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tbeh-star/solvate-ai/internal/agents"
	"github.com/tbeh-star/solvate-ai/internal/cache"
	"github.com/tbeh-star/solvate-ai/internal/domain"
	"github.com/tbeh-star/solvate-ai/internal/observability"
)

// defaultCacheTTL is how long a cached PartialExtraction survives before a
// re-ingested PDF with the same content hash falls through to the LLM
// pipeline again.
const defaultCacheTTL = 7 * 24 * time.Hour

// ExtractorFactory builds (or returns a cached) domain.DocTypeExtractor for
// a classified document type, constructed lazily the first time each doc
// type is actually encountered in a batch.
type ExtractorFactory func(docType string) domain.DocTypeExtractor

// Orchestrator implements domain.Orchestrator.
type Orchestrator struct {
	parser           domain.Parser
	classifier       domain.Classifier
	extractorFactory ExtractorFactory
	auditor          domain.Auditor
	merger           domain.Merger
	costTracker      *agents.CostTracker
	concurrency      int
	logger           *observability.Logger
	cache            cache.Client
	cacheTTL         time.Duration

	mu         sync.Mutex
	extractors map[string]domain.DocTypeExtractor
}

// Config carries the collaborators and tuning knobs an Orchestrator needs.
type Config struct {
	Parser           domain.Parser
	Classifier       domain.Classifier
	ExtractorFactory ExtractorFactory
	Auditor          domain.Auditor
	Merger           domain.Merger
	CostTracker      *agents.CostTracker
	Concurrency      int
	Logger           *observability.Logger

	// Cache, when non-nil, stores a completed PartialExtraction keyed by its
	// source PDF's content hash so re-ingesting unchanged bytes skips the
	// parse/classify/extract/audit pipeline entirely. Optional.
	Cache    cache.Client
	CacheTTL time.Duration
}

// New builds an Orchestrator. A Concurrency below 1 is replaced by the
// pipeline's documented default of 4 concurrent extractions.
func New(cfg Config) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Orchestrator{
		parser:           cfg.Parser,
		classifier:       cfg.Classifier,
		extractorFactory: cfg.ExtractorFactory,
		auditor:          cfg.Auditor,
		merger:           cfg.Merger,
		costTracker:      cfg.CostTracker,
		concurrency:      concurrency,
		logger:           cfg.Logger,
		cache:            cfg.Cache,
		cacheTTL:         cacheTTL,
		extractors:       make(map[string]domain.DocTypeExtractor),
	}
}

func (o *Orchestrator) extractorFor(docType string) domain.DocTypeExtractor {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.extractors[docType]; ok {
		return e
	}
	e := o.extractorFactory(docType)
	o.extractors[docType] = e
	return e
}

// ProcessSingle implements domain.Orchestrator. It never returns an error:
// every failure mode (parse, classify, extract) is captured as a
// PartialExtraction describing what went wrong, so one bad PDF never aborts
// a batch.
func (o *Orchestrator) ProcessSingle(ctx context.Context, pdfPath string) *domain.PartialExtraction {
	contentHash := o.hashFile(pdfPath)
	if contentHash != "" {
		if cached := o.loadCached(ctx, contentHash); cached != nil {
			cached.SourceFile = pdfPath
			o.logger.Info().Str("file", pdfPath).Msg("extraction cache hit")
			return cached
		}
	}

	partial := o.processSingleUncached(ctx, pdfPath)

	if contentHash != "" {
		o.storeCached(ctx, contentHash, partial)
	}
	return partial
}

// hashFile returns the hex-encoded SHA-256 of pdfPath's bytes, or "" if the
// cache is disabled or the file cannot be read (the normal parse step will
// surface the read error; this is purely a cache-key lookup).
func (o *Orchestrator) hashFile(pdfPath string) string {
	if o.cache == nil {
		return ""
	}
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (o *Orchestrator) loadCached(ctx context.Context, contentHash string) *domain.PartialExtraction {
	raw, err := o.cache.Get(ctx, cache.ExtractionCacheKey(contentHash))
	if err != nil {
		return nil
	}
	var partial domain.PartialExtraction
	if err := json.Unmarshal(raw, &partial); err != nil {
		return nil
	}
	return &partial
}

func (o *Orchestrator) storeCached(ctx context.Context, contentHash string, partial *domain.PartialExtraction) {
	raw, err := json.Marshal(partial)
	if err != nil {
		return
	}
	if err := o.cache.Set(ctx, cache.ExtractionCacheKey(contentHash), raw, o.cacheTTL); err != nil {
		o.logger.Warn().Err(err).Msg("failed to cache extraction result")
	}
}

// processSingleUncached runs the full parse/classify/extract/audit pipeline
// for one PDF, independent of any cache lookup.
func (o *Orchestrator) processSingleUncached(ctx context.Context, pdfPath string) *domain.PartialExtraction {
	parsed, err := o.parser.Parse(ctx, pdfPath)
	if err != nil {
		o.logger.Warn().Str("file", pdfPath).Err(err).Msg("PDF parse failed")
		return &domain.PartialExtraction{
			SourceFile:       pdfPath,
			DocType:          domain.DocTypeUnknown,
			ExtractionResult: &domain.ExtractionResult{},
			MissingFields:    append([]string(nil), domain.AllAttributeNames...),
			Warnings:         []string{fmt.Sprintf("PDF parse error: %v", err)},
		}
	}

	classification := o.classifier.Classify(ctx, parsed.FullMarkdown, pdfPath)

	extractor := o.extractorFor(classification.DocType)
	partial := extractor.Extract(ctx, parsed.FullMarkdown, classification.DocType, pdfPath)
	partial.SourceFile = pdfPath

	if trigger, reasons := agents.ShouldAudit(partial, classification.DocType); trigger {
		o.logger.Info().Str("file", pdfPath).Strs("reasons", reasons).Msg("audit triggered")
		result := o.auditor.Audit(ctx, parsed.FullMarkdown, partial, classification.DocType, pdfPath)
		if len(result.Corrections) > 0 {
			partial = o.auditor.ApplyCorrections(partial, result)
		} else {
			partial.AuditResult = &result
		}
	}

	o.logger.Info().Str("file", pdfPath).Str("doc_type", partial.DocType).Msg("pdf processed")
	return partial
}

// ProcessBatch implements domain.Orchestrator, running up to o.concurrency
// PDFs through ProcessSingle at once. Output order strictly matches input
// order regardless of completion order. Once ctx is cancelled no further
// PDFs are dispatched: each remaining path gets an empty PartialExtraction
// with a "not processed" warning, while in-flight PDFs run to completion.
func (o *Orchestrator) ProcessBatch(ctx context.Context, pdfPaths []string) []*domain.PartialExtraction {
	results := make([]*domain.PartialExtraction, len(pdfPaths))
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	for i, path := range pdfPaths {
		sem <- struct{}{}
		if err := ctx.Err(); err != nil {
			<-sem
			results[i] = &domain.PartialExtraction{
				SourceFile:       path,
				DocType:          domain.DocTypeUnknown,
				ExtractionResult: &domain.ExtractionResult{},
				MissingFields:    append([]string(nil), domain.AllAttributeNames...),
				Warnings:         []string{fmt.Sprintf("not processed: batch cancelled: %v", err)},
			}
			continue
		}
		wg.Add(1)
		go func(idx int, p string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = o.safeProcessSingle(ctx, p)
		}(i, path)
	}

	wg.Wait()
	return results
}

// safeProcessSingle guards against an unexpected panic in one PDF's
// pipeline run so it cannot bring down the whole batch.
func (o *Orchestrator) safeProcessSingle(ctx context.Context, pdfPath string) (partial *domain.PartialExtraction) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("file", pdfPath).Msgf("unexpected panic: %v", r)
			partial = &domain.PartialExtraction{
				SourceFile:       pdfPath,
				DocType:          domain.DocTypeUnknown,
				ExtractionResult: &domain.ExtractionResult{},
				MissingFields:    append([]string(nil), domain.AllAttributeNames...),
				Warnings:         []string{fmt.Sprintf("unexpected error: %v", r)},
			}
		}
	}()
	return o.ProcessSingle(ctx, pdfPath)
}

// GroupByProduct implements domain.Orchestrator. Partials are grouped by
// the parent directory of their source file. Within a group, the first
// partial that names a document_info.brand wins and stops the scan
// entirely; until one is found, a later partial's identity.product_name
// keeps overwriting the group's product name.
func (o *Orchestrator) GroupByProduct(partials []*domain.PartialExtraction) []*domain.ProductGroup {
	order := make([]string, 0)
	byFolder := make(map[string][]*domain.PartialExtraction)

	for _, p := range partials {
		folder := filepath.Dir(p.SourceFile)
		if _, ok := byFolder[folder]; !ok {
			order = append(order, folder)
		}
		byFolder[folder] = append(byFolder[folder], p)
	}

	groups := make([]*domain.ProductGroup, 0, len(order))
	for _, folder := range order {
		group := byFolder[folder]
		productName := filepath.Base(folder)
		brand := ""

		for _, p := range group {
			if p.ExtractionResult == nil {
				continue
			}
			if p.ExtractionResult.DocumentInfo.Brand != "" {
				brand = p.ExtractionResult.DocumentInfo.Brand
				break
			}
			if p.ExtractionResult.Identity.ProductName != "" {
				productName = p.ExtractionResult.Identity.ProductName
			}
		}

		groups = append(groups, &domain.ProductGroup{
			ProductName:        productName,
			ProductFolder:      folder,
			Brand:              brand,
			PartialExtractions: group,
		})
	}

	return groups
}

// MergeToGolden implements domain.Orchestrator. A merge failure in one
// group is recorded on that group's result and does not prevent other
// groups from producing a Golden Record.
func (o *Orchestrator) MergeToGolden(groups []*domain.ProductGroup) []*domain.MergeRecordResult {
	results := make([]*domain.MergeRecordResult, 0, len(groups))
	for _, group := range groups {
		entry := &domain.MergeRecordResult{
			ProductName:   group.ProductName,
			ProductFolder: group.ProductFolder,
			Brand:         group.Brand,
			SourceCount:   len(group.PartialExtractions),
		}
		merged, err := o.merger.Merge(group)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.GoldenRecord = merged
		}
		results = append(results, entry)
	}
	return results
}

// RunFullPipeline implements domain.Orchestrator end to end.
func (o *Orchestrator) RunFullPipeline(ctx context.Context, pdfPaths []string) *domain.PipelineResult {
	start := time.Now()

	partials := o.ProcessBatch(ctx, pdfPaths)
	groups := o.GroupByProduct(partials)
	goldenRecords := o.MergeToGolden(groups)

	successful, failed := 0, 0
	for _, p := range partials {
		if p.ExtractionResult != nil && !isEmptyResult(p.ExtractionResult) {
			successful++
		} else {
			failed++
		}
	}

	producedRecords := 0
	for _, g := range goldenRecords {
		if g.GoldenRecord != nil {
			producedRecords++
		}
	}

	var costSummary interface{}
	if o.costTracker != nil {
		costSummary = o.costTracker.Summary()
	}

	return &domain.PipelineResult{
		Partials:      partials,
		ProductGroups: groups,
		GoldenRecords: goldenRecords,
		PipelineSummary: domain.PipelineSummary{
			TotalPDFs:             len(pdfPaths),
			SuccessfulExtractions: successful,
			FailedExtractions:     failed,
			ProductGroups:         len(groups),
			GoldenRecords:         producedRecords,
			ElapsedSeconds:        time.Since(start).Seconds(),
		},
		CostSummary: costSummary,
	}
}

func isEmptyResult(r *domain.ExtractionResult) bool {
	return r.DocumentInfo == domain.DocumentInfo{} &&
		r.Identity.ProductName == "" && r.Identity.Grade == nil &&
		r.Chemical.CASNumbers == nil && len(r.Chemical.ChemicalComponents) == 0
}
