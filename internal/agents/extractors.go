package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tbeh-star/solvate-ai/internal/domain"
	"github.com/tbeh-star/solvate-ai/internal/observability"
)

// responseSchemaHint is appended to every extractor's system prompt so the
// LLM always sees the exact ExtractionResult shape it must emit.
const responseSchemaHint = `
Respond with JSON matching exactly this shape (omit a field only if the document truly has no value for it):
{
  "document_info": {"document_type": "TDS|SDS|RPI|CoA|Brochure", "language": "", "manufacturer": "", "brand": "", "revision_date": "", "page_count": 0},
  "identity": {"product_name": "", "product_line": "", "wacker_sku": "", "material_numbers": [], "product_url": "", "grade": {"value": "", "source_section": "", "raw_string": "", "confidence": "high|medium|low", "is_specification": false}},
  "chemical": {"cas_numbers": {"value": "", "source_section": "", "raw_string": "", "confidence": "high|medium|low", "is_specification": false}, "chemical_components": [], "chemical_synonyms": [], "purity": {"...": "same Fact shape"}},
  "physical": {"physical_form": {"...": "Fact"}, "density": {"...": "Fact"}, "flash_point": {"...": "Fact"}, "temperature_range": {"...": "Fact"}, "shelf_life": {"...": "Fact"}, "cure_system": {"...": "Fact"}},
  "application": {"main_application": "", "usage_restrictions": [], "packaging_options": []},
  "safety": {"ghs_statements": [], "un_number": {"...": "Fact"}, "certifications": [], "global_inventories": [], "blocked_countries": [], "blocked_industries": []},
  "compliance": {"wiaw_status": "GREEN LIGHT|ATTENTION|RED FLAG|null", "sales_advisory": ""}
}`

// Extractor runs one doc-type-specific extraction prompt over a parsed
// document's markdown and produces a PartialExtraction.
type Extractor struct {
	agentName    string
	docType      string
	systemPrompt string
	provider     domain.LLMProvider
	model        string
	costTracker  *CostTracker
	logger       *observability.Logger
}

// NewExtractor builds an Extractor for one document type. promptBody is the
// doc-type-specific prompt text loaded from the prompts directory; the
// shared response schema hint is appended automatically.
func NewExtractor(agentName, docType, promptBody string, provider domain.LLMProvider, model string, costTracker *CostTracker, logger *observability.Logger) *Extractor {
	return &Extractor{
		agentName:    agentName,
		docType:      docType,
		systemPrompt: promptBody + responseSchemaHint,
		provider:     provider,
		model:        model,
		costTracker:  costTracker,
		logger:       logger,
	}
}

// Extract implements domain.DocTypeExtractor. Any failure — LLM error, bad
// JSON, schema mismatch — yields a PartialExtraction with an empty
// ExtractionResult, every attribute marked missing, and a warning, rather
// than propagating the error: one bad document must never abort a batch.
func (e *Extractor) Extract(ctx context.Context, markdown, docType, fileName string) *domain.PartialExtraction {
	partial, _ := e.extractWithRecord(ctx, markdown, docType, fileName)
	return partial
}

// extractWithRecord is Extract's full implementation, additionally returning
// the TokenRecord billed for this call (nil on early failure or when no
// CostTracker is configured) so a CascadeExtractor can retroactively flip its
// cascade_triggered flag once the winning side is known.
func (e *Extractor) extractWithRecord(ctx context.Context, markdown, docType, fileName string) (*domain.PartialExtraction, *TokenRecord) {
	userContent := fmt.Sprintf("Extract all chemical product data from this %s document.\n\n---\n\n%s", docType, markdown)

	result, err := e.provider.CallLLM(ctx, domain.LLMRequest{
		SystemPrompt: e.systemPrompt,
		UserContent:  userContent,
		ResponseJSON: true,
		FileName:     fileName,
		DocType:      docType,
		Model:        e.model,
	})
	if err != nil {
		return e.failedPartial(fileName, docType, fmt.Sprintf("extraction error: %v", err)), nil
	}

	rec := e.recordCost(result, fileName, docType)

	raw, ok := result.Content.(map[string]interface{})
	if !ok {
		return e.failedPartial(fileName, docType, "extraction error: LLM returned non-object JSON"), rec
	}

	sanitized := SanitizeExtractionJSON(raw)

	buf, err := json.Marshal(sanitized)
	if err != nil {
		return e.failedPartial(fileName, docType, fmt.Sprintf("extraction error: %v", err)), rec
	}

	var extraction domain.ExtractionResult
	if err := json.Unmarshal(buf, &extraction); err != nil {
		return e.failedPartial(fileName, docType, fmt.Sprintf("extraction error: %v", err)), rec
	}

	missing := missingAttributes(&extraction)
	extracted := make([]string, 0, len(domain.AllAttributeNames)-len(missing))
	missingSet := make(map[string]bool, len(missing))
	for _, m := range missing {
		missingSet[m] = true
	}
	for _, name := range domain.AllAttributeNames {
		if !missingSet[name] {
			extracted = append(extracted, name)
		}
	}

	extraction.MissingAttributes = missing

	e.logger.Info().
		Str("file", fileName).
		Str("doc_type", docType).
		Int("extracted", len(extracted)).
		Int("missing", len(missing)).
		Msg("extraction complete")

	return &domain.PartialExtraction{
		SourceFile:       fileName,
		DocType:          docType,
		ExtractionResult: &extraction,
		ExtractedFields:  extracted,
		MissingFields:    missing,
		Warnings:         extraction.ExtractionWarnings,
	}, rec
}

func (e *Extractor) failedPartial(fileName, docType, warning string) *domain.PartialExtraction {
	e.logger.Warn().Str("file", fileName).Str("doc_type", docType).Msg(warning)
	missing := append([]string(nil), domain.AllAttributeNames...)
	return &domain.PartialExtraction{
		SourceFile:       fileName,
		DocType:          docType,
		ExtractionResult: &domain.ExtractionResult{},
		ExtractedFields:  nil,
		MissingFields:    missing,
		Warnings:         []string{warning},
	}
}

func (e *Extractor) recordCost(result *domain.LLMResult, fileName, docType string) *TokenRecord {
	if e.costTracker == nil {
		return nil
	}
	return e.costTracker.Record(TokenRecordInput{
		Provider:            result.Provider,
		Model:               result.Model,
		InputTokens:         result.InputTokens,
		OutputTokens:        result.OutputTokens,
		CacheCreationTokens: result.CacheCreationTokens,
		CacheReadTokens:     result.CacheReadTokens,
		FileName:            fileName,
		DocType:             docType,
		DurationMS:          result.DurationMS,
	})
}

// missingAttributes walks the 33 fixed attribute names and reports which
// ones carry no value in the given ExtractionResult.
func missingAttributes(r *domain.ExtractionResult) []string {
	present := map[string]bool{
		"product_name":         r.Identity.ProductName != "",
		"product_line":         r.Identity.ProductLine != "",
		"wacker_sku":           r.Identity.WackerSKU != "",
		"material_numbers":     len(r.Identity.MaterialNumbers) > 0,
		"product_url":          r.Identity.ProductURL != "",
		"grade":                r.Identity.Grade != nil && r.Identity.Grade.Value != nil,
		"cas_numbers":          r.Chemical.CASNumbers != nil && r.Chemical.CASNumbers.Value != nil,
		"chemical_components":  len(r.Chemical.ChemicalComponents) > 0,
		"chemical_synonyms":    len(r.Chemical.ChemicalSynonyms) > 0,
		"purity":               r.Chemical.Purity != nil && r.Chemical.Purity.Value != nil,
		"physical_form":        r.Physical.PhysicalForm != nil && r.Physical.PhysicalForm.Value != nil,
		"density":              r.Physical.Density != nil && r.Physical.Density.Value != nil,
		"flash_point":          r.Physical.FlashPoint != nil && r.Physical.FlashPoint.Value != nil,
		"temperature_range":    r.Physical.TemperatureRange != nil && r.Physical.TemperatureRange.Value != nil,
		"shelf_life":           r.Physical.ShelfLife != nil && r.Physical.ShelfLife.Value != nil,
		"cure_system":          r.Physical.CureSystem != nil && r.Physical.CureSystem.Value != nil,
		"main_application":     r.Application.MainApplication != "",
		"usage_restrictions":   len(r.Application.UsageRestrictions) > 0,
		"packaging_options":    len(r.Application.PackagingOptions) > 0,
		"ghs_statements":       len(r.Safety.GHSStatements) > 0,
		"un_number":            r.Safety.UNNumber != nil && r.Safety.UNNumber.Value != nil,
		"certifications":       len(r.Safety.Certifications) > 0,
		"global_inventories":   len(r.Safety.GlobalInventories) > 0,
		"blocked_countries":    len(r.Safety.BlockedCountries) > 0,
		"blocked_industries":   len(r.Safety.BlockedIndustries) > 0,
		"wiaw_status":          r.Compliance.WIAWStatus != nil && *r.Compliance.WIAWStatus != "",
		"sales_advisory":       r.Compliance.SalesAdvisory != "",
		"document_type":        r.DocumentInfo.DocumentType != "",
		"language":             r.DocumentInfo.Language != "",
		"manufacturer":         r.DocumentInfo.Manufacturer != "",
		"brand":                r.DocumentInfo.Brand != "",
		"revision_date":        r.DocumentInfo.RevisionDate != "",
		"page_count":           r.DocumentInfo.PageCount > 0,
	}

	missing := make([]string, 0, len(domain.AllAttributeNames))
	for _, name := range domain.AllAttributeNames {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// CascadeExtractor runs a cheap primary extractor first and, only when its
// missing_attributes count exceeds the configured threshold, runs a
// higher-quality fallback extractor over the same input. Both calls are
// billed to the Cost Tracker regardless of which result wins; the winning
// side keeps CascadeTriggered=false, the losing side is tagged true.
type CascadeExtractor struct {
	primary     *Extractor
	fallback    *Extractor
	threshold   int
	costTracker *CostTracker
	logger      *observability.Logger
}

// NewCascadeExtractor builds a CascadeExtractor. threshold is the
// missing_attributes count that the primary must strictly exceed to trigger
// the fallback call.
func NewCascadeExtractor(primary, fallback *Extractor, threshold int, costTracker *CostTracker, logger *observability.Logger) *CascadeExtractor {
	return &CascadeExtractor{primary: primary, fallback: fallback, threshold: threshold, costTracker: costTracker, logger: logger}
}

// Extract implements domain.DocTypeExtractor.
func (c *CascadeExtractor) Extract(ctx context.Context, markdown, docType, fileName string) *domain.PartialExtraction {
	primaryResult, primaryRec := c.primary.extractWithRecord(ctx, markdown, docType, fileName)

	// The fallback fires only when missing strictly exceeds the threshold.
	if len(primaryResult.MissingFields) <= c.threshold {
		return primaryResult
	}

	c.logger.Info().
		Str("file", fileName).
		Int("missing", len(primaryResult.MissingFields)).
		Int("threshold", c.threshold).
		Msg("cascade triggered, running fallback extractor")

	fallbackResult, fallbackRec := c.fallback.extractWithRecord(ctx, markdown, docType, fileName)

	// Ties go to the primary: the fallback must report strictly fewer
	// missing attributes to win.
	if len(fallbackResult.MissingFields) < len(primaryResult.MissingFields) {
		fallbackResult.CascadeTriggered = false
		primaryResult.CascadeTriggered = true
		c.mark(primaryRec, true)
		c.mark(fallbackRec, false)
		return fallbackResult
	}

	primaryResult.CascadeTriggered = false
	fallbackResult.CascadeTriggered = true
	c.mark(primaryRec, false)
	c.mark(fallbackRec, true)
	return primaryResult
}

func (c *CascadeExtractor) mark(rec *TokenRecord, triggered bool) {
	if c.costTracker != nil {
		c.costTracker.MarkCascadeTriggered(rec, triggered)
	}
}

// ExtractorConfig names the prompt file backing one doc type's Extractor.
type ExtractorConfig struct {
	AgentName  string
	DocType    string
	PromptFile string
}

// ExtractorRegistry maps a classified doc_type to its prompt configuration.
// Extractor instances are built lazily by the orchestrator from these
// configs, one per doc type actually encountered in a batch.
var ExtractorRegistry = map[string]ExtractorConfig{
	domain.DocTypeTDS:      {AgentName: "tds_extractor", DocType: domain.DocTypeTDS, PromptFile: "extractor_tds.txt"},
	domain.DocTypeSDS:      {AgentName: "sds_extractor", DocType: domain.DocTypeSDS, PromptFile: "extractor_sds.txt"},
	domain.DocTypeRPI:      {AgentName: "rpi_extractor", DocType: domain.DocTypeRPI, PromptFile: "extractor_rpi.txt"},
	domain.DocTypeCoA:      {AgentName: "coa_extractor", DocType: domain.DocTypeCoA, PromptFile: "extractor_coa.txt"},
	domain.DocTypeBrochure: {AgentName: "brochure_extractor", DocType: domain.DocTypeBrochure, PromptFile: "extractor_brochure.txt"},
}

// GetExtractorConfig returns the registry entry for docType, falling back to
// the TDS extractor (the most generic prompt) for any unrecognised type.
func GetExtractorConfig(docType string) ExtractorConfig {
	if cfg, ok := ExtractorRegistry[docType]; ok {
		return cfg
	}
	return ExtractorRegistry[domain.DocTypeTDS]
}
