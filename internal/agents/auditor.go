package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tbeh-star/solvate-ai/internal/domain"
	"github.com/tbeh-star/solvate-ai/internal/observability"
)

const maxAuditorSourceChars = 8000

// criticalFieldsByDocType names the attributes whose absence most strongly
// warrants an audit pass for each document type.
var criticalFieldsByDocType = map[string]map[string]bool{
	domain.DocTypeSDS: {"cas_numbers": true, "ghs_statements": true, "un_number": true, "flash_point": true},
	domain.DocTypeRPI: {"cas_numbers": true, "global_inventories": true, "certifications": true},
	domain.DocTypeTDS: {"density": true, "grade": true, "physical_form": true},
	domain.DocTypeCoA: {"cas_numbers": true, "purity": true},
}

var (
	casNumberPattern = regexp.MustCompile(`^\d{2,7}-\d{2}-\d$`)
	unNumberPattern  = regexp.MustCompile(`^(UN\s?)?\d{4}$`)
	ghsStatementPattern = regexp.MustCompile(`^[HPE]\d{3}`)
)

// ShouldAudit decides whether a partial extraction warrants an Auditor pass,
// returning the reasons that triggered it.
func ShouldAudit(partial *domain.PartialExtraction, docType string) (bool, []string) {
	if partial.ExtractionResult == nil || isEmptyExtraction(partial.ExtractionResult) {
		return false, nil
	}

	var reasons []string

	lowConf := countLowConfidence(partial.ExtractionResult)
	if lowConf >= 3 {
		reasons = append(reasons, fmt.Sprintf("%d low-confidence fields", lowConf))
	}

	critical := criticalFieldsByDocType[docType]
	if len(critical) > 0 {
		missingSet := make(map[string]bool, len(partial.MissingFields))
		for _, m := range partial.MissingFields {
			missingSet[m] = true
		}
		var missingCritical []string
		for field := range critical {
			if missingSet[field] {
				missingCritical = append(missingCritical, field)
			}
		}
		if len(missingCritical) > 0 {
			reasons = append(reasons, fmt.Sprintf("missing critical fields: %s", strings.Join(missingCritical, ", ")))
		}
	}

	if len(partial.Warnings) >= 3 {
		reasons = append(reasons, fmt.Sprintf("%d extraction warnings", len(partial.Warnings)))
	}

	if hallucinationReasons := checkHallucinationIndicators(partial.ExtractionResult); len(hallucinationReasons) > 0 {
		reasons = append(reasons, hallucinationReasons...)
	}

	return len(reasons) > 0, reasons
}

func isEmptyExtraction(r *domain.ExtractionResult) bool {
	return r.DocumentInfo == domain.DocumentInfo{} &&
		r.Identity.ProductName == "" && r.Identity.Grade == nil &&
		r.Chemical.CASNumbers == nil && len(r.Chemical.ChemicalComponents) == 0
}

func countLowConfidence(r *domain.ExtractionResult) int {
	facts := []*domain.Fact{
		r.Identity.Grade, r.Chemical.CASNumbers, r.Chemical.Purity,
		r.Physical.PhysicalForm, r.Physical.Density, r.Physical.FlashPoint,
		r.Physical.TemperatureRange, r.Physical.ShelfLife, r.Physical.CureSystem,
		r.Safety.UNNumber,
	}
	count := 0
	for _, f := range facts {
		if f != nil && f.Confidence == domain.ConfidenceLow {
			count++
		}
	}
	return count
}

// checkHallucinationIndicators applies cheap regex sanity checks against
// values an LLM commonly fabricates in a plausible-looking but wrong shape.
// This is a heuristic trigger only — the Auditor LLM call remains the sole
// arbiter of whether a value is actually wrong.
func checkHallucinationIndicators(r *domain.ExtractionResult) []string {
	var reasons []string

	if r.Chemical.CASNumbers != nil && r.Chemical.CASNumbers.Value != nil {
		raw := fmt.Sprintf("%v", r.Chemical.CASNumbers.Value)
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !casNumberPattern.MatchString(part) {
				reasons = append(reasons, fmt.Sprintf("suspicious CAS number format: %q", part))
				break
			}
		}
	}

	if r.Safety.UNNumber != nil && r.Safety.UNNumber.Value != nil {
		raw := strings.TrimSpace(fmt.Sprintf("%v", r.Safety.UNNumber.Value))
		if !unNumberPattern.MatchString(raw) {
			reasons = append(reasons, fmt.Sprintf("suspicious UN number format: %q", raw))
		}
	}

	for i, stmt := range r.Safety.GHSStatements {
		if i >= 5 {
			break
		}
		if !ghsStatementPattern.MatchString(strings.TrimSpace(stmt)) {
			reasons = append(reasons, fmt.Sprintf("suspicious GHS statement format: %q", stmt))
			break
		}
	}

	return reasons
}

// Auditor cross-checks a triggered extraction against its source markdown
// via a single LLM call, proposing field-level corrections.
type Auditor struct {
	systemPrompt string
	provider     domain.LLMProvider
	model        string
	costTracker  *CostTracker
	logger       *observability.Logger
}

// NewAuditor builds an Auditor bound to one LLM provider.
func NewAuditor(systemPrompt string, provider domain.LLMProvider, model string, costTracker *CostTracker, logger *observability.Logger) *Auditor {
	return &Auditor{
		systemPrompt: systemPrompt,
		provider:     provider,
		model:        model,
		costTracker:  costTracker,
		logger:       logger,
	}
}

// Audit implements domain.Auditor. Any failure returns PassAudit=true with a
// flagged issue describing the failure — the Auditor must never block the
// pipeline.
func (a *Auditor) Audit(ctx context.Context, markdown string, partial *domain.PartialExtraction, docType, fileName string) domain.AuditResult {
	source := markdown
	if len(source) > maxAuditorSourceChars {
		source = source[:maxAuditorSourceChars] + "\n\n[... document truncated for audit ...]"
	}

	extractionJSON, err := json.Marshal(partial.ExtractionResult)
	if err != nil {
		return a.failedAudit(fmt.Sprintf("audit error: %v", err))
	}

	userContent := fmt.Sprintf(
		"Document type: %s\n\n--- Extracted Data ---\n\n%s\n\n--- Source Document ---\n\n%s",
		docType, string(extractionJSON), source,
	)

	result, err := a.provider.CallLLM(ctx, domain.LLMRequest{
		SystemPrompt: a.systemPrompt,
		UserContent:  userContent,
		ResponseJSON: true,
		FileName:     fileName,
		DocType:      docType,
		Model:        a.model,
	})
	if err != nil {
		return a.failedAudit(fmt.Sprintf("audit error: %v", err))
	}

	a.recordCost(result, fileName, docType)

	raw, ok := result.Content.(map[string]interface{})
	if !ok {
		return a.failedAudit("audit error: LLM returned non-object JSON")
	}

	return parseAuditResult(raw)
}

func (a *Auditor) failedAudit(issue string) domain.AuditResult {
	a.logger.Warn().Msg(issue)
	return domain.AuditResult{
		PassAudit:         true,
		OverallConfidence: 0.0,
		FlaggedIssues:     []string{issue},
	}
}

func (a *Auditor) recordCost(result *domain.LLMResult, fileName, docType string) {
	if a.costTracker == nil {
		return
	}
	a.costTracker.Record(TokenRecordInput{
		Provider:            result.Provider,
		Model:               result.Model,
		InputTokens:         result.InputTokens,
		OutputTokens:        result.OutputTokens,
		CacheCreationTokens: result.CacheCreationTokens,
		CacheReadTokens:     result.CacheReadTokens,
		FileName:            fileName,
		DocType:             "audit:" + docType,
		DurationMS:          result.DurationMS,
	})
}

func parseAuditResult(raw map[string]interface{}) domain.AuditResult {
	result := domain.AuditResult{PassAudit: true}

	if v, ok := raw["overall_confidence"].(float64); ok {
		result.OverallConfidence = v
	}
	if v, ok := raw["pass_audit"].(bool); ok {
		result.PassAudit = v
	}
	if list, ok := raw["flagged_issues"].([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				result.FlaggedIssues = append(result.FlaggedIssues, s)
			}
		}
	}
	if list, ok := raw["corrections"].([]interface{}); ok {
		for _, item := range list {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			result.Corrections = append(result.Corrections, parseCorrection(m))
		}
	}

	return result
}

func parseCorrection(m map[string]interface{}) domain.AuditCorrection {
	var c domain.AuditCorrection
	if v, ok := m["field_name"].(string); ok {
		c.FieldName = v
	}
	c.OriginalValue = stringifyCorrectionValue(m["original_value"])
	c.CorrectedValue = stringifyCorrectionValue(m["corrected_value"])
	if v, ok := m["reason"].(string); ok {
		c.Reason = v
	}
	if v, ok := m["source_quote"].(string); ok {
		c.SourceQuote = &v
	}
	return c
}

// stringifyCorrectionValue handles the Auditor returning either a bare
// string or a dict for original_value/corrected_value.
func stringifyCorrectionValue(v interface{}) *string {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return &t
	case map[string]interface{}:
		if val, ok := t["value"]; ok && val != nil {
			s := fmt.Sprintf("%v", val)
			return &s
		}
		return nil
	default:
		s := fmt.Sprintf("%v", t)
		return &s
	}
}

// ApplyCorrections implements domain.Auditor. A correction whose
// CorrectedValue is nil is recorded as a warning rather than applied — the
// Auditor flagged a possible issue but offered no replacement value.
func (a *Auditor) ApplyCorrections(partial *domain.PartialExtraction, result domain.AuditResult) *domain.PartialExtraction {
	if partial.ExtractionResult == nil {
		return partial
	}

	applied := 0
	for _, corr := range result.Corrections {
		if corr.CorrectedValue == nil {
			partial.Warnings = append(partial.Warnings, fmt.Sprintf("Audit: %s may be incorrect (reason: %s)", corr.FieldName, corr.Reason))
			continue
		}
		if applyFieldCorrection(partial.ExtractionResult, corr.FieldName, *corr.CorrectedValue) {
			applied++
		}
	}

	if applied > 0 {
		partial.Warnings = append(partial.Warnings, fmt.Sprintf("Audit: %d corrections applied", applied))
	}

	partial.AuditResult = &result
	return partial
}

// applyFieldCorrection writes correctedValue into the named
// "section.field" path of r, downgrading a Fact's confidence to medium when
// the field is Fact-shaped. It reports whether the correction was applied:
// false for an unknown path and for a Fact-shaped field whose Fact is nil.
func applyFieldCorrection(r *domain.ExtractionResult, fieldName, correctedValue string) bool {
	switch fieldName {
	case "identity.grade":
		return setFact(&r.Identity.Grade, correctedValue)
	case "chemical.cas_numbers":
		return setFact(&r.Chemical.CASNumbers, correctedValue)
	case "chemical.purity":
		return setFact(&r.Chemical.Purity, correctedValue)
	case "physical.physical_form":
		return setFact(&r.Physical.PhysicalForm, correctedValue)
	case "physical.density":
		return setFact(&r.Physical.Density, correctedValue)
	case "physical.flash_point":
		return setFact(&r.Physical.FlashPoint, correctedValue)
	case "physical.temperature_range":
		return setFact(&r.Physical.TemperatureRange, correctedValue)
	case "physical.shelf_life":
		return setFact(&r.Physical.ShelfLife, correctedValue)
	case "physical.cure_system":
		return setFact(&r.Physical.CureSystem, correctedValue)
	case "safety.un_number":
		return setFact(&r.Safety.UNNumber, correctedValue)
	case "identity.product_name":
		r.Identity.ProductName = correctedValue
		return true
	case "identity.product_line":
		r.Identity.ProductLine = correctedValue
		return true
	case "identity.wacker_sku":
		r.Identity.WackerSKU = correctedValue
		return true
	case "identity.product_url":
		r.Identity.ProductURL = correctedValue
		return true
	case "document_info.language":
		r.DocumentInfo.Language = correctedValue
		return true
	case "document_info.manufacturer":
		r.DocumentInfo.Manufacturer = correctedValue
		return true
	case "document_info.brand":
		r.DocumentInfo.Brand = correctedValue
		return true
	case "document_info.revision_date":
		r.DocumentInfo.RevisionDate = correctedValue
		return true
	case "application.main_application":
		r.Application.MainApplication = correctedValue
		return true
	case "compliance.sales_advisory":
		r.Compliance.SalesAdvisory = correctedValue
		return true
	case "compliance.wiaw_status":
		r.Compliance.WIAWStatus = &correctedValue
		return true
	default:
		return false
	}
}

// setFact replaces an existing Fact's value, downgrading its confidence to
// medium. A nil Fact means the field was never populated; a correction can
// only amend an existing value, so it is dropped rather than fabricating a
// Fact with no provenance.
func setFact(f **domain.Fact, correctedValue string) bool {
	if *f == nil {
		return false
	}
	(*f).Value = correctedValue
	(*f).Confidence = domain.ConfidenceMedium
	return true
}
