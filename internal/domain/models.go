// Package domain holds the data model shared across the extraction pipeline:
// Facts, the 33-attribute ExtractionResult schema, per-PDF and per-product
// aggregates, and the persisted GoldenRecord.
package domain

import "time"

// Confidence levels a Fact can carry.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Document types recognised by the classifier and extractor pool.
const (
	DocTypeTDS      = "TDS"
	DocTypeSDS      = "SDS"
	DocTypeRPI      = "RPI"
	DocTypeCoA      = "CoA"
	DocTypeBrochure = "Brochure"
	DocTypeUnknown  = "unknown"
)

// DocTypePriority is the Truth Hierarchy used by the Merger to resolve
// conflicting values across partial extractions of the same product.
var DocTypePriority = map[string]int{
	DocTypeTDS:      5,
	DocTypeCoA:      4,
	DocTypeSDS:      3,
	DocTypeRPI:      2,
	DocTypeBrochure: 1,
	DocTypeUnknown:  0,
}

// WIAW compliance status values.
const (
	WIAWGreenLight = "GREEN LIGHT"
	WIAWAttention  = "ATTENTION"
	WIAWRedFlag    = "RED FLAG"
)

// Region values a GoldenRecord can be assigned.
const (
	RegionGlobal = "GLOBAL"
	RegionEU     = "EU"
	RegionUS     = "US"
	RegionJP     = "JP"
	RegionCN     = "CN"
	RegionKR     = "KR"
)

// UnionFields are merged by set-union across contributing partials rather
// than by Truth Hierarchy override.
var UnionFields = map[string]bool{
	"certifications":      true,
	"global_inventories":  true,
	"ghs_statements":      true,
	"blocked_countries":   true,
	"blocked_industries":  true,
	"chemical_synonyms":   true,
	"material_numbers":    true,
	"extraction_warnings": true,
}

// AllAttributeNames is the fixed set of 33 ExtractionResult attribute names.
var AllAttributeNames = []string{
	"product_name", "product_line", "wacker_sku", "material_numbers",
	"product_url", "grade",
	"cas_numbers", "chemical_components", "chemical_synonyms", "purity",
	"physical_form", "density", "flash_point", "temperature_range",
	"shelf_life", "cure_system",
	"main_application", "usage_restrictions", "packaging_options",
	"ghs_statements", "un_number", "certifications", "global_inventories",
	"blocked_countries", "blocked_industries",
	"wiaw_status", "sales_advisory",
	"document_type", "language", "manufacturer", "brand", "revision_date",
	"page_count",
}

// Fact is a single extracted value carrying provenance.
type Fact struct {
	Value           interface{} `json:"value"`
	Unit            *string     `json:"unit,omitempty"`
	SourceSection   string      `json:"source_section"`
	RawString       string      `json:"raw_string"`
	Confidence      string      `json:"confidence"`
	IsSpecification bool        `json:"is_specification"`
	TestMethod      *string     `json:"test_method,omitempty"`
}

// DocumentInfo is the document_info section of ExtractionResult.
type DocumentInfo struct {
	DocumentType string `json:"document_type"`
	Language     string `json:"language,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Brand        string `json:"brand,omitempty"`
	RevisionDate string `json:"revision_date,omitempty"`
	PageCount    int    `json:"page_count,omitempty"`
}

// Identity is the identity section of ExtractionResult.
type Identity struct {
	ProductName     string   `json:"product_name,omitempty"`
	ProductLine     string   `json:"product_line,omitempty"`
	WackerSKU       string   `json:"wacker_sku,omitempty"`
	MaterialNumbers []string `json:"material_numbers,omitempty"`
	ProductURL      string   `json:"product_url,omitempty"`
	Grade           *Fact    `json:"grade,omitempty"`
}

// Chemical is the chemical section of ExtractionResult.
type Chemical struct {
	CASNumbers         *Fact    `json:"cas_numbers"`
	ChemicalComponents []string `json:"chemical_components,omitempty"`
	ChemicalSynonyms   []string `json:"chemical_synonyms,omitempty"`
	Purity             *Fact    `json:"purity,omitempty"`
}

// Physical is the physical section of ExtractionResult.
type Physical struct {
	PhysicalForm     *Fact `json:"physical_form,omitempty"`
	Density          *Fact `json:"density,omitempty"`
	FlashPoint       *Fact `json:"flash_point,omitempty"`
	TemperatureRange *Fact `json:"temperature_range,omitempty"`
	ShelfLife        *Fact `json:"shelf_life,omitempty"`
	CureSystem       *Fact `json:"cure_system,omitempty"`
}

// Application is the application section of ExtractionResult.
type Application struct {
	MainApplication   string   `json:"main_application,omitempty"`
	UsageRestrictions []string `json:"usage_restrictions,omitempty"`
	PackagingOptions  []string `json:"packaging_options,omitempty"`
}

// Safety is the safety section of ExtractionResult.
type Safety struct {
	GHSStatements     []string `json:"ghs_statements,omitempty"`
	UNNumber          *Fact    `json:"un_number,omitempty"`
	Certifications    []string `json:"certifications,omitempty"`
	GlobalInventories []string `json:"global_inventories,omitempty"`
	BlockedCountries  []string `json:"blocked_countries,omitempty"`
	BlockedIndustries []string `json:"blocked_industries,omitempty"`
}

// Compliance is the compliance section of ExtractionResult.
type Compliance struct {
	WIAWStatus    *string `json:"wiaw_status,omitempty"`
	SalesAdvisory string  `json:"sales_advisory,omitempty"`
}

// ExtractionResult is the 33-attribute canonical schema produced by an
// extractor and, after merging, persisted as a GoldenRecord.
type ExtractionResult struct {
	DocumentInfo DocumentInfo `json:"document_info"`
	Identity     Identity     `json:"identity"`
	Chemical     Chemical     `json:"chemical"`
	Physical     Physical     `json:"physical"`
	Application  Application  `json:"application"`
	Safety       Safety       `json:"safety"`
	Compliance   Compliance   `json:"compliance"`

	MissingAttributes  []string `json:"missing_attributes"`
	ExtractionWarnings []string `json:"extraction_warnings"`
}

// PartialExtraction is one PDF's output from the extractor pool.
type PartialExtraction struct {
	SourceFile       string            `json:"source_file"`
	DocType          string            `json:"doc_type"`
	ExtractionResult *ExtractionResult `json:"extraction_result"`
	ExtractedFields  []string          `json:"extracted_fields"`
	MissingFields    []string          `json:"missing_fields"`
	Warnings         []string          `json:"warnings"`
	AuditResult      *AuditResult      `json:"audit_result,omitempty"`
	CascadeTriggered bool              `json:"cascade_triggered"`
}

// ProductGroup is all PartialExtractions sharing one product folder.
type ProductGroup struct {
	ProductName        string               `json:"product_name"`
	ProductFolder      string               `json:"product_folder"`
	Brand              string               `json:"brand"`
	PartialExtractions []*PartialExtraction `json:"partial_extractions"`
}

// AuditCorrection is a single correction proposed by the Auditor.
type AuditCorrection struct {
	FieldName      string  `json:"field_name"`
	OriginalValue  *string `json:"original_value"`
	CorrectedValue *string `json:"corrected_value"`
	Reason         string  `json:"reason"`
	SourceQuote    *string `json:"source_quote"`
}

// AuditResult is the output of the conditional Auditor.
type AuditResult struct {
	Corrections       []AuditCorrection `json:"corrections"`
	OverallConfidence float64           `json:"overall_confidence"`
	FlaggedIssues     []string          `json:"flagged_issues"`
	PassAudit         bool              `json:"pass_audit"`
}

// ClassificationResult is the output of the Classifier.
type ClassificationResult struct {
	DocType     string  `json:"doc_type"`
	Brand       *string `json:"brand"`
	ProductName *string `json:"product_name"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// GoldenRecord is a persisted ExtractionResult with version/region metadata.
type GoldenRecord struct {
	ID           string            `json:"id"`
	RunID        string            `json:"run_id"`
	ProductName  string            `json:"product_name"`
	Brand        string            `json:"brand"`
	Region       string            `json:"region"`
	DocLanguage  string            `json:"doc_language"`
	RevisionDate string            `json:"revision_date"`
	DocumentType string            `json:"document_type"`
	Version      int               `json:"version"`
	IsLatest     bool              `json:"is_latest"`
	Record       *ExtractionResult `json:"golden_record"`
	SourceFiles  []string          `json:"source_files"`
	SourceCount  int               `json:"source_count"`
	MissingCount int               `json:"missing_count"`
	Completeness float64           `json:"completeness"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Completeness computes the percentage of the 33 attributes that are
// populated, derived from missingCount and never stored independently.
func Completeness(missingCount int) float64 {
	return float64(len(AllAttributeNames)-missingCount) / float64(len(AllAttributeNames)) * 100
}

// MergeRecordResult is one entry of Orchestrator.MergeToGolden's output.
type MergeRecordResult struct {
	ProductName   string            `json:"product_name"`
	ProductFolder string            `json:"product_folder"`
	Brand         string            `json:"brand"`
	GoldenRecord  *ExtractionResult `json:"golden_record"`
	SourceCount   int               `json:"source_count"`
	Error         string            `json:"error,omitempty"`
}

// PipelineSummary is the final per-batch reporting block.
type PipelineSummary struct {
	TotalPDFs             int     `json:"total_pdfs"`
	SuccessfulExtractions int     `json:"successful_extractions"`
	FailedExtractions     int     `json:"failed_extractions"`
	ProductGroups         int     `json:"product_groups"`
	GoldenRecords         int     `json:"golden_records"`
	ElapsedSeconds        float64 `json:"elapsed_seconds"`
}

// PipelineResult is the return value of Orchestrator.RunFullPipeline.
type PipelineResult struct {
	Partials        []*PartialExtraction `json:"partials"`
	ProductGroups   []*ProductGroup      `json:"product_groups"`
	GoldenRecords   []*MergeRecordResult `json:"golden_records"`
	PipelineSummary PipelineSummary      `json:"pipeline_summary"`
	CostSummary     interface{}          `json:"cost_summary"`
}

// ExtractionRun tracks the lifecycle of one batch invocation.
type ExtractionRun struct {
	ID                 string                 `json:"id"`
	StartedAt          time.Time              `json:"started_at"`
	FinishedAt         *time.Time             `json:"finished_at"`
	PDFCount           int                    `json:"pdf_count"`
	GoldenRecordsCount int                    `json:"golden_records_count"`
	TotalCost          float64                `json:"total_cost"`
	Status             string                 `json:"status"`
	ErrorMessage       *string                `json:"error_message"`
	Metadata           map[string]interface{} `json:"metadata"`
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
