package domain

import "context"

// LLMResult is the normalised return of a single LLM provider call.
type LLMResult struct {
	Content             interface{}
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
	DurationMS          int
	Provider            string
	Model               string
}

// LLMProvider is the narrow interface both concrete adapters (Gemini,
// Anthropic) satisfy. Two adapters suffice; dispatch never needs an open
// inheritance tree.
type LLMProvider interface {
	CallLLM(ctx context.Context, req LLMRequest) (*LLMResult, error)
	Name() string
}

// LLMRequest carries the parameters of one call_llm invocation.
type LLMRequest struct {
	SystemPrompt string
	UserContent  string
	ResponseJSON bool
	FileName     string
	DocType      string
	Temperature  float64
	Model        string
}

// Parser turns raw PDF bytes into a normalised markdown representation plus
// heuristic metadata.
type Parser interface {
	Parse(ctx context.Context, pdfPath string) (*ParsedDocument, error)
}

// ParsedDocument is the output of the Parser.
type ParsedDocument struct {
	FullMarkdown string
	Pages        []ParsedPage
	DocTypeGuess string
	PageCount    int
	Brand        string
}

// ParsedPage is one page's extracted text plus any tables rendered to
// GitHub-flavoured markdown.
type ParsedPage struct {
	PageNumber int
	Text       string
	Tables     []string
}

// Classifier assigns a document type and brand to a parsed document.
type Classifier interface {
	Classify(ctx context.Context, markdown, fileName string) ClassificationResult
}

// DocTypeExtractor extracts the 33-attribute ExtractionResult for one
// document type.
type DocTypeExtractor interface {
	Extract(ctx context.Context, markdown, docType, fileName string) *PartialExtraction
}

// Auditor conditionally cross-checks an extraction against its source.
type Auditor interface {
	Audit(ctx context.Context, markdown string, partial *PartialExtraction, docType, fileName string) AuditResult
	ApplyCorrections(partial *PartialExtraction, result AuditResult) *PartialExtraction
}

// Merger combines a ProductGroup's partial extractions into one
// ExtractionResult via the Truth Hierarchy.
type Merger interface {
	Merge(group *ProductGroup) (*ExtractionResult, error)
}

// Orchestrator drives a batch of PDFs through the full pipeline.
type Orchestrator interface {
	ProcessSingle(ctx context.Context, pdfPath string) *PartialExtraction
	ProcessBatch(ctx context.Context, pdfPaths []string) []*PartialExtraction
	GroupByProduct(partials []*PartialExtraction) []*ProductGroup
	MergeToGolden(groups []*ProductGroup) []*MergeRecordResult
	RunFullPipeline(ctx context.Context, pdfPaths []string) *PipelineResult
}
