package pdf

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

const brandScanChars = 5000

// docTypeKeywordOrder is consulted in order — SDS before TDS before RPI before
// CoA — since SDS documents frequently also carry technical-data-sheet-like
// tables and would otherwise misclassify.
var docTypeKeywordOrder = []struct {
	docType  string
	keywords []string
}{
	{domain.DocTypeSDS, []string{"safety data sheet", "sds", "hazard statement", "ghs classification"}},
	{domain.DocTypeTDS, []string{"technical data sheet", "tds", "typical properties", "product data sheet"}},
	{domain.DocTypeRPI, []string{"regulatory product information", "raw product information", "rpi"}},
	{domain.DocTypeCoA, []string{"certificate of analysis", "coa", "batch analysis"}},
}

var brandLinePattern = regexp.MustCompile(`(?im)^\s*(?:brand|manufactured by|manufacturer)\s*[:\-]\s*(.+)$`)

// Parser turns a PDF's text layer into normalised markdown plus heuristic
// metadata, replacing the page-image pipeline the tables-via-vision
// approach would otherwise require: the classifier and extractors work
// against text, not images.
type Parser struct{}

// NewParser returns a ready-to-use Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse implements domain.Parser.
func (p *Parser) Parse(ctx context.Context, pdfPath string) (*domain.ParsedDocument, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.ParseError(fmt.Sprintf("failed to open PDF: %s", pdfPath), err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ParseError(fmt.Sprintf("PDF has no pages: %s", pdfPath), nil)
	}

	pages := make([]domain.ParsedPage, 0, pageCount)
	var full strings.Builder

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		text, err := doc.Text(pageNum)
		if err != nil {
			return nil, domain.ParseError(fmt.Sprintf("failed to extract text from page %d of %s", pageNum+1, pdfPath), err)
		}

		tables := extractTables(text)
		pages = append(pages, domain.ParsedPage{PageNumber: pageNum + 1, Text: text, Tables: tables})

		if pageNum > 0 {
			full.WriteString("\n\n---\n")
		}
		full.WriteString(fmt.Sprintf("\n## Page %d\n\n", pageNum+1))
		full.WriteString(text)
		for _, t := range tables {
			full.WriteString("\n\n")
			full.WriteString(t)
		}
	}

	markdown := full.String()

	return &domain.ParsedDocument{
		FullMarkdown: markdown,
		Pages:        pages,
		DocTypeGuess: guessDocType(markdown),
		PageCount:    pageCount,
		Brand:        guessBrand(markdown),
	}, nil
}

const docTypeGuessScanChars = 3000

// tableRowPattern matches a line that looks like a delimiter-separated table
// row: at least two runs of non-whitespace text separated by 2+ spaces or a
// tab, which is how a PDF text layer typically renders a table once column
// positions collapse into plain text.
var tableRowPattern = regexp.MustCompile(`\S(?: {2,}|\t)\S`)

// extractTables scans a page's text for runs of consecutive table-like lines
// and renders each run as a GitHub-flavoured markdown table. Rows whose
// column counts disagree are padded/truncated to the first row's width; a
// malformed run is skipped rather than aborting the page.
func extractTables(text string) []string {
	lines := strings.Split(text, "\n")
	var tables []string
	var run []string

	flush := func() {
		if len(run) >= 2 {
			if md := renderTable(run); md != "" {
				tables = append(tables, md)
			}
		}
		run = nil
	}

	for _, line := range lines {
		if tableRowPattern.MatchString(line) {
			run = append(run, line)
		} else {
			flush()
		}
	}
	flush()

	return tables
}

func renderTable(rows []string) string {
	splitRow := func(s string) []string {
		fields := regexp.MustCompile(`\s{2,}|\t`).Split(strings.TrimSpace(s), -1)
		out := fields[:0]
		for _, f := range fields {
			if f != "" {
				out = append(out, f)
			}
		}
		return out
	}

	header := splitRow(rows[0])
	if len(header) < 2 {
		return ""
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(header, " | "))
	b.WriteString(" |\n|")
	for range header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, r := range rows[1:] {
		cells := splitRow(r)
		for len(cells) < len(header) {
			cells = append(cells, "")
		}
		if len(cells) > len(header) {
			cells = cells[:len(header)]
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}

	return b.String()
}

// guessDocType applies a cheap keyword heuristic, stored as the
// ParsedDocument's DocTypeGuess metadata. It is never the authoritative
// doc_type: that comes from the LLM Classifier, which reports "unknown"
// when classification fails. Only the first ~3000 chars are
// scanned, matching the classifier's own document-opening focus.
func guessDocType(markdown string) string {
	sample := markdown
	if len(sample) > docTypeGuessScanChars {
		sample = sample[:docTypeGuessScanChars]
	}
	lower := strings.ToLower(sample)
	for _, entry := range docTypeKeywordOrder {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.docType
			}
		}
	}
	if len(markdown) > 200 {
		return domain.DocTypeBrochure
	}
	return domain.DocTypeUnknown
}

// guessBrand scans the first brandScanChars of the document for a
// "Brand:"/"Manufactured by:"-style line.
func guessBrand(markdown string) string {
	sample := markdown
	if len(sample) > brandScanChars {
		sample = sample[:brandScanChars]
	}
	if m := brandLinePattern.FindStringSubmatch(sample); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
