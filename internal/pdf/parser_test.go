package pdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

func TestGuessDocType(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{"SDS keywords", "SAFETY DATA SHEET\naccording to Regulation (EC)", domain.DocTypeSDS},
		{"TDS keywords", "Technical Data Sheet\nTypical Properties", domain.DocTypeTDS},
		{"RPI keywords", "Regulatory Product Information for customers", domain.DocTypeRPI},
		{"CoA keywords", "Certificate of Analysis\nBatch 4711", domain.DocTypeCoA},
		{
			// SDS markers must win even when TDS-like wording is also present.
			"SDS outranks TDS",
			"Hazard Statement overview\nTechnical Data Sheet tables follow",
			domain.DocTypeSDS,
		},
		{"long text defaults to brochure", strings.Repeat("marketing copy ", 30), domain.DocTypeBrochure},
		{"short text is unknown", "stub", domain.DocTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guessDocType(tt.markdown))
		})
	}
}

func TestGuessDocTypeScansOnlyDocumentOpening(t *testing.T) {
	// Keywords beyond the scan window must not influence the guess.
	md := strings.Repeat("filler text ", 300) + "\nSafety Data Sheet"
	require.Greater(t, len(md), docTypeGuessScanChars)
	assert.Equal(t, domain.DocTypeBrochure, guessDocType(md))
}

func TestGuessBrand(t *testing.T) {
	md := "ELASTOSIL RT 601\nBrand: ELASTOSIL\nsome more text"
	assert.Equal(t, "ELASTOSIL", guessBrand(md))

	assert.Equal(t, "", guessBrand("no brand line here"))

	md = "Manufactured by: Wacker Chemie AG"
	assert.Equal(t, "Wacker Chemie AG", guessBrand(md))
}

func TestExtractTables(t *testing.T) {
	text := strings.Join([]string{
		"Typical Properties",
		"Property        Value      Unit",
		"Density         1.02       g/cm³",
		"Viscosity       3500       mPa·s",
		"",
		"prose continues here",
	}, "\n")

	tables := extractTables(text)
	require.Len(t, tables, 1)
	assert.Contains(t, tables[0], "| Property | Value | Unit |")
	assert.Contains(t, tables[0], "| Density | 1.02 | g/cm³ |")
	assert.Contains(t, tables[0], "| --- | --- | --- |")
}

func TestExtractTablesPadsShortRows(t *testing.T) {
	text := "Property        Value      Unit\nDensity         1.02"
	tables := extractTables(text)
	require.Len(t, tables, 1)
	assert.Contains(t, tables[0], "| Density | 1.02 |  |")
}

func TestExtractTablesIgnoresProse(t *testing.T) {
	text := "This is a paragraph of ordinary prose.\nIt has no columns at all.\n"
	assert.Empty(t, extractTables(text))
}

func TestValidatePDFPath(t *testing.T) {
	v := NewValidator(20)

	err := v.ValidatePDFPath("")
	require.Error(t, err)

	err = v.ValidatePDFPath("/nonexistent/file.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	dir := t.TempDir()
	err = v.ValidatePDFPath(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}
