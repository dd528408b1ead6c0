package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

func fact(value interface{}, confidence string) *domain.Fact {
	return &domain.Fact{Value: value, SourceSection: "test", Confidence: confidence}
}

func tdsPartial() *domain.PartialExtraction {
	return &domain.PartialExtraction{
		SourceFile: "/data/ELASTOSIL/RT-601/tds.pdf",
		DocType:    domain.DocTypeTDS,
		ExtractionResult: &domain.ExtractionResult{
			DocumentInfo: domain.DocumentInfo{DocumentType: domain.DocTypeTDS},
			Identity:     domain.Identity{ProductName: "RT 601"},
			Chemical:     domain.Chemical{CASNumbers: fact("63148-62-9", domain.ConfidenceHigh)},
			Physical:     domain.Physical{Density: fact("1.02 g/cm³", domain.ConfidenceHigh)},
			Safety:       domain.Safety{Certifications: []string{"ISO 9001"}},
		},
		MissingFields: []string{"purity", "un_number", "ghs_statements"},
	}
}

func sdsPartial() *domain.PartialExtraction {
	return &domain.PartialExtraction{
		SourceFile: "/data/ELASTOSIL/RT-601/sds.pdf",
		DocType:    domain.DocTypeSDS,
		ExtractionResult: &domain.ExtractionResult{
			DocumentInfo: domain.DocumentInfo{DocumentType: domain.DocTypeSDS, Language: "en"},
			Chemical:     domain.Chemical{CASNumbers: fact("63148-62-9", domain.ConfidenceHigh)},
			Physical:     domain.Physical{Density: fact("1.05 g/cm³", domain.ConfidenceMedium)},
			Safety: domain.Safety{
				GHSStatements:  []string{"H315", "H319"},
				UNNumber:       fact("UN1863", domain.ConfidenceHigh),
				Certifications: []string{"ISO 14001", "ISO 9001"},
			},
		},
		MissingFields: []string{"purity", "grade"},
	}
}

func TestMergeSinglePartialPassthrough(t *testing.T) {
	m := NewMerger()
	p := tdsPartial()
	group := &domain.ProductGroup{ProductFolder: "/data/ELASTOSIL/RT-601", PartialExtractions: []*domain.PartialExtraction{p}}

	merged, err := m.Merge(group)
	require.NoError(t, err)
	assert.Same(t, p.ExtractionResult, merged)
}

func TestMergeEmptyGroup(t *testing.T) {
	m := NewMerger()
	_, err := m.Merge(&domain.ProductGroup{ProductFolder: "/empty"})
	require.Error(t, err)
}

func TestMergeConflictKeepsHigherPriority(t *testing.T) {
	m := NewMerger()
	group := &domain.ProductGroup{
		ProductFolder:      "/data/ELASTOSIL/RT-601",
		PartialExtractions: []*domain.PartialExtraction{tdsPartial(), sdsPartial()},
	}

	merged, err := m.Merge(group)
	require.NoError(t, err)

	// TDS outranks SDS in the Truth Hierarchy.
	assert.Equal(t, "1.02 g/cm³", merged.Physical.Density.Value)
	assert.Contains(t, merged.ExtractionWarnings,
		"Conflict in physical.density: keeping '1.02 g/cm³' (higher priority), discarding '1.05 g/cm³' from SDS")
}

func TestMergeUnionFields(t *testing.T) {
	m := NewMerger()
	group := &domain.ProductGroup{
		ProductFolder:      "/data/ELASTOSIL/RT-601",
		PartialExtractions: []*domain.PartialExtraction{tdsPartial(), sdsPartial()},
	}

	merged, err := m.Merge(group)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"ISO 9001", "ISO 14001"}, merged.Safety.Certifications)
	assert.ElementsMatch(t, []string{"H315", "H319"}, merged.Safety.GHSStatements)
}

func TestMergeFillsGapsFromLowerPriority(t *testing.T) {
	m := NewMerger()
	group := &domain.ProductGroup{
		ProductFolder:      "/data/ELASTOSIL/RT-601",
		PartialExtractions: []*domain.PartialExtraction{tdsPartial(), sdsPartial()},
	}

	merged, err := m.Merge(group)
	require.NoError(t, err)

	// TDS had no UN number or language; SDS supplies both.
	require.NotNil(t, merged.Safety.UNNumber)
	assert.Equal(t, "UN1863", merged.Safety.UNNumber.Value)
	assert.Equal(t, "en", merged.DocumentInfo.Language)
}

func TestMergeMissingIsIntersection(t *testing.T) {
	m := NewMerger()
	group := &domain.ProductGroup{
		ProductFolder:      "/data/ELASTOSIL/RT-601",
		PartialExtractions: []*domain.PartialExtraction{tdsPartial(), sdsPartial()},
	}

	merged, err := m.Merge(group)
	require.NoError(t, err)

	// "purity" is missing in both partials; "un_number" and "grade" in only
	// one each.
	assert.Equal(t, []string{"purity"}, merged.MissingAttributes)
}

// Reordering the partials within a group must not change the merged result:
// the Merger sorts by priority and union fields are commutative sets.
func TestMergeOrderIndependence(t *testing.T) {
	m := NewMerger()
	forward := &domain.ProductGroup{
		ProductFolder:      "/data/ELASTOSIL/RT-601",
		PartialExtractions: []*domain.PartialExtraction{tdsPartial(), sdsPartial()},
	}
	reversed := &domain.ProductGroup{
		ProductFolder:      "/data/ELASTOSIL/RT-601",
		PartialExtractions: []*domain.PartialExtraction{sdsPartial(), tdsPartial()},
	}

	a, err := m.Merge(forward)
	require.NoError(t, err)
	b, err := m.Merge(reversed)
	require.NoError(t, err)

	assert.Equal(t, a.Physical.Density.Value, b.Physical.Density.Value)
	assert.ElementsMatch(t, a.Safety.Certifications, b.Safety.Certifications)
	assert.Equal(t, a.MissingAttributes, b.MissingAttributes)
	assert.Equal(t, a.ExtractionWarnings, b.ExtractionWarnings)
}

func TestMergeSkipsPartialsWithoutResult(t *testing.T) {
	m := NewMerger()
	failed := &domain.PartialExtraction{
		SourceFile:    "/data/ELASTOSIL/RT-601/broken.pdf",
		DocType:       domain.DocTypeCoA,
		MissingFields: append([]string(nil), domain.AllAttributeNames...),
	}
	group := &domain.ProductGroup{
		ProductFolder:      "/data/ELASTOSIL/RT-601",
		PartialExtractions: []*domain.PartialExtraction{tdsPartial(), failed},
	}

	merged, err := m.Merge(group)
	require.NoError(t, err)
	assert.Equal(t, "1.02 g/cm³", merged.Physical.Density.Value)
}
