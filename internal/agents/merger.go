package agents

import (
	"fmt"
	"sort"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

// Merger combines a ProductGroup's partial extractions into a single
// ExtractionResult using the Truth Hierarchy (TDS > CoA > SDS > RPI >
// Brochure > unknown). It holds no state and makes no LLM calls.
type Merger struct{}

// NewMerger returns a ready-to-use Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Merge implements domain.Merger. A group with a single partial
// short-circuits and returns that partial's result unchanged.
func (m *Merger) Merge(group *domain.ProductGroup) (*domain.ExtractionResult, error) {
	partials := group.PartialExtractions
	if len(partials) == 0 {
		return nil, fmt.Errorf("merge: empty product group %q", group.ProductFolder)
	}
	if len(partials) == 1 {
		if partials[0].ExtractionResult == nil {
			return nil, fmt.Errorf("merge: single partial %q has no extraction result", partials[0].SourceFile)
		}
		return partials[0].ExtractionResult, nil
	}

	sorted := make([]*domain.PartialExtraction, len(partials))
	copy(sorted, partials)
	sort.SliceStable(sorted, func(i, j int) bool {
		return domain.DocTypePriority[sorted[i].DocType] > domain.DocTypePriority[sorted[j].DocType]
	})

	base := sorted[0].ExtractionResult
	if base == nil {
		return nil, fmt.Errorf("merge: highest priority partial %q has no extraction result", sorted[0].SourceFile)
	}
	merged := deepCopyResult(base)
	var mergeWarnings []string

	for _, partial := range sorted[1:] {
		if partial.ExtractionResult == nil {
			continue
		}
		mergeSections(merged, partial.ExtractionResult, partial.DocType, domain.DocTypePriority[partial.DocType], &mergeWarnings)
	}

	merged.MissingAttributes = computeMissing(partials)
	merged.ExtractionWarnings = unionWarnings(partials, mergeWarnings)

	return merged, nil
}

func deepCopyResult(r *domain.ExtractionResult) *domain.ExtractionResult {
	cp := *r
	cp.Identity.MaterialNumbers = append([]string(nil), r.Identity.MaterialNumbers...)
	cp.Chemical.ChemicalComponents = append([]string(nil), r.Chemical.ChemicalComponents...)
	cp.Chemical.ChemicalSynonyms = append([]string(nil), r.Chemical.ChemicalSynonyms...)
	cp.Application.UsageRestrictions = append([]string(nil), r.Application.UsageRestrictions...)
	cp.Application.PackagingOptions = append([]string(nil), r.Application.PackagingOptions...)
	cp.Safety.GHSStatements = append([]string(nil), r.Safety.GHSStatements...)
	cp.Safety.Certifications = append([]string(nil), r.Safety.Certifications...)
	cp.Safety.GlobalInventories = append([]string(nil), r.Safety.GlobalInventories...)
	cp.Safety.BlockedCountries = append([]string(nil), r.Safety.BlockedCountries...)
	cp.Safety.BlockedIndustries = append([]string(nil), r.Safety.BlockedIndustries...)
	cp.MissingAttributes = append([]string(nil), r.MissingAttributes...)
	cp.ExtractionWarnings = append([]string(nil), r.ExtractionWarnings...)
	return &cp
}

// mergeSections applies the merge rules of one lower-priority partial's
// seven sections onto the accumulating merged record.
func mergeSections(merged *domain.ExtractionResult, source *domain.ExtractionResult, sourceType string, sourcePriority int, warnings *[]string) {
	mergeUnionList(&merged.Identity.MaterialNumbers, source.Identity.MaterialNumbers)
	mergeUnionList(&merged.Chemical.ChemicalSynonyms, source.Chemical.ChemicalSynonyms)
	mergeUnionList(&merged.Safety.Certifications, source.Safety.Certifications)
	mergeUnionList(&merged.Safety.GlobalInventories, source.Safety.GlobalInventories)
	mergeUnionList(&merged.Safety.GHSStatements, source.Safety.GHSStatements)
	mergeUnionList(&merged.Safety.BlockedCountries, source.Safety.BlockedCountries)
	mergeUnionList(&merged.Safety.BlockedIndustries, source.Safety.BlockedIndustries)

	mergePlainString(&merged.Identity.ProductName, source.Identity.ProductName)
	mergePlainString(&merged.Identity.ProductLine, source.Identity.ProductLine)
	mergePlainString(&merged.Identity.WackerSKU, source.Identity.WackerSKU)
	mergePlainString(&merged.Identity.ProductURL, source.Identity.ProductURL)
	mergePlainString(&merged.DocumentInfo.Language, source.DocumentInfo.Language)
	mergePlainString(&merged.DocumentInfo.Manufacturer, source.DocumentInfo.Manufacturer)
	mergePlainString(&merged.DocumentInfo.Brand, source.DocumentInfo.Brand)
	mergePlainString(&merged.DocumentInfo.RevisionDate, source.DocumentInfo.RevisionDate)
	mergePlainString(&merged.Application.MainApplication, source.Application.MainApplication)
	mergePlainString(&merged.Compliance.SalesAdvisory, source.Compliance.SalesAdvisory)

	mergePlainStringList(&merged.Chemical.ChemicalComponents, source.Chemical.ChemicalComponents)
	mergePlainStringList(&merged.Application.UsageRestrictions, source.Application.UsageRestrictions)
	mergePlainStringList(&merged.Application.PackagingOptions, source.Application.PackagingOptions)

	mergeFact(&merged.Identity.Grade, source.Identity.Grade, "identity.grade", sourceType, sourcePriority, warnings)
	mergeFact(&merged.Chemical.Purity, source.Chemical.Purity, "chemical.purity", sourceType, sourcePriority, warnings)
	mergeFact(&merged.Physical.PhysicalForm, source.Physical.PhysicalForm, "physical.physical_form", sourceType, sourcePriority, warnings)
	mergeFact(&merged.Physical.Density, source.Physical.Density, "physical.density", sourceType, sourcePriority, warnings)
	mergeFact(&merged.Physical.FlashPoint, source.Physical.FlashPoint, "physical.flash_point", sourceType, sourcePriority, warnings)
	mergeFact(&merged.Physical.TemperatureRange, source.Physical.TemperatureRange, "physical.temperature_range", sourceType, sourcePriority, warnings)
	mergeFact(&merged.Physical.ShelfLife, source.Physical.ShelfLife, "physical.shelf_life", sourceType, sourcePriority, warnings)
	mergeFact(&merged.Physical.CureSystem, source.Physical.CureSystem, "physical.cure_system", sourceType, sourcePriority, warnings)
	mergeFact(&merged.Safety.UNNumber, source.Safety.UNNumber, "safety.un_number", sourceType, sourcePriority, warnings)
	mergeFact(&merged.Chemical.CASNumbers, source.Chemical.CASNumbers, "chemical.cas_numbers", sourceType, sourcePriority, warnings)

	if merged.Compliance.WIAWStatus == nil && source.Compliance.WIAWStatus != nil {
		merged.Compliance.WIAWStatus = source.Compliance.WIAWStatus
	}
}

func mergeUnionList(target *[]string, source []string) {
	if len(source) == 0 {
		return
	}
	if *target == nil {
		*target = append([]string(nil), source...)
		return
	}
	seen := make(map[string]bool, len(*target))
	for _, v := range *target {
		seen[v] = true
	}
	for _, v := range source {
		if !seen[v] {
			*target = append(*target, v)
			seen[v] = true
		}
	}
}

func mergePlainString(target *string, source string) {
	if *target == "" && source != "" {
		*target = source
	}
}

func mergePlainStringList(target *[]string, source []string) {
	if len(*target) == 0 && len(source) > 0 {
		*target = append([]string(nil), source...)
	}
}

// mergeFact implements the single-Fact / cas_numbers merge rule: fill if
// the target is nil; otherwise keep the higher-priority value and record a
// conflict warning when both sides disagree.
func mergeFact(target **domain.Fact, source *domain.Fact, path, sourceType string, sourcePriority int, warnings *[]string) {
	if source == nil {
		return
	}
	if *target == nil {
		*target = source
		return
	}
	tVal := fmt.Sprintf("%v", (*target).Value)
	sVal := fmt.Sprintf("%v", source.Value)
	if (*target).Value != nil && source.Value != nil && tVal != sVal {
		*warnings = append(*warnings, fmt.Sprintf(
			"Conflict in %s: keeping '%s' (higher priority), discarding '%s' from %s",
			path, tVal, sVal, sourceType,
		))
	}
}

// computeMissing returns the intersection of missing_fields across all
// partials: an attribute is missing in the Golden Record only if every
// source partial failed to populate it.
func computeMissing(partials []*domain.PartialExtraction) []string {
	if len(partials) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, p := range partials {
		for _, field := range p.MissingFields {
			counts[field]++
		}
	}
	n := len(partials)
	out := make([]string, 0, len(counts))
	for field, c := range counts {
		if c == n {
			out = append(out, field)
		}
	}
	sort.Strings(out)
	return out
}

// unionWarnings returns the union of every partial's warnings plus any
// merge-generated conflict warnings, sorted for determinism.
func unionWarnings(partials []*domain.PartialExtraction, mergeWarnings []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range partials {
		for _, w := range p.Warnings {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	for _, w := range mergeWarnings {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
