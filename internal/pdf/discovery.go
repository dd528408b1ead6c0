package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

// DiscoveredPDF is one PDF found under the input root, with the brand and
// product folder derived from the <root>/<BRAND>/<PRODUCT_FOLDER>/<FILE>.pdf
// layout convention.
type DiscoveredPDF struct {
	Path          string
	Brand         string
	ProductFolder string
}

// DiscoverOptions filters what Discover returns.
type DiscoverOptions struct {
	// Brand, when non-empty, keeps only PDFs whose first directory component
	// matches it (case-insensitive, ® glyphs ignored).
	Brand string
	// DocTypeHint, when non-empty, keeps only PDFs whose file name carries a
	// recognisable marker for that document type (e.g. "sds", "tds"). The
	// authoritative classification still happens in the pipeline; this is a
	// discovery-time shortcut for operators who already sorted their files.
	DocTypeHint string
	// MaxSizeMB skips files larger than this many megabytes, with a warning.
	MaxSizeMB int
	// Limit caps how many PDFs are returned after filtering; 0 means no cap.
	Limit int
}

// docTypeFileMarkers maps a doc type to the lowercase substrings its file
// name typically carries.
var docTypeFileMarkers = map[string][]string{
	domain.DocTypeTDS:      {"tds", "technical"},
	domain.DocTypeSDS:      {"sds", "msds", "safety"},
	domain.DocTypeRPI:      {"rpi", "regulatory"},
	domain.DocTypeCoA:      {"coa", "certificate"},
	domain.DocTypeBrochure: {"brochure", "flyer"},
}

// StripBrandGlyphs removes trademark glyphs from a brand directory name.
func StripBrandGlyphs(brand string) string {
	return strings.TrimSpace(strings.NewReplacer("®", "", "™", "").Replace(brand))
}

// Discover walks root for PDFs laid out as <root>/<BRAND>/<PRODUCT>/<FILE>.pdf
// and returns them sorted by path for deterministic batch order, along with
// warnings for skipped files. A missing or empty root is an input error.
func Discover(root string, opts DiscoverOptions) ([]DiscoveredPDF, []string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, domain.InputError(fmt.Sprintf("input directory does not exist: %s", root), err)
	}
	if !info.IsDir() {
		return nil, nil, domain.InputError(fmt.Sprintf("input path is not a directory: %s", root), nil)
	}

	maxBytes := int64(opts.MaxSizeMB) * 1024 * 1024
	wantBrand := strings.ToLower(StripBrandGlyphs(opts.Brand))

	var found []DiscoveredPDF
	var warnings []string

	err = filepath.Walk(root, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %s: %v", path, walkErr))
			return nil
		}
		if fi.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		brand := ""
		if len(parts) > 1 {
			brand = StripBrandGlyphs(parts[0])
		}

		if wantBrand != "" && strings.ToLower(brand) != wantBrand {
			return nil
		}
		if opts.DocTypeHint != "" && !fileNameMatchesDocType(filepath.Base(path), opts.DocTypeHint) {
			return nil
		}
		if opts.MaxSizeMB > 0 && fi.Size() > maxBytes {
			warnings = append(warnings, fmt.Sprintf("skipping %s: exceeds max size of %d MB", path, opts.MaxSizeMB))
			return nil
		}

		found = append(found, DiscoveredPDF{
			Path:          path,
			Brand:         brand,
			ProductFolder: filepath.Base(filepath.Dir(path)),
		})
		return nil
	})
	if err != nil {
		return nil, warnings, domain.InputError(fmt.Sprintf("walk input directory: %s", root), err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })

	if opts.Limit > 0 && len(found) > opts.Limit {
		found = found[:opts.Limit]
	}
	if len(found) == 0 {
		return nil, warnings, domain.InputError(fmt.Sprintf("no PDF files found under %s", root), nil)
	}

	return found, warnings, nil
}

func fileNameMatchesDocType(fileName, docType string) bool {
	markers, ok := docTypeFileMarkers[docType]
	if !ok {
		return true
	}
	lower := strings.ToLower(fileName)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Paths extracts the path list of a discovery result, in order.
func Paths(pdfs []DiscoveredPDF) []string {
	out := make([]string, len(pdfs))
	for i, p := range pdfs {
		out[i] = p.Path
	}
	return out
}
