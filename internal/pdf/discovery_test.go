package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePDF(t *testing.T, root string, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644))
	return path
}

func TestDiscoverLayoutConvention(t *testing.T) {
	root := t.TempDir()
	writePDF(t, root, "ELASTOSIL®", "RT-601", "rt601_tds.pdf")
	writePDF(t, root, "ELASTOSIL®", "RT-601", "rt601_sds.pdf")
	writePDF(t, root, "SILRES", "BS-290", "bs290_tds.pdf")

	pdfs, warnings, err := Discover(root, DiscoverOptions{MaxSizeMB: 20})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, pdfs, 3)

	// Sorted by path; ® stripped from the brand component.
	assert.Equal(t, "ELASTOSIL", pdfs[0].Brand)
	assert.Equal(t, "RT-601", pdfs[0].ProductFolder)
	assert.Equal(t, "SILRES", pdfs[2].Brand)
	assert.Equal(t, "BS-290", pdfs[2].ProductFolder)
}

func TestDiscoverBrandFilter(t *testing.T) {
	root := t.TempDir()
	writePDF(t, root, "ELASTOSIL®", "RT-601", "a.pdf")
	writePDF(t, root, "SILRES", "BS-290", "b.pdf")

	pdfs, _, err := Discover(root, DiscoverOptions{Brand: "elastosil", MaxSizeMB: 20})
	require.NoError(t, err)
	require.Len(t, pdfs, 1)
	assert.Equal(t, "ELASTOSIL", pdfs[0].Brand)
}

func TestDiscoverDocTypeHintFilter(t *testing.T) {
	root := t.TempDir()
	writePDF(t, root, "ELASTOSIL", "RT-601", "rt601_tds.pdf")
	writePDF(t, root, "ELASTOSIL", "RT-601", "rt601_sds.pdf")
	writePDF(t, root, "ELASTOSIL", "RT-601", "rt601_coa.pdf")

	pdfs, _, err := Discover(root, DiscoverOptions{DocTypeHint: "SDS", MaxSizeMB: 20})
	require.NoError(t, err)
	require.Len(t, pdfs, 1)
	assert.Contains(t, pdfs[0].Path, "sds")
}

func TestDiscoverSkipsOversizedWithWarning(t *testing.T) {
	root := t.TempDir()
	small := writePDF(t, root, "ELASTOSIL", "RT-601", "small.pdf")
	big := filepath.Join(root, "ELASTOSIL", "RT-601", "big.pdf")
	require.NoError(t, os.WriteFile(big, make([]byte, 2*1024*1024), 0o644))

	pdfs, warnings, err := Discover(root, DiscoverOptions{MaxSizeMB: 1})
	require.NoError(t, err)
	require.Len(t, pdfs, 1)
	assert.Equal(t, small, pdfs[0].Path)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "exceeds max size")
}

func TestDiscoverLimit(t *testing.T) {
	root := t.TempDir()
	writePDF(t, root, "B", "P1", "a.pdf")
	writePDF(t, root, "B", "P1", "b.pdf")
	writePDF(t, root, "B", "P2", "c.pdf")

	pdfs, _, err := Discover(root, DiscoverOptions{Limit: 2, MaxSizeMB: 20})
	require.NoError(t, err)
	assert.Len(t, pdfs, 2)
}

func TestDiscoverErrors(t *testing.T) {
	_, _, err := Discover(filepath.Join(t.TempDir(), "missing"), DiscoverOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	empty := t.TempDir()
	_, _, err = Discover(empty, DiscoverOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PDF files")
}

func TestStripBrandGlyphs(t *testing.T) {
	assert.Equal(t, "ELASTOSIL", StripBrandGlyphs("ELASTOSIL®"))
	assert.Equal(t, "SILRES", StripBrandGlyphs(" SILRES™ "))
	assert.Equal(t, "WACKER", StripBrandGlyphs("WACKER"))
}
