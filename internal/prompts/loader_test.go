package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePromptDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range registryFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("prompt: "+name), 0o644))
	}
	return dir
}

func TestLoadRegistry(t *testing.T) {
	dir := writePromptDir(t)

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)

	text, err := reg.Get("classifier.txt")
	require.NoError(t, err)
	assert.Equal(t, "prompt: classifier.txt", text)

	_, err = reg.Get("nonexistent.txt")
	require.Error(t, err)
}

func TestLoadRegistryFailsFastOnMissingTemplate(t *testing.T) {
	dir := writePromptDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "auditor.txt")))

	_, err := LoadRegistry(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auditor.txt")
}
