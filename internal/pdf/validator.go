package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

// Validator checks PDF input files before they reach the Parser.
type Validator struct {
	maxSizeMB int
}

// NewValidator creates a Validator enforcing the given max file size, in
// megabytes.
func NewValidator(maxSizeMB int) *Validator {
	return &Validator{maxSizeMB: maxSizeMB}
}

// ValidatePDFPath validates that a file path is valid, points to an
// existing, readable PDF, and does not exceed the configured size limit.
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.InputError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.InputError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.InputError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.InputError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return domain.InputError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	maxBytes := int64(v.maxSizeMB) * 1024 * 1024
	if v.maxSizeMB > 0 && info.Size() > maxBytes {
		return domain.InputError(fmt.Sprintf("file exceeds max size of %d MB: %s", v.maxSizeMB, path), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.InputError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}
