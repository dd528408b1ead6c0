package domain

import "fmt"

// ErrorType classifies a DomainError against the pipeline's error taxonomy.
type ErrorType string

const (
	ErrorTypeInput       ErrorType = "input"
	ErrorTypeParse       ErrorType = "parse"
	ErrorTypeProvider    ErrorType = "provider"
	ErrorTypeSchema      ErrorType = "schema"
	ErrorTypeAudit       ErrorType = "audit"
	ErrorTypeMerge       ErrorType = "merge"
	ErrorTypePersistence ErrorType = "persistence"
	ErrorTypeConfig      ErrorType = "config"
)

// DomainError represents a pipeline-specific error with context.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error.
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{Type: errType, Message: message, Err: err}
}

// InputError — size exceeded, non-PDF, zero files. Surfaced to the caller,
// never retried.
func InputError(message string, err error) *DomainError {
	return NewError(ErrorTypeInput, message, err)
}

// ParseError — corrupt PDF container. Recorded as a failed PartialExtraction;
// the batch continues.
func ParseError(message string, err error) *DomainError {
	return NewError(ErrorTypeParse, message, err)
}

// ProviderError — network, 5xx, timeout, quota. Retried up to max_retries
// within a step; if still failing, surfaced as a warning.
func ProviderError(message string, err error) *DomainError {
	return NewError(ErrorTypeProvider, message, err)
}

// SchemaError — extractor JSON invalid after sanitization.
func SchemaError(message string, err error) *DomainError {
	return NewError(ErrorTypeSchema, message, err)
}

// AuditError — swallowed by the caller; audit never blocks the pipeline.
func AuditError(message string, err error) *DomainError {
	return NewError(ErrorTypeAudit, message, err)
}

// MergeError — per-group only; other groups still produce Golden Records.
func MergeError(message string, err error) *DomainError {
	return NewError(ErrorTypeMerge, message, err)
}

// PersistenceError — aborts the run, marks status failed, preserves
// already-committed Golden Records.
func PersistenceError(message string, err error) *DomainError {
	return NewError(ErrorTypePersistence, message, err)
}

// ConfigError — missing or invalid configuration.
func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}
