package llm

import "fmt"

// providerError wraps a transport-level failure with a retryability verdict,
// satisfying retryableError for retryWithBackoff.
type providerError struct {
	provider  string
	message   string
	retryable bool
	err       error
}

func (e *providerError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.provider, e.message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.provider, e.message)
}

func (e *providerError) Unwrap() error { return e.err }

func (e *providerError) Retryable() bool { return e.retryable }

func newProviderError(provider, message string, retryable bool, err error) *providerError {
	return &providerError{provider: provider, message: message, retryable: retryable, err: err}
}

// DefaultModels are the fallback model IDs used when a provider is
// configured without an explicit model override.
var DefaultModels = map[string]string{
	"anthropic": "claude-sonnet-4@20250514",
	"google":    "gemini-2.5-flash",
	"openai":    "gpt-4.1",
}
