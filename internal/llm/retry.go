// Package llm implements the two concrete domain.LLMProvider adapters
// (Gemini and Anthropic) that back the Classifier, Extractor pool, and
// Auditor agents.
package llm

import (
	"context"
	"math"
	"time"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second

	// callTimeout bounds a single provider call, retries included. A timed-out
	// call surfaces as a provider error; the pipeline records it and continues.
	callTimeout = 120 * time.Second
)

// retryConfig holds retry configuration for one provider's calls.
type retryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{MaxRetries: maxRetries, InitialBackoff: initialBackoff, MaxBackoff: maxBackoff}
}

// retryConfigWithMax returns defaultRetryConfig with MaxRetries overridden by
// n, used to honour config.LLMConfig.MaxRetries. n <= 0 keeps the default.
func retryConfigWithMax(n int) retryConfig {
	cfg := defaultRetryConfig()
	if n > 0 {
		cfg.MaxRetries = n
	}
	return cfg
}

func calculateBackoff(attempt int, cfg retryConfig) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}

// retryableError is implemented by errors that report whether they represent
// a transient provider failure (network error, 5xx, timeout, rate limit)
// worth retrying.
type retryableError interface {
	Retryable() bool
}

// retryWithBackoff retries fn up to cfg.MaxRetries times, backing off
// exponentially between attempts. fn's error is only retried when it
// implements retryableError and reports true; any other error returns
// immediately.
func retryWithBackoff(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		re, ok := err.(retryableError)
		if !ok || !re.Retryable() {
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		backoff := calculateBackoff(attempt, cfg)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}
