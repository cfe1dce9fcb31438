package search

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"mediatrack/searchservice/internal/domain"
)

// RetryConfig controls the backoff decorator. The aggregation core itself
// never retries: one attempt per provider per search keeps the global deadline
// honest. Retries live here, wrapped around an adapter at composition time.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// RetryWithBackoff runs fn up to cfg.MaxAttempts times with exponential
// backoff and jitter. Only transient errors are retried; a context error or a
// permanent failure returns immediately.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransientError(lastErr) || attempt == attempts {
			return lastErr
		}

		delay := baseDelay << (attempt - 1)
		if delay > maxDelay {
			delay = maxDelay
		}
		// Jitter spreads concurrent retries so they don't realign.
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
	return lastErr
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"temporarily unavailable",
		"http 429",
		"http 502",
		"http 503",
		"http 504",
		"no such host",
		"eof",
	} {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}

type retryingProvider struct {
	inner Provider
	cfg   RetryConfig
}

// WrapWithRetry decorates a provider with transient-error retries. Applied at
// composition time, so the aggregator stays retry-free.
func WrapWithRetry(inner Provider, cfg RetryConfig) Provider {
	if inner == nil {
		return nil
	}
	if cfg.MaxAttempts <= 1 {
		return inner
	}
	return &retryingProvider{inner: inner, cfg: cfg}
}

func (p *retryingProvider) Name() string {
	return p.inner.Name()
}

func (p *retryingProvider) Info() domain.ProviderInfo {
	return p.inner.Info()
}

func (p *retryingProvider) Search(ctx context.Context, query string, page int) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	err := RetryWithBackoff(ctx, p.cfg, func(ctx context.Context) error {
		items, searchErr := p.inner.Search(ctx, query, page)
		if searchErr != nil {
			return searchErr
		}
		results = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
