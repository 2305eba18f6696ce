package llm

import (
	"context"
	"fmt"
)

// Waiter blocks until a request for key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// RateLimitedProvider shares one request budget per provider name across
// every caller holding the same Waiter
type RateLimitedProvider struct {
	Provider
	waiter Waiter
}

// WithRateLimit wraps p so that every Generate call waits on w first.
// A nil provider or waiter is returned unchanged.
func WithRateLimit(p Provider, w Waiter) Provider {
	if p == nil || w == nil {
		return p
	}
	return &RateLimitedProvider{Provider: p, waiter: w}
}

// Generate waits for the limiter, then calls the wrapped provider
func (r *RateLimitedProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := r.waiter.Wait(ctx, r.Name()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Provider.Generate(ctx, req)
}
