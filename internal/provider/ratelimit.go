package provider

import (
	"context"

	"golang.org/x/time/rate"

	perrors "github.com/blueberrycongee/promptcache/pkg/errors"
)

// RateLimitedProvider wraps a Provider with a client-side token bucket so
// upstream quotas are not burned by bursts. Waiting respects the call
// context; a canceled wait surfaces as a retryable transport error, which
// lets a chain move on to the next provider.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner with a limiter of rps requests per
// second and the given burst size.
func NewRateLimitedProvider(inner Provider, rps float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Name identifies the wrapped provider.
func (r *RateLimitedProvider) Name() string {
	return r.inner.Name()
}

// Complete waits for a token, then delegates to the wrapped provider.
func (r *RateLimitedProvider) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", perrors.NewTransportError(r.inner.Name(), err)
	}
	return r.inner.Complete(ctx, prompt, systemPrompt)
}
