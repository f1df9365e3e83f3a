package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimitedProvider struct {
	base    Provider
	limiter *rate.Limiter
}

// WithRateLimit paces outbound calls to at most rps per second with the
// given burst. A non-positive rps returns provider unchanged. Callers wait
// for a token and give up when ctx ends.
func WithRateLimit(provider Provider, rps float64, burst int) Provider {
	if rps <= 0 || provider == nil {
		return provider
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedProvider{
		base:    provider,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (p *rateLimitedProvider) Name() string {
	return p.base.Name()
}

func (p *rateLimitedProvider) Converse(ctx context.Context, req Request) (Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("outbound rate limit: %w", err)
	}
	return p.base.Converse(ctx, req)
}
