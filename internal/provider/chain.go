package provider

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/promptcache/internal/metrics"
)

// Chain tries providers in order until one succeeds and reports which
// provider served the request. Construction appends a CannedProvider when
// the caller did not supply one, so a chain completion cannot fail.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewChain builds a resilient provider chain.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}

	hasCanned := false
	for _, p := range providers {
		if _, ok := p.(*CannedProvider); ok {
			hasCanned = true
			break
		}
	}
	if !hasCanned {
		providers = append(providers, NewCannedProvider())
	}

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	logger.Info("completion chain assembled", "providers", names)

	return &Chain{
		providers: providers,
		logger:    logger,
		tracer:    otel.Tracer("promptcache/provider"),
	}
}

// Providers returns the names of the chain members in order.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Complete walks the chain until a provider succeeds and returns the text
// together with the serving provider's name. Failures are logged and the
// next provider takes over; once the context is canceled remote providers
// are skipped and the canned terminal answers. Complete never fails.
func (c *Chain) Complete(ctx context.Context, prompt, systemPrompt string) (text, servedBy string) {
	ctx, span := c.tracer.Start(ctx, "provider.Chain.Complete")
	defer span.End()

	last := len(c.providers) - 1
	for i, p := range c.providers {
		// Remote providers cannot make progress on a dead context;
		// jump straight to the terminal canned provider.
		if ctx.Err() != nil && i < last {
			continue
		}

		start := time.Now()
		result, err := p.Complete(ctx, prompt, systemPrompt)
		if err != nil {
			metrics.ProviderAttempts.WithLabelValues(p.Name(), "error").Inc()
			metrics.ProviderFallbacks.WithLabelValues(p.Name()).Inc()
			c.logger.Warn("provider failed, falling back",
				"provider", p.Name(), "error", err)
			continue
		}

		metrics.ProviderAttempts.WithLabelValues(p.Name(), "success").Inc()
		metrics.CompletionLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("served_by", p.Name()))
		return result, p.Name()
	}

	// Unreachable: the canned terminal never errors. Kept as a safety net
	// for a caller-built chain whose canned provider was replaced.
	answer, _ := NewCannedProvider().Complete(ctx, prompt, systemPrompt)
	return answer, cannedName
}
