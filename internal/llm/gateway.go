package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "twin/internal/errors"
	"twin/internal/logging"
	"twin/internal/observability"
	"twin/internal/session"
	"twin/internal/tokenutil"
)

// Gateway turns persona instructions, history and a new message into a
// reply. Failures are returned as BackendFailure and never retried.
type Gateway interface {
	Complete(ctx context.Context, persona string, history []session.Turn, message string) (Result, error)
}

// GatewayConfig holds the request shaping policy.
type GatewayConfig struct {
	Window WindowConfig
	Params Params
}

// ProviderGateway implements Gateway on top of a Provider.
type ProviderGateway struct {
	provider Provider
	window   WindowConfig
	params   Params
	counter  tokenutil.Counter
	metrics  *observability.MetricsCollector
	tracer   *observability.TracerProvider
	logger   logging.Logger
}

// Option customises a ProviderGateway.
type Option func(*ProviderGateway)

// WithTokenCounter replaces the tiktoken counter used for the history cap.
func WithTokenCounter(counter tokenutil.Counter) Option {
	return func(g *ProviderGateway) {
		if counter != nil {
			g.counter = counter
		}
	}
}

// WithMetrics records request counts, latency and token usage.
func WithMetrics(metrics *observability.MetricsCollector) Option {
	return func(g *ProviderGateway) {
		g.metrics = metrics
	}
}

// WithTracer wraps each call in a span.
func WithTracer(tracer *observability.TracerProvider) Option {
	return func(g *ProviderGateway) {
		g.tracer = tracer
	}
}

// WithLogger replaces the component logger.
func WithLogger(logger logging.Logger) Option {
	return func(g *ProviderGateway) {
		g.logger = logging.OrNop(logger)
	}
}

// NewGateway wraps provider. Non-positive MaxTokens or TopP and a negative
// Temperature fall back to DefaultParams; a zero Temperature is kept.
func NewGateway(provider Provider, cfg GatewayConfig, opts ...Option) (*ProviderGateway, error) {
	if provider == nil {
		return nil, errors.New("completion gateway requires a provider")
	}
	params := cfg.Params
	defaults := DefaultParams()
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaults.MaxTokens
	}
	if params.TopP <= 0 {
		params.TopP = defaults.TopP
	}
	if params.Temperature < 0 {
		params.Temperature = defaults.Temperature
	}

	g := &ProviderGateway{
		provider: provider,
		window:   cfg.Window,
		params:   params,
		counter:  tokenutil.CountTokens,
		logger:   logging.NewComponentLogger("CompletionGateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Provider returns the wrapped provider name.
func (g *ProviderGateway) Provider() string {
	return g.provider.Name()
}

// Complete builds the request and invokes the provider once.
func (g *ProviderGateway) Complete(ctx context.Context, persona string, history []session.Turn, message string) (Result, error) {
	req := BuildRequest(persona, history, message, g.window, g.params, g.counter)
	name := g.provider.Name()
	prefix := logPrefix(ctx)

	ctx, span := g.tracer.StartSpan(ctx, observability.SpanLLMComplete,
		attribute.String(observability.AttrProvider, name),
		attribute.Int(observability.AttrTurns, len(req.Messages)),
	)
	defer span.End()

	g.logger.Debug("%s=== LLM Request ===", prefix)
	g.logger.Debug("%sProvider: %s", prefix, name)
	g.logger.Debug("%sMessages: %d (history %d)", prefix, len(req.Messages), len(history))

	start := time.Now()
	result, err := g.provider.Converse(ctx, req)
	latency := time.Since(start)
	if err == nil && strings.TrimSpace(result.Text) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		g.metrics.RecordLLMRequest(ctx, name, "error", latency, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		g.logger.Error("%sCompletion via %s failed after %s: %v", prefix, name, latency, err)
		return Result{}, apperrors.NewBackendFailure("completion", fmt.Errorf("%s: %w", name, err))
	}
	if result.TokensUsed < 0 {
		result.TokensUsed = 0
	}

	g.metrics.RecordLLMRequest(ctx, name, "ok", latency, result.TokensUsed)
	span.SetAttributes(attribute.Int(observability.AttrTokens, result.TokensUsed))

	g.logger.Debug("%s=== LLM Response Summary ===", prefix)
	g.logger.Debug("%sStop Reason: %s", prefix, result.StopReason)
	g.logger.Debug("%sContent Length: %d chars", prefix, len(result.Text))
	g.logger.Debug("%sUsage: %d total tokens", prefix, result.TokensUsed)
	return result, nil
}

func logPrefix(ctx context.Context) string {
	if requestID := observability.RequestIDFromContext(ctx); requestID != "" {
		return fmt.Sprintf("[req:%s] ", requestID)
	}
	return ""
}
