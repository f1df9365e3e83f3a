package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector records chat pipeline metrics. The zero value is a no-op
// collector, so callers never need to nil-check it.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry

	chatRequests   metric.Int64Counter
	gateRejections metric.Int64Counter
	llmRequests    metric.Int64Counter
	llmTokens      metric.Int64Counter
	llmLatency     metric.Float64Histogram
	storeOps       metric.Int64Counter
	storeLatency   metric.Float64Histogram
	httpRequests   metric.Int64Counter
	httpLatency    metric.Float64Histogram
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// NewMetricsCollector creates a collector backed by an OpenTelemetry meter
// provider that exports to a private Prometheus registry.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("twin")

	m := &MetricsCollector{provider: provider, registry: registry}

	if m.chatRequests, err = meter.Int64Counter(
		"twin.chat.requests",
		metric.WithDescription("Chat requests by final outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create chat_requests counter: %w", err)
	}
	if m.gateRejections, err = meter.Int64Counter(
		"twin.gate.rejections",
		metric.WithDescription("Messages stopped by a screening or admission gate"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create gate_rejections counter: %w", err)
	}
	if m.llmRequests, err = meter.Int64Counter(
		"twin.llm.requests",
		metric.WithDescription("Completion service calls"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create llm_requests counter: %w", err)
	}
	if m.llmTokens, err = meter.Int64Counter(
		"twin.llm.tokens",
		metric.WithDescription("Tokens reported by the completion service"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("create llm_tokens counter: %w", err)
	}
	if m.llmLatency, err = meter.Float64Histogram(
		"twin.llm.latency",
		metric.WithDescription("Completion service latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create llm_latency histogram: %w", err)
	}
	if m.storeOps, err = meter.Int64Counter(
		"twin.session.store.operations",
		metric.WithDescription("Session store loads and saves"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("create store_operations counter: %w", err)
	}
	if m.storeLatency, err = meter.Float64Histogram(
		"twin.session.store.latency",
		metric.WithDescription("Session store latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create store_latency histogram: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter(
		"twin.http.requests",
		metric.WithDescription("HTTP requests by route and status"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create http_requests counter: %w", err)
	}
	if m.httpLatency, err = meter.Float64Histogram(
		"twin.http.latency",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create http_latency histogram: %w", err)
	}
	return m, nil
}

// Enabled reports whether the collector exports anything.
func (m *MetricsCollector) Enabled() bool {
	return m != nil && m.registry != nil
}

// Handler serves the Prometheus exposition format.
func (m *MetricsCollector) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// RecordChat records the terminal outcome of one chat request.
func (m *MetricsCollector) RecordChat(ctx context.Context, outcome string) {
	if m == nil || m.chatRequests == nil {
		return
	}
	m.chatRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordGateRejection records a message stopped by gate for reason.
func (m *MetricsCollector) RecordGateRejection(ctx context.Context, gate, reason string) {
	if m == nil || m.gateRejections == nil {
		return
	}
	m.gateRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gate", gate),
		attribute.String("reason", reason),
	))
}

// RecordLLMRequest records one completion call.
func (m *MetricsCollector) RecordLLMRequest(ctx context.Context, provider, status string, latency time.Duration, tokens int) {
	if m == nil || m.llmRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.llmRequests.Add(ctx, 1, attrs)
	m.llmLatency.Record(ctx, latency.Seconds(), attrs)
	if tokens > 0 {
		m.llmTokens.Add(ctx, int64(tokens), metric.WithAttributes(attribute.String("provider", provider)))
	}
}

// RecordStoreOperation records a session store load or save.
func (m *MetricsCollector) RecordStoreOperation(ctx context.Context, op, status string, latency time.Duration) {
	if m == nil || m.storeOps == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	)
	m.storeOps.Add(ctx, 1, attrs)
	m.storeLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordHTTPRequest records one served HTTP request.
func (m *MetricsCollector) RecordHTTPRequest(ctx context.Context, method, route string, status int, latency time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpLatency.Record(ctx, latency.Seconds(), attrs)
}
