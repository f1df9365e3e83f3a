package config

import (
	"errors"
	"slices"
	"strings"

	apperrors "twin/internal/errors"
	"twin/internal/session/backend"
)

func missing(key string) error {
	return &apperrors.ConfigurationError{Key: key, Message: "is required"}
}

func invalid(key, message string) error {
	return &apperrors.ConfigurationError{Key: key, Message: message}
}

// Validate reports every missing or out of range value as a
// ConfigurationError.
func (c Config) Validate() error {
	var errs []error

	if c.Admission.RateLimitMax <= 0 {
		errs = append(errs, invalid("admission.rate_limit_max", "must be greater than zero"))
	}
	if c.Admission.RateLimitWindow <= 0 {
		errs = append(errs, invalid("admission.rate_limit_window", "must be greater than zero"))
	}
	if c.Admission.MaxTrackedClients < 0 {
		errs = append(errs, invalid("admission.max_tracked_clients", "must not be negative"))
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errs = append(errs, invalid("server.cors_origins", "origin "+origin+" must start with http:// or https://"))
		}
	}

	switch c.Session.Backend {
	case backend.File, backend.Memory:
	case backend.S3:
		if strings.TrimSpace(c.Session.S3Bucket) == "" {
			errs = append(errs, missing("session.s3_bucket"))
		}
	case backend.Redis:
		if strings.TrimSpace(c.Session.RedisAddr) == "" {
			errs = append(errs, missing("session.redis_addr"))
		}
	case backend.Postgres:
		if strings.TrimSpace(c.Session.PostgresDSN) == "" {
			errs = append(errs, missing("session.postgres_dsn"))
		}
	default:
		errs = append(errs, invalid("session.backend", "must be one of "+strings.Join(backend.Names(), ", ")))
	}

	switch c.LLM.Provider {
	case ProviderBedrock:
		if strings.TrimSpace(c.LLM.Model) == "" {
			errs = append(errs, missing("llm.model"))
		}
		if strings.TrimSpace(c.LLM.Region) == "" {
			errs = append(errs, missing("llm.region"))
		}
	case ProviderAnthropic:
		if strings.TrimSpace(c.LLM.Model) == "" {
			errs = append(errs, missing("llm.model"))
		}
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			errs = append(errs, missing("llm.api_key"))
		}
	case ProviderMock:
	default:
		errs = append(errs, invalid("llm.provider", "must be one of bedrock, anthropic, mock"))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, invalid("llm.max_tokens", "must be greater than zero"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errs = append(errs, invalid("llm.temperature", "must be between 0 and 1"))
	}
	if c.LLM.TopP <= 0 || c.LLM.TopP > 1 {
		errs = append(errs, invalid("llm.top_p", "must be in (0, 1]"))
	}
	if c.LLM.HistoryTurns <= 0 {
		errs = append(errs, invalid("llm.history_turns", "must be greater than zero"))
	}
	if c.LLM.HistoryTokenLimit < 0 {
		errs = append(errs, invalid("llm.history_token_limit", "must not be negative"))
	}
	if c.LLM.RequestsPerSecond < 0 {
		errs = append(errs, invalid("llm.requests_per_second", "must not be negative"))
	}

	if !slices.Contains([]string{"", "text", "json"}, strings.ToLower(c.Observability.LogFormat)) {
		errs = append(errs, invalid("observability.log_format", "must be text or json"))
	}
	if c.Observability.Tracing.Enabled && !slices.Contains([]string{"otlp", "zipkin"}, c.Observability.Tracing.Exporter) {
		errs = append(errs, invalid("observability.tracing.exporter", "must be otlp or zipkin"))
	}

	return errors.Join(errs...)
}
