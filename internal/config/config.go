// Package config loads and validates the service configuration.
package config

import (
	"time"

	"twin/internal/observability"
)

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Admission     AdmissionConfig     `mapstructure:"admission"`
	Session       SessionConfig       `mapstructure:"session"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Persona       PersonaConfig       `mapstructure:"persona"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	APIKey         string        `mapstructure:"api_key"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Debug          bool          `mapstructure:"debug"`
}

type AdmissionConfig struct {
	RateLimitMax  int `mapstructure:"rate_limit_max"`
	// RateLimitWindow is in seconds.
	RateLimitWindow      int `mapstructure:"rate_limit_window"`
	MaxTrackedClients    int `mapstructure:"max_tracked_clients"`
	TokenBudgetPerMinute int `mapstructure:"token_budget_per_minute"`
}

// Window returns the rate limit window as a duration.
func (a AdmissionConfig) Window() time.Duration {
	return time.Duration(a.RateLimitWindow) * time.Second
}

type SessionConfig struct {
	Backend     string        `mapstructure:"backend"`
	UseS3       bool          `mapstructure:"use_s3"`
	Dir         string        `mapstructure:"dir"`
	S3Bucket    string        `mapstructure:"s3_bucket"`
	S3Prefix    string        `mapstructure:"s3_prefix"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisTTL    time.Duration `mapstructure:"redis_ttl"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
}

type LLMConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	Region            string        `mapstructure:"region"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Temperature       float64       `mapstructure:"temperature"`
	TopP              float64       `mapstructure:"top_p"`
	HistoryTurns      int           `mapstructure:"history_turns"`
	HistoryTokenLimit int           `mapstructure:"history_token_limit"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MockReply         string        `mapstructure:"mock_reply"`
}

type PersonaConfig struct {
	Text string `mapstructure:"text"`
	Dir  string `mapstructure:"dir"`
}

type ObservabilityConfig struct {
	LogLevel       string                      `mapstructure:"log_level"`
	LogFormat      string                      `mapstructure:"log_format"`
	MetricsEnabled bool                        `mapstructure:"metrics_enabled"`
	Tracing        observability.TracingConfig `mapstructure:"tracing"`
}

const (
	ProviderBedrock   = "bedrock"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// DefaultPersona is used when neither persona.text nor persona.dir is set.
const DefaultPersona = "You are a professional digital twin. Answer questions about your professional experience and skills in the first person, concisely and courteously."
