package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every key as TWIN_<SECTION>_<KEY>.
const EnvPrefix = "TWIN"

// legacyEnv maps keys to the environment names used by existing deployments.
// They are consulted after the TWIN_ names.
var legacyEnv = map[string][]string{
	"server.api_key":                    {"APP_API_KEY"},
	"server.cors_origins":               {"CORS_ORIGINS"},
	"server.addr":                       {"ADDR"},
	"admission.rate_limit_max":          {"RATE_LIMIT_MAX"},
	"admission.rate_limit_window":       {"RATE_LIMIT_WINDOW"},
	"admission.token_budget_per_minute": {"TOKEN_BUDGET_PER_MINUTE"},
	"session.use_s3":                    {"USE_S3"},
	"session.s3_bucket":                 {"S3_BUCKET"},
	"session.dir":                       {"MEMORY_DIR"},
	"session.redis_addr":                {"REDIS_ADDR"},
	"session.postgres_dsn":              {"DATABASE_URL"},
	"llm.region":                        {"DEFAULT_AWS_REGION", "AWS_REGION"},
	"llm.model":                         {"BEDROCK_MODEL_ID"},
	"llm.api_key":                       {"ANTHROPIC_API_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.debug", false)

	v.SetDefault("admission.rate_limit_max", 0)
	v.SetDefault("admission.rate_limit_window", 0)
	v.SetDefault("admission.max_tracked_clients", 10000)
	v.SetDefault("admission.token_budget_per_minute", 15000)

	v.SetDefault("session.backend", "")
	v.SetDefault("session.use_s3", false)
	v.SetDefault("session.dir", "../memory")
	v.SetDefault("session.s3_bucket", "")
	v.SetDefault("session.s3_prefix", "")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_ttl", "720h")
	v.SetDefault("session.postgres_dsn", "")

	v.SetDefault("llm.provider", ProviderBedrock)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.region", "us-east-1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.top_p", 0.9)
	v.SetDefault("llm.history_turns", 20)
	v.SetDefault("llm.history_token_limit", 0)
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.mock_reply", "")

	v.SetDefault("persona.text", "")
	v.SetDefault("persona.dir", "")

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "text")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.exporter", "otlp")
	v.SetDefault("observability.tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("observability.tracing.zipkin_endpoint", "http://localhost:9411/api/v2/spans")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.tracing.service_name", "twin")
	v.SetDefault("observability.tracing.service_version", "dev")
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		args := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// BindFlags registers the command line overrides on flags and binds them to v.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	flags.String("addr", ":8000", "listen address")
	flags.String("session-backend", "", "session store backend (file, s3, redis, postgres, memory)")
	flags.String("llm-provider", ProviderBedrock, "completion provider (bedrock, anthropic, mock)")
	flags.String("persona-dir", "", "directory with persona resources")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	bindings := map[string]string{
		"server.addr":             "addr",
		"session.backend":         "session-backend",
		"llm.provider":            "llm-provider",
		"persona.dir":             "persona-dir",
		"observability.log_level": "log-level",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// LoadOptions controls where Load looks for input.
type LoadOptions struct {
	// ConfigFile is an optional yaml, json or env file.
	ConfigFile string
	// DotEnv is loaded into the process environment when it exists.
	DotEnv string
}

// Load reads configuration from flags, environment, the optional config file
// and defaults, in that order of precedence, and validates the result.
func Load(v *viper.Viper, opts LoadOptions) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	if opts.DotEnv != "" {
		if err := godotenv.Load(opts.DotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", opts.DotEnv, err)
		}
	}

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Server.CORSOrigins = splitList(c.Server.CORSOrigins)
	c.Server.TrustedProxies = splitList(c.Server.TrustedProxies)
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	if c.Session.Backend == "" {
		c.Session.Backend = "file"
		if c.Session.UseS3 {
			c.Session.Backend = "s3"
		}
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
}

// splitList accepts both real lists and comma separated environment values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
