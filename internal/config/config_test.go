package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "twin/internal/errors"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RATE_LIMIT_MAX", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "60")
	t.Setenv("BEDROCK_MODEL_ID", "amazon.nova-lite-v1:0")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(viper.New(), LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10, cfg.Admission.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.Admission.Window())
	assert.Equal(t, 15000, cfg.Admission.TokenBudgetPerMinute)
	assert.Equal(t, 10000, cfg.Admission.MaxTrackedClients)
	assert.Equal(t, "file", cfg.Session.Backend)
	assert.Equal(t, "../memory", cfg.Session.Dir)
	assert.Equal(t, ProviderBedrock, cfg.LLM.Provider)
	assert.Equal(t, "amazon.nova-lite-v1:0", cfg.LLM.Model)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.InDelta(t, 0.9, cfg.LLM.TopP, 1e-9)
	assert.Equal(t, 20, cfg.LLM.HistoryTurns)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_API_KEY", "s3cret")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("USE_S3", "true")
	t.Setenv("S3_BUCKET", "twin-memory")
	t.Setenv("DEFAULT_AWS_REGION", "eu-west-1")
	t.Setenv("TOKEN_BUDGET_PER_MINUTE", "500")

	cfg, err := Load(viper.New(), LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Server.APIKey)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "s3", cfg.Session.Backend)
	assert.Equal(t, "twin-memory", cfg.Session.S3Bucket)
	assert.Equal(t, "eu-west-1", cfg.LLM.Region)
	assert.Equal(t, 500, cfg.Admission.TokenBudgetPerMinute)
}

func TestPrefixedEnvironmentWinsOverLegacy(t *testing.T) {
	setRequired(t)
	t.Setenv("TWIN_ADMISSION_RATE_LIMIT_MAX", "3")
	t.Setenv("TWIN_SESSION_BACKEND", "memory")

	cfg, err := Load(viper.New(), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Admission.RateLimitMax)
	assert.Equal(t, "memory", cfg.Session.Backend)
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "twin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
llm:
  provider: mock
  history_turns: 8
`), 0o600))

	v := viper.New()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, flags.Parse([]string{"--addr", ":7000"}))

	cfg, err := Load(v, LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, ProviderMock, cfg.LLM.Provider)
	assert.Equal(t, 8, cfg.LLM.HistoryTurns)
}

func TestLoadDotEnv(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TWIN_SESSION_S3_PREFIX=twin/\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TWIN_SESSION_S3_PREFIX") })

	cfg, err := Load(viper.New(), LoadOptions{DotEnv: path})
	require.NoError(t, err)
	assert.Equal(t, "twin/", cfg.Session.S3Prefix)

	_, err = Load(viper.New(), LoadOptions{DotEnv: filepath.Join(t.TempDir(), "absent.env")})
	assert.NoError(t, err)
}

func TestValidateReportsConfigurationErrors(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "")
	t.Setenv("RATE_LIMIT_WINDOW", "")
	t.Setenv("BEDROCK_MODEL_ID", "")

	_, err := Load(viper.New(), LoadOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "admission.rate_limit_max")
	assert.Contains(t, err.Error(), "admission.rate_limit_window")
	assert.Contains(t, err.Error(), "llm.model")
}

func TestValidateBackendRequirements(t *testing.T) {
	base := Config{
		Admission: AdmissionConfig{RateLimitMax: 1, RateLimitWindow: 1},
		LLM:       LLMConfig{Provider: ProviderMock, MaxTokens: 10, Temperature: 0.3, TopP: 0.9, HistoryTurns: 20},
	}

	cases := map[string]struct {
		session SessionConfig
		wantKey string
	}{
		"s3 bucket":    {SessionConfig{Backend: "s3"}, "session.s3_bucket"},
		"postgres dsn": {SessionConfig{Backend: "postgres"}, "session.postgres_dsn"},
		"unknown":      {SessionConfig{Backend: "sqlite"}, "session.backend"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			cfg.Session = tc.session
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantKey)
		})
	}

	cfg := base
	cfg.Session = SessionConfig{Backend: "file"}
	assert.NoError(t, cfg.Validate())

	cfg.Server.CORSOrigins = []string{"twin.example.com"}
	assert.ErrorContains(t, cfg.Validate(), "server.cors_origins")
}

func TestDumpRedactsSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_API_KEY", "s3cret")
	v := viper.New()
	_, err := Load(v, LoadOptions{})
	require.NoError(t, err)

	dump := strings.Join(Dump(v), "\n")
	assert.NotContains(t, dump, "s3cret")
	assert.Contains(t, dump, "server.api_key=[REDACTED]")
	assert.Contains(t, dump, "admission.rate_limit_max=10")
}
