package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Admission: config.AdmissionConfig{
			RateLimitMax:         5,
			RateLimitWindow:      60,
			MaxTrackedClients:    100,
			TokenBudgetPerMinute: 15000,
		},
		Session: config.SessionConfig{Backend: "memory"},
		LLM: config.LLMConfig{
			Provider:     config.ProviderMock,
			MockReply:    "Hello from the twin.",
			MaxTokens:    2000,
			Temperature:  0.3,
			TopP:         0.9,
			HistoryTurns: 20,
		},
		Observability: config.ObservabilityConfig{LogLevel: "error", MetricsEnabled: true},
	}
}

func TestBuildContainerServesChat(t *testing.T) {
	c, err := BuildContainer(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Shutdown(context.Background())) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Response  string `json:"response"`
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Hello from the twin.", body.Response)

	turns, err := c.Store.Load(context.Background(), body.SessionID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	rec = httptest.NewRecorder()
	c.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildContainerFileBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session = config.SessionConfig{Backend: "file", Dir: t.TempDir()}
	cfg.Persona = config.PersonaConfig{Text: "You are the digital twin of Ada."}

	c, err := BuildContainer(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, c.Orchestrator)
	assert.NotNil(t, c.Limiter)
	assert.NoError(t, c.Shutdown(context.Background()))
	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestBuildContainerMissingPersonaDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Persona = config.PersonaConfig{Dir: filepath.Join(t.TempDir(), "absent")}

	_, err := BuildContainer(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load persona")
}

func TestRouterConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.APIKey = "  s3cret  "
	cfg.Server.CORSOrigins = []string{"https://twin.example.com"}

	rc := RouterConfig(cfg)
	assert.Equal(t, "s3cret", rc.APIKey)
	assert.Equal(t, []string{"https://twin.example.com"}, rc.CORSOrigins)
	assert.Equal(t, 5*time.Second, rc.RequestTimeout)
}

func TestPersonaSource(t *testing.T) {
	assert.Equal(t, "default", personaSource(config.PersonaConfig{}))
	assert.Equal(t, "text", personaSource(config.PersonaConfig{Text: "x"}))
	assert.Equal(t, "dir:/p", personaSource(config.PersonaConfig{Dir: "/p"}))
}
