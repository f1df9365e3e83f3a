package redaction

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSensitiveKey(t *testing.T) {
	sensitive := []string{"server.api_key", "llm.api_key", "X-API-Key", "Authorization", "Cookie", "aws_secret_access_key", "token"}
	for _, key := range sensitive {
		assert.True(t, IsSensitiveKey(key), key)
	}
	plain := []string{"session.backend", "session.dir", "admission.token_budget_per_minute", "llm.max_tokens", "llm.history_token_limit", "Content-Type", ""}
	for _, key := range plain {
		assert.False(t, IsSensitiveKey(key), key)
	}
}

func TestValue(t *testing.T) {
	assert.Equal(t, Placeholder, Value("server.api_key", "abc"))
	assert.Equal(t, Placeholder, Value("llm.base_url", "sk-ant-123"))
	assert.Equal(t, "", Value("server.api_key", ""))
	assert.Equal(t, "us-east-1", Value("llm.region", "us-east-1"))
}

func TestHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-API-Key", "hunter2")
	h.Set("Content-Type", "application/json")
	assert.Equal(t, []string{"Content-Type: application/json", "X-Api-Key: " + Placeholder}, Header(h))
}
