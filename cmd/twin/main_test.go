package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "twin/internal/errors"
	"twin/internal/httpclient"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "chat", "history", "config"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
	assert.Equal(t, exitConfig, exitCode(&apperrors.ConfigurationError{Key: "llm.model", Message: "is required"}))
	assert.Equal(t, 7, exitCode(&ExitCodeError{Code: 7, Err: errors.New("x")}))
}

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat":
			_, _ = w.Write([]byte(`{"response":"I build data platforms.","session_id":"5f0c6c1e-8a53-4b7e-9c55-0d3f1b2a7e10"}`))
		case "/conversation/5f0c6c1e-8a53-4b7e-9c55-0d3f1b2a7e10":
			_, _ = w.Write([]byte(`{"session_id":"5f0c6c1e-8a53-4b7e-9c55-0d3f1b2a7e10","messages":[` +
				`{"role":"user","content":"What do you do?","timestamp":"2026-01-02T03:04:05Z"},` +
				`{"role":"assistant","content":"I build data platforms.","timestamp":"2026-01-02T03:04:06Z"}]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Invalid session ID format"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHistoryCommand(t *testing.T) {
	server := fakeServer(t)
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"history", "5f0c6c1e-8a53-4b7e-9c55-0d3f1b2a7e10", "--url", server.URL})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "What do you do?")
	assert.Contains(t, out.String(), "I build data platforms.")
}

func TestHistoryCommandReportsDetail(t *testing.T) {
	server := fakeServer(t)
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"history", "nope", "--url", server.URL})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid session ID format")
}

func TestChatSessionSendAndCommands(t *testing.T) {
	server := fakeServer(t)
	client, err := httpclient.New(server.URL)
	require.NoError(t, err)
	renderer, err := NewMarkdownRenderer(true)
	require.NoError(t, err)

	var out bytes.Buffer
	s := &chatSession{client: client, renderer: renderer, out: &out}
	ctx := context.Background()

	require.NoError(t, s.send(ctx, "What do you do?"))
	assert.Equal(t, "5f0c6c1e-8a53-4b7e-9c55-0d3f1b2a7e10", s.sessionID)
	assert.Contains(t, out.String(), "I build data platforms.")

	stop, err := s.handleCommand(ctx, "/history")
	require.NoError(t, err)
	assert.False(t, stop)
	assert.Contains(t, out.String(), "What do you do?")

	stop, err = s.handleCommand(ctx, "/new")
	require.NoError(t, err)
	assert.False(t, stop)
	assert.Empty(t, s.sessionID)

	stop, err = s.handleCommand(ctx, "/exit")
	require.NoError(t, err)
	assert.True(t, stop)
}
