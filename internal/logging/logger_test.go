package logging

import (
	"context"
	"strings"
	"testing"

	"twin/internal/observability"
)

func TestOrNopHandlesTypedNil(t *testing.T) {
	var sl *structuredLogger
	if !IsNil(sl) {
		t.Fatalf("expected typed nil pointer to be reported as nil")
	}
	OrNop(sl).Info("must not panic %d", 1)
	OrNop(nil).Error("must not panic")
}

func TestComponentLoggerFormatsAndScopes(t *testing.T) {
	var buf strings.Builder
	base := observability.NewLogger(observability.LogConfig{Level: "debug", Format: "text", Output: &buf})

	logger := FromObservability(base, "Screener")
	logger.Warn("blocked pattern %s", "role_switch")

	out := buf.String()
	if !strings.Contains(out, "component=Screener") {
		t.Fatalf("expected component attribute, got %q", out)
	}
	if !strings.Contains(out, "blocked pattern role_switch") {
		t.Fatalf("expected formatted message, got %q", out)
	}
}

func TestWithContextAddsSession(t *testing.T) {
	var buf strings.Builder
	base := observability.NewLogger(observability.LogConfig{Format: "json", Output: &buf})

	ctx := observability.WithSessionID(context.Background(), "abc")
	WithContext(FromObservability(base, "Chat"), ctx).Info("loaded")

	if !strings.Contains(buf.String(), `"session_id":"abc"`) {
		t.Fatalf("expected session id in output, got %q", buf.String())
	}

	if got := WithContext(Nop(), ctx); got == nil {
		t.Fatalf("expected non-nil logger for nop input")
	}
}
