// Package redaction masks secrets before configuration or request metadata
// reaches the logs.
package redaction

import (
	"net/http"
	"sort"
	"strings"
)

const Placeholder = "[REDACTED]"

var (
	// Usage counters and limits mention "token" but are not secrets.
	nonSensitiveTokenKeys = map[string]struct{}{
		"tokens":                  {},
		"tokens_used":             {},
		"total_tokens":            {},
		"max_tokens":              {},
		"token_budget":            {},
		"token_budget_per_minute": {},
		"history_token_limit":     {},
	}

	sensitiveKeyFragments    = []string{"secret", "password", "authorization", "cookie", "credential", "dsn"}
	sensitiveValueIndicators = []string{"bearer ", "sk-", "sk-ant-", "akia", "-----begin"}
)

// IsSensitiveKey reports whether key likely names secret material. Dotted
// configuration keys and HTTP header names are judged by their last segment.
func IsSensitiveKey(key string) bool {
	lowerKey := normalise(key)
	if lowerKey == "" {
		return false
	}
	if _, ok := nonSensitiveTokenKeys[lowerKey]; ok {
		return false
	}
	if isLikelyTokenKey(lowerKey) || isLikelyKeyMaterialKey(lowerKey) {
		return true
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lowerKey, fragment) {
			return true
		}
	}
	return false
}

// LooksLikeSecret reports whether value appears to contain secret material.
func LooksLikeSecret(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	lowerValue := strings.ToLower(trimmed)
	for _, indicator := range sensitiveValueIndicators {
		if strings.HasPrefix(lowerValue, indicator) {
			return true
		}
	}
	return false
}

// Value returns Placeholder when key or value look sensitive.
func Value(key, value string) string {
	if value == "" {
		return value
	}
	if IsSensitiveKey(key) || LooksLikeSecret(value) {
		return Placeholder
	}
	return value
}

// Header flattens h into sorted "Name: value" pairs with secrets masked.
func Header(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, name+": "+Value(name, strings.Join(h.Values(name), ", ")))
	}
	return out
}

func normalise(key string) string {
	lowerKey := strings.ToLower(strings.TrimSpace(key))
	if idx := strings.LastIndex(lowerKey, "."); idx >= 0 {
		lowerKey = lowerKey[idx+1:]
	}
	return strings.ReplaceAll(lowerKey, "-", "_")
}

func isLikelyTokenKey(key string) bool {
	if key == "token" || strings.HasPrefix(key, "token_") || strings.HasSuffix(key, "_token") {
		return true
	}
	return strings.Contains(key, "access_token") || strings.Contains(key, "session_token")
}

func isLikelyKeyMaterialKey(key string) bool {
	if key == "key" || strings.HasPrefix(key, "key_") || strings.HasSuffix(key, "_key") {
		return true
	}
	return strings.Contains(key, "apikey") || strings.Contains(key, "private_key")
}
