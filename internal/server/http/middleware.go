package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"twin/internal/admission"
	"twin/internal/logging"
	"twin/internal/observability"
	"twin/internal/security/redaction"
)

const (
	APIKeyHeader    = "X-API-Key"
	RequestIDHeader = "X-Request-Id"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

// exempt routes bypass the API key check. /metrics stays keyed.
func exempt(c *gin.Context) bool {
	if c.Request.Method == http.MethodOptions {
		return true
	}
	switch c.Request.URL.Path {
	case "/", "/health":
		return true
	}
	return false
}

// RecoveryMiddleware turns panics into a 500 without leaking details.
func RecoveryMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Detail: "Internal server error"})
	})
}

// ObservabilityMiddleware assigns a request id, traces the request, records
// metrics and writes one log line per request.
func ObservabilityMiddleware(metrics *observability.MetricsCollector, tracer *observability.TracerProvider, logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		ctx := observability.WithRequestID(c.Request.Context(), requestID)
		ctx, span := tracer.StartSpan(ctx, "twin.http.request",
			attribute.String("http.method", c.Request.Method),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		logger.Debug("[req:%s] headers: %s", requestID, strings.Join(redaction.Header(c.Request.Header), "; "))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		metrics.RecordHTTPRequest(ctx, c.Request.Method, route, status, latency)
		logger.Info("[req:%s] method=%s route=%s status=%d latency_ms=%.2f client=%s",
			requestID,
			c.Request.Method,
			route,
			status,
			float64(latency.Microseconds())/1000.0,
			c.ClientIP(),
		)
	}
}

// APIKeyMiddleware requires X-API-Key to equal key on non-exempt routes. An
// empty key disables the check.
func APIKeyMiddleware(key string) gin.HandlerFunc {
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}
	expected := []byte(key)
	return func(c *gin.Context) {
		if exempt(c) {
			c.Next()
			return
		}
		provided := []byte(c.GetHeader(APIKeyHeader))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Detail: "Invalid API key"})
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware applies the per-client sliding window and answers 429
// when it is exceeded. A nil limiter disables it.
func RateLimitMiddleware(limiter *admission.RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if !limiter.Allow(clientIdentity(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Detail: admission.RateLimitedMessage})
			return
		}
		c.Next()
	}
}

// RequestTimeoutMiddleware bounds the request context.
func RequestTimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func clientIdentity(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return admission.UnknownIdentity
}
