package http

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"twin/internal/admission"
	"twin/internal/chat"
	"twin/internal/logging"
	"twin/internal/observability"
	"twin/internal/session"
)

// ChatService is the conversation pipeline behind the HTTP surface.
type ChatService interface {
	Chat(ctx context.Context, req chat.Request) (chat.Reply, error)
	Conversation(ctx context.Context, sessionID string) (string, []session.Turn, error)
}

// RouterConfig holds the transport settings.
type RouterConfig struct {
	// APIKey enables the X-API-Key check when non-empty.
	APIKey string
	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string
	// RequestTimeout bounds each request's context.
	RequestTimeout time.Duration
	// TrustedProxies may set X-Forwarded-For; empty trusts none.
	TrustedProxies []string
	Debug          bool
}

// RouterDeps are the collaborators the handlers use.
type RouterDeps struct {
	Chat ChatService
	// Limiter throttles non-chat routes; chat applies it inside the pipeline.
	Limiter *admission.RateLimiter
	Metrics *observability.MetricsCollector
	Tracer  *observability.TracerProvider
	Logger  logging.Logger
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(deps RouterDeps, cfg RouterConfig) (*gin.Engine, error) {
	if deps.Chat == nil {
		return nil, errors.New("router requires a chat service")
	}
	logger := deps.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("HTTP")
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	engine.Use(RecoveryMiddleware(logger))
	engine.Use(ObservabilityMiddleware(deps.Metrics, deps.Tracer, logger))
	if len(cfg.CORSOrigins) > 0 {
		corsMiddleware, err := newCORS(cfg.CORSOrigins)
		if err != nil {
			return nil, err
		}
		engine.Use(corsMiddleware)
	}
	engine.Use(APIKeyMiddleware(cfg.APIKey))
	engine.Use(RequestTimeoutMiddleware(cfg.RequestTimeout))

	h := &handler{chat: deps.Chat, logger: logger}
	engine.GET("/", h.handleRoot)
	engine.GET("/health", h.handleHealth)
	if deps.Metrics.Enabled() {
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	engine.POST("/chat", h.handleChat)

	conversation := engine.Group("/conversation")
	conversation.Use(RateLimitMiddleware(deps.Limiter))
	conversation.GET("/:session_id", h.handleConversation)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, errorResponse{Detail: "Not Found"})
	})
	return engine, nil
}

func newCORS(origins []string) (gin.HandlerFunc, error) {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", APIKeyHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowOrigins = nil
			break
		}
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}
	if !cfg.AllowAllOrigins && len(cfg.AllowOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cors: %w", err)
	}
	return cors.New(cfg), nil
}
