// Package di wires the configured components into a runnable service.
package di

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"twin/internal/admission"
	"twin/internal/chat"
	"twin/internal/config"
	"twin/internal/observability"
	serverhttp "twin/internal/server/http"
	"twin/internal/session"
)

// Container holds the built service and the resources it must release.
type Container struct {
	Config       config.Config
	Store        session.Store
	Orchestrator *chat.Orchestrator
	Limiter      *admission.RateLimiter
	Metrics      *observability.MetricsCollector
	Tracer       *observability.TracerProvider
	Router       *gin.Engine

	closers []func(context.Context) error
}

// BuildContainer builds every component named by cfg. On error, resources
// opened so far are released.
func BuildContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	b := newContainerBuilder(cfg)
	c, err := b.Build(ctx)
	if err != nil {
		if shutdownErr := b.container.Shutdown(context.Background()); shutdownErr != nil {
			b.logger.Warn("Cleanup after failed build: %v", shutdownErr)
		}
		return nil, err
	}
	return c, nil
}

// Shutdown releases resources in reverse order of acquisition.
func (c *Container) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) onShutdown(name string, fn func(context.Context) error) {
	c.closers = append(c.closers, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

// RouterConfig derives the HTTP surface settings from the configuration.
func RouterConfig(cfg config.Config) serverhttp.RouterConfig {
	return serverhttp.RouterConfig{
		APIKey:         strings.TrimSpace(cfg.Server.APIKey),
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustedProxies: cfg.Server.TrustedProxies,
		Debug:          cfg.Server.Debug,
	}
}
