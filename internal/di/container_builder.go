package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"twin/internal/admission"
	"twin/internal/chat"
	"twin/internal/config"
	"twin/internal/llm"
	"twin/internal/logging"
	"twin/internal/observability"
	"twin/internal/persona"
	"twin/internal/security"
	serverhttp "twin/internal/server/http"
	"twin/internal/session"
	"twin/internal/session/backend"
)

const (
	defaultSessionPoolMaxConns        = 8
	defaultSessionPoolMinConns        = 1
	defaultSessionPoolMaxConnLifetime = 30 * time.Minute
	defaultSessionPoolMaxConnIdleTime = 5 * time.Minute
	defaultSessionPoolHealthCheck     = time.Minute
)

type containerBuilder struct {
	config    config.Config
	logger    logging.Logger
	container *Container
	aws       *awsClients
}

type awsClients struct {
	s3      *s3.Client
	bedrock *bedrockruntime.Client
}

type initError struct {
	step string
	err  error
}

func (e initError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.step, e.err)
}

func (e initError) Unwrap() error {
	return e.err
}

func newContainerBuilder(cfg config.Config) *containerBuilder {
	return &containerBuilder{
		config:    cfg,
		logger:    logging.NewComponentLogger("DI"),
		container: &Container{Config: cfg},
	}
}

func (b *containerBuilder) Build(ctx context.Context) (*Container, error) {
	c := b.container
	b.logger.Debug("Building container with session_backend=%s, llm_provider=%s", b.config.Session.Backend, b.config.LLM.Provider)

	if err := b.buildObservability(); err != nil {
		return nil, err
	}

	store, err := b.buildSessionStore(ctx)
	if err != nil {
		return nil, err
	}
	c.Store = session.Instrument(store, b.config.Session.Backend, c.Metrics, c.Tracer)

	personaProvider, err := b.buildPersona()
	if err != nil {
		return nil, initError{step: "load persona", err: err}
	}

	gateway, err := b.buildGateway(ctx)
	if err != nil {
		return nil, initError{step: "build completion gateway", err: err}
	}

	limiter, err := admission.NewRateLimiter(admission.RateLimitConfig{
		Max:               b.config.Admission.RateLimitMax,
		Window:            b.config.Admission.Window(),
		MaxTrackedClients: b.config.Admission.MaxTrackedClients,
	})
	if err != nil {
		return nil, initError{step: "build rate limiter", err: err}
	}
	c.Limiter = limiter
	controller := admission.NewController(limiter, admission.NewTokenBudget(b.config.Admission.TokenBudgetPerMinute))

	c.Orchestrator, err = chat.NewOrchestrator(chat.Deps{
		Screener:  security.NewPatternScreener(),
		Admission: controller,
		Store:     c.Store,
		Persona:   personaProvider,
		Gateway:   gateway,
	}, chat.WithMetrics(c.Metrics), chat.WithTracer(c.Tracer))
	if err != nil {
		return nil, initError{step: "build orchestrator", err: err}
	}

	c.Router, err = serverhttp.NewRouter(serverhttp.RouterDeps{
		Chat:    c.Orchestrator,
		Limiter: limiter,
		Metrics: c.Metrics,
		Tracer:  c.Tracer,
		Logger:  logging.NewComponentLogger("HTTP"),
	}, RouterConfig(b.config))
	if err != nil {
		return nil, initError{step: "build router", err: err}
	}

	b.logger.Info("Container ready: session_backend=%s llm_provider=%s persona=%s", b.config.Session.Backend, b.config.LLM.Provider, personaSource(b.config.Persona))
	return c, nil
}

func (b *containerBuilder) buildObservability() error {
	c := b.container
	obs := b.config.Observability
	observability.SetDefault(observability.NewLogger(observability.LogConfig{
		Level:  obs.LogLevel,
		Format: obs.LogFormat,
	}))
	b.logger = logging.NewComponentLogger("DI")

	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{Enabled: obs.MetricsEnabled})
	if err != nil {
		return initError{step: "create metrics collector", err: err}
	}
	c.Metrics = metrics
	c.onShutdown("metrics", metrics.Shutdown)

	tracer, err := observability.NewTracerProvider(obs.Tracing)
	if err != nil {
		return initError{step: "create tracer provider", err: err}
	}
	c.Tracer = tracer
	c.onShutdown("tracing", tracer.Shutdown)
	return nil
}

func (b *containerBuilder) awsClients(ctx context.Context) (*awsClients, error) {
	if b.aws != nil {
		return b.aws, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(b.config.LLM.Region))
	if err != nil {
		return nil, initError{step: "load AWS configuration", err: err}
	}
	b.aws = &awsClients{
		s3:      s3.NewFromConfig(awsCfg),
		bedrock: bedrockruntime.NewFromConfig(awsCfg),
	}
	return b.aws, nil
}

func (b *containerBuilder) buildSessionStore(ctx context.Context) (session.Store, error) {
	cfg := b.config.Session
	storeCfg := backend.Config{
		Backend:  cfg.Backend,
		Dir:      cfg.Dir,
		S3Bucket: cfg.S3Bucket,
		S3Prefix: cfg.S3Prefix,
		RedisTTL: cfg.RedisTTL,
	}

	var clients backend.Clients
	switch cfg.Backend {
	case backend.S3:
		aws, err := b.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		clients.S3 = aws.s3
	case backend.Redis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, initError{step: "ping redis", err: err}
		}
		b.container.onShutdown("redis", func(context.Context) error { return client.Close() })
		clients.Redis = client
	case backend.Postgres:
		pool, err := b.buildPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		clients.Postgres = pool
	}

	store, err := backend.NewStore(ctx, storeCfg, clients)
	if err != nil {
		return nil, initError{step: "create session store", err: err}
	}
	return store, nil
}

func (b *containerBuilder) buildPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, initError{step: "parse session DB config", err: err}
	}
	poolConfig.MaxConns = defaultSessionPoolMaxConns
	poolConfig.MinConns = defaultSessionPoolMinConns
	poolConfig.MaxConnLifetime = defaultSessionPoolMaxConnLifetime
	poolConfig.MaxConnIdleTime = defaultSessionPoolMaxConnIdleTime
	poolConfig.HealthCheckPeriod = defaultSessionPoolHealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, initError{step: "create session DB pool", err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, initError{step: "ping session DB", err: err}
	}
	b.container.onShutdown("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})
	return pool, nil
}

func (b *containerBuilder) buildPersona() (persona.Provider, error) {
	cfg := b.config.Persona
	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		provider, err := persona.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
	text := cfg.Text
	if strings.TrimSpace(text) == "" {
		text = config.DefaultPersona
	}
	provider, err := persona.NewStaticProvider(text)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func personaSource(cfg config.PersonaConfig) string {
	switch {
	case strings.TrimSpace(cfg.Dir) != "":
		return "dir:" + cfg.Dir
	case strings.TrimSpace(cfg.Text) != "":
		return "text"
	default:
		return "default"
	}
}

func (b *containerBuilder) buildProvider(ctx context.Context) (llm.Provider, error) {
	cfg := b.config.LLM
	switch cfg.Provider {
	case config.ProviderBedrock:
		aws, err := b.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		provider, err := llm.NewBedrockProvider(aws.bedrock, cfg.Model)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case config.ProviderAnthropic:
		provider, err := llm.NewAnthropicProvider(llm.AnthropicConfig{
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return provider, nil
	case config.ProviderMock:
		return llm.NewMockProvider(cfg.MockReply, 0), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func (b *containerBuilder) buildGateway(ctx context.Context) (*llm.ProviderGateway, error) {
	cfg := b.config.LLM
	provider, err := b.buildProvider(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond > 0 {
		provider = llm.WithRateLimit(provider, cfg.RequestsPerSecond, cfg.Burst)
	}
	return llm.NewGateway(provider, llm.GatewayConfig{
		Window: llm.WindowConfig{
			Turns:      cfg.HistoryTurns,
			TokenLimit: cfg.HistoryTokenLimit,
		},
		Params: llm.Params{
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		},
	},
		llm.WithMetrics(b.container.Metrics),
		llm.WithTracer(b.container.Tracer),
	)
}
