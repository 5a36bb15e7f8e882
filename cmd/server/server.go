package main

import (
	"codescribe/chunking"
	"codescribe/config"
	"codescribe/health"
	httpadapter "codescribe/internal/adapters/primary/http"
	"codescribe/internal/adapters/secondary/completion"
	"codescribe/internal/core/ports"
	"codescribe/internal/core/services"
	"codescribe/pkg/logger"
	"codescribe/pkg/metrics"
	"codescribe/pkg/storage"
	"codescribe/prompt"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

// server holds the wired application
type server struct {
	app     *fiber.App
	docs    *services.DocumentationServiceImpl
	health  *health.HealthChecker
	metrics *metrics.Metrics // nil when metrics are disabled
	store   *storage.Redis   // nil when rate limiting is in memory
	log     *logger.Logger
}

// newServer wires the documentation service and its HTTP transport from configuration
func newServer(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*server, error) {
	s := &server{metrics: m, log: log}

	var genMetrics ports.GenerationMetrics
	if m != nil {
		genMetrics = m
	}

	docs, err := services.NewDocumentationService(
		completionClient(cfg, log),
		chunking.NewService(),
		prompt.NewBuilder(),
		genMetrics,
		log,
		cfg.GeneratorOptions(),
	)
	if err != nil {
		return nil, err
	}
	s.docs = docs

	deps := httpadapter.Deps{
		Docs:    docs,
		Logger:  log,
		Metrics: m,
	}

	var redisPinger health.Pinger
	if cfg.RedisEnabled() {
		store, err := storage.NewRedis(cfg.StorageConfig(), *log.Logger)
		if err != nil {
			// Fall back to per-instance limits rather than refusing to start
			log.Warn().Err(err).Str("addr", cfg.StorageConfig().Addr()).Msg("⚠️  Redis unavailable, rate limiting in memory")
		} else {
			s.store = store
			deps.LimiterStorage = store
			redisPinger = store
		}
	}

	if cfg.Health.Enabled {
		s.health = health.NewHealthChecker(health.Options{
			Version:          version,
			Environment:      cfg.Server.Environment,
			Provider:         cfg.Completion.Provider,
			APIKeyConfigured: cfg.Completion.APIKey != "",
			Redis:            redisPinger,
			Timeout:          cfg.Health.Timeout,
		})
		deps.Health = s.health
	}

	s.app = httpadapter.NewApp(httpOptions(cfg), deps)
	return s, nil
}

// completionClient builds the upstream client, behind a circuit breaker when one is configured
func completionClient(cfg *config.Config, log *logger.Logger) ports.CompletionClient {
	return completion.NewGuardedClient(completion.NewClient(cfg.CompletionClientConfig()), cfg.CompletionGuardConfig(), *log.Logger)
}

// httpOptions maps the server and security sections onto the HTTP adapter
func httpOptions(cfg *config.Config) httpadapter.Options {
	return httpadapter.Options{
		BodyLimit:          cfg.Security.MaxRequestBodySize,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
		RateLimitEnabled:   cfg.Security.RateLimitEnabled,
		RateLimitPerMinute: cfg.Security.RateLimitPerMinute,
		CorsEnabled:        cfg.Security.CorsEnabled,
		CorsAllowedOrigins: cfg.Security.CorsAllowedOrigins,
		EnableStackTrace:   !cfg.IsProduction(),
	}
}

// onConfigChange applies a reloaded configuration to the running generator.
// Listener, redis and validation bounds only change on restart.
func (s *server) onConfigChange(oldConfig, newConfig *config.Config) error {
	var client ports.CompletionClient
	if oldConfig == nil || oldConfig.Completion != newConfig.Completion {
		client = completionClient(newConfig, s.log)
	}

	if err := s.docs.Reconfigure(newConfig.GeneratorOptions(), client); err != nil {
		return err
	}
	if s.health != nil {
		s.health.SetAPIKeyConfigured(newConfig.Completion.APIKey != "")
	}

	if oldConfig != nil && (oldConfig.Server.Port != newConfig.Server.Port || oldConfig.Redis != newConfig.Redis) {
		s.log.Warn().Msg("⚠️  Server and redis settings take effect after a restart")
	}

	opts := s.docs.Options()
	s.log.Info().
		Int("chunk_size", opts.ChunkSize).
		Int("concurrency", opts.Concurrency).
		Int("max_tokens", opts.MaxTokens).
		Dur("request_timeout", opts.RequestTimeout).
		Bool("client_replaced", client != nil).
		Msg("🔄 Generator reconfigured")
	return nil
}

// metricsApp serves the prometheus registry on its own listener
func metricsApp(cfg *config.Config, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(m.Handler()))
	return app
}

func (s *server) close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close redis storage")
		}
	}
}
