package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codescribe/config"
	"codescribe/pkg/logger"
	"codescribe/pkg/metrics"
	"codescribe/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
)

var version = "1.0.0"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run returns after shutdown so deferred cleanup always happens
func run() error {
	// .env is optional
	_ = godotenv.Load()

	configManager := config.NewManager("")
	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = configManager.LoadFromFile(path)
	} else {
		err = configManager.LoadFromEnv()
	}
	if err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		return err
	}
	cfg := configManager.GetConfig()

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		// Fallback to basic logging
		fmt.Printf("❌ Failed to initialize structured logger: %v, using default\n", err)
	}

	log := logger.Get()
	ctx := logger.WithCorrelationID(context.Background())
	configManager.SetLogger(*log.Logger)

	log.FromContext(ctx).Info().Str("version", version).Msg("🚀 Starting CodeScribe backend")
	log.FromContext(ctx).Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("provider", cfg.Completion.Provider).
		Str("model", cfg.Completion.Model).
		Int("chunk_size", cfg.Generator.ChunkSize).
		Int("concurrency", cfg.Generator.Concurrency).
		Bool("redis_rate_limit", cfg.RedisEnabled()).
		Str("config_file", configManager.ConfigPath()).
		Msg("📍 Configuration loaded")

	if cfg.Completion.APIKey == "" {
		log.FromContext(ctx).Warn().Msg("⚠️  OPENAI_API_KEY is not set; completion requests will be rejected upstream")
	}

	validator.Init(cfg.ValidatorConfig())

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
		m = metrics.Get()
	}

	srv, err := newServer(cfg, log, m)
	if err != nil {
		log.FromContext(ctx).Error().Err(err).Msg("❌ Failed to initialize server")
		return err
	}
	defer srv.close()

	configManager.AddWatcher(srv.onConfigChange)
	if err := configManager.StartWatching(); err != nil {
		log.FromContext(ctx).Warn().Err(err).Msg("⚠️  Config hot reload disabled")
	}
	defer configManager.StopWatching()

	var metricsServer *fiber.App
	if m != nil {
		metricsServer = metricsApp(cfg, m)
		go func() {
			log.FromContext(ctx).Info().
				Str("port", cfg.Metrics.Port).
				Str("path", cfg.Metrics.Path).
				Msg("📊 Metrics server starting")

			if err := metricsServer.Listen(":" + cfg.Metrics.Port); err != nil {
				log.FromContext(ctx).Error().Err(err).Msg("❌ Failed to start metrics server")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	return serve(ctx, log, cfg, srv, metricsServer, quit)
}

// serve runs the HTTP listener until a signal arrives or the listener fails,
// then shuts down both servers.
func serve(ctx context.Context, log *logger.Logger, cfg *config.Config, srv *server, metricsServer *fiber.App, quit <-chan os.Signal) error {
	listenErr := make(chan error, 1)
	go func() {
		log.FromContext(ctx).Info().
			Str("port", cfg.Server.Port).
			Msg("🌐 HTTP Server starting")

		if err := srv.app.Listen(":" + cfg.Server.Port); err != nil {
			listenErr <- err
		}
	}()

	var err error
	select {
	case sig := <-quit:
		log.FromContext(ctx).Info().Str("signal", sig.String()).Msg("🛑 Shutting down server...")
	case err = <-listenErr:
		log.FromContext(ctx).Error().Err(err).Msg("❌ Failed to start HTTP server")
	}

	if shutdownErr := srv.app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); shutdownErr != nil {
		log.FromContext(ctx).Error().Err(shutdownErr).Msg("❌ Server shutdown error")
	}
	if metricsServer != nil {
		if shutdownErr := metricsServer.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); shutdownErr != nil {
			log.FromContext(ctx).Error().Err(shutdownErr).Msg("❌ Metrics server shutdown error")
		}
	}

	log.FromContext(ctx).Info().Msg("✅ Server stopped")
	return err
}
