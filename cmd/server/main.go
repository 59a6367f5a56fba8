package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creativehub/sync-api/internal/auth"
	"github.com/creativehub/sync-api/internal/config"
	"github.com/creativehub/sync-api/internal/db"
	"github.com/creativehub/sync-api/internal/httpapi"
	"github.com/creativehub/sync-api/internal/syncservice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	var sink io.Writer = os.Stderr
	if cfg.DevMode {
		sink = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		sink = zerolog.MultiLevelWriter(sink, rotating)
	}

	log.Logger = zerolog.New(sink).With().Timestamp().Str("service", "sync-api").Logger()
}

func main() {
	cfg, err := config.Load(os.Getenv("SYNCAPI_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogging(cfg)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("SYNCAPI_DATABASE_URL is required")
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}

	strategy, err := syncservice.ParseStrategy(cfg.ConflictStrategy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid conflict strategy")
	}

	audit := &syncservice.AuditLogger{DB: pool}
	srv := &httpapi.Server{
		DB:           pool,
		Push:         syncservice.NewPushService(pool, strategy, audit, cfg.PushBatchLimit),
		Pull:         syncservice.NewPullService(pool, cfg.PullPageSize),
		Status:       syncservice.NewStatusService(pool, audit),
		PullPageSize: cfg.PullPageSize,
		RateLimit: httpapi.RateLimitConfig{
			WindowSeconds: cfg.RateLimitWindowSeconds,
			MaxRequests:   cfg.RateLimitMaxRequests,
			Burst:         cfg.RateLimitBurst,
		},
	}

	jwtCfg := auth.JWTCfg{
		HS256Secret: cfg.JWTSecret,
		DevMode:     cfg.DevMode,
	}
	if jwtCfg.HS256Secret == "" {
		jwtCfg.HS256Secret = "dev-secret-change-in-production"
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(jwtCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("strategy", cfg.ConflictStrategy).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
