package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/scriptgen/internal/cache"
	"github.com/gosight/gosight/scriptgen/internal/config"
	"github.com/gosight/gosight/scriptgen/internal/enricher"
	"github.com/gosight/gosight/scriptgen/internal/handler"
	"github.com/gosight/gosight/scriptgen/internal/pipeline"
	"github.com/gosight/gosight/scriptgen/internal/processor"
	"github.com/gosight/gosight/scriptgen/internal/storage"
	"github.com/gosight/gosight/scriptgen/internal/validation"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/scriptgen.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}

	log.Info().
		Int("port", cfg.Server.HTTPPort).
		Str("default_target", cfg.Generator.DefaultTarget).
		Str("redis_addr", cfg.Redis.Addr).
		Str("clickhouse_addr", cfg.ClickHouse.Addr).
		Msg("Starting GoSight script API...")

	validator, err := validation.NewValidator(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create validator")
	}
	defer validator.Close()
	log.Info().Bool("api_keys", validator.Enabled()).Msg("Validator initialized")

	scriptCache := cache.NewScriptCache(cfg.Redis, cfg.Cache.TTL)
	defer scriptCache.Close()

	clientEnricher := enricher.NewEnricher(cfg.GeoIP.DatabasePath)
	defer clientEnricher.Close()

	// Audit rows are optional; a nil store makes Record a no-op
	var store processor.ConversionStore
	if cfg.ClickHouse.Addr != "" {
		ch, err := storage.NewClickHouse(cfg.ClickHouse)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to ClickHouse")
		}
		defer ch.Close()
		store = ch
		log.Info().Msg("Connected to ClickHouse")
	}

	converter := pipeline.NewConverter(cfg.Generator)
	recorder := processor.NewScriptProcessor(converter, nil, store, cfg.Batch)

	httpHandler := handler.NewHTTPHandler(converter, validator, scriptCache, recorder, clientEnricher, handler.Options{
		DefaultTarget: cfg.Generator.DefaultTarget,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(handler.CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Mount("/v1", httpHandler.Routes())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: r,
	}

	go func() {
		log.Info().Int("port", cfg.Server.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown did not complete")
	}
	recorder.Stop()
	log.Info().Msg("Server stopped")
}
