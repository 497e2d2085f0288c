package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/smartcare/backend/internal/adapters/events"
	"github.com/zatekoja/smartcare/backend/internal/api/handlers"
	"github.com/zatekoja/smartcare/backend/internal/api/middleware"
	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
	"github.com/zatekoja/smartcare/backend/pkg/config"
	"github.com/zatekoja/smartcare/backend/pkg/secrets"
)

func main() {
	lookup, err := secrets.Lookup(context.Background(), os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read configuration secrets")
	}
	cfg, err := config.LoadFrom(lookup)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "production"
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-sse", env)
	log.Info().Msg("Starting SSE server")

	// Redis is required: the stream only relays what the API publishes
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Redis client")
	}
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	sseHandler := handlers.NewSSEHandler(eventBus, entities.DefaultDepartments())

	health := handlers.NewHealthHandler(cfg.OTEL.ServiceVersion)
	health.AddDependency("redis", redisClient)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /api/stream/queue", sseHandler.StreamQueue)
	mux.HandleFunc("GET /api/stream/queue/{department}", sseHandler.StreamDepartment)
	mux.HandleFunc("GET /api/stream/stats", sseHandler.Stats)

	// No compression or ETag here, both buffer the response
	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(cfg.Server.AllowedOrigins)(handler)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.StreamPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams stay open
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("SSE server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("SSE server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("SSE server shutting down")

	// Closing the bus first ends every open stream
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event bus")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("SSE server stopped")
}
