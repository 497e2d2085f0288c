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
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/smartcare/backend/internal/adapters/cache"
	"github.com/zatekoja/smartcare/backend/internal/adapters/database"
	"github.com/zatekoja/smartcare/backend/internal/adapters/events"
	"github.com/zatekoja/smartcare/backend/internal/api/handlers"
	"github.com/zatekoja/smartcare/backend/internal/api/middleware"
	"github.com/zatekoja/smartcare/backend/internal/api/routes"
	"github.com/zatekoja/smartcare/backend/internal/application/services"
	"github.com/zatekoja/smartcare/backend/internal/domain/providers"
	"github.com/zatekoja/smartcare/backend/internal/domain/repositories"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
	"github.com/zatekoja/smartcare/backend/pkg/config"
	"github.com/zatekoja/smartcare/backend/pkg/secrets"
	"github.com/zatekoja/smartcare/backend/pkg/utils"
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
	observability.InitLogger(cfg.OTEL.ServiceName, env)

	log.Info().
		Str("service", cfg.OTEL.ServiceName).
		Str("version", cfg.OTEL.ServiceVersion).
		Str("env", env).
		Msg("Starting triage API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	var normalizer *utils.SymptomNormalizer
	if path := cfg.Triage.AbbreviationsFile; path != "" {
		normalizer, err = utils.NewSymptomNormalizer(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to load symptom vocabulary")
		}
	}

	hospital := services.NewHospital(cfg, normalizer)
	if metrics != nil {
		hospital.SetMetrics(metrics)
		if err := metrics.ObserveQueueDepth(hospital.Board.Depths); err != nil {
			log.Warn().Err(err).Msg("Failed to register queue depth gauge")
		}
	}

	health := handlers.NewHealthHandler(cfg.OTEL.ServiceVersion)
	g, gctx := errgroup.WithContext(ctx)

	// Redis: idempotent replay, board snapshot cache and the event stream.
	// The API keeps working without it.
	var cacheMiddleware *middleware.CacheMiddleware
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis client; running without cache and events")
		} else {
			defer redisClient.Close()
			health.AddDependency("redis", redisClient)

			cacheProvider := cache.NewRedisAdapter(redisClient)
			hospital.Queue.SetCache(cacheProvider)
			cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, nil)

			eventBus = events.NewRedisEventBus(redisClient)
			publisher := services.NewEventPublisher(eventBus, cfg.Archive.BufferSize)
			publisher.SetMetrics(metrics)
			// background recalculation and allocation also invalidate board snapshots
			hospital.SetEventEmitter(services.Emitters{publisher, cacheMiddleware})
			g.Go(func() error { return publisher.Run(gctx) })
			log.Info().Msg("Redis cache and event bus initialized")
		}
	}

	// PostgreSQL: audit archive and patient directory
	var archive repositories.AuditArchive
	if cfg.Database.Enabled {
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()
		if err := database.EnsureSchema(ctx, pgClient); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare database schema")
		}
		health.AddDependency("postgres", pgClient)

		hospital.Queue.SetPatientDirectory(database.NewPatientDirectoryAdapter(pgClient))
		if cfg.Archive.Enabled {
			archive = database.NewAuditArchiveAdapter(pgClient)
			forwarder := services.NewArchiveForwarder(archive, cfg.Archive.BufferSize)
			forwarder.SetMetrics(metrics)
			hospital.SetArchive(forwarder)
			g.Go(func() error { return forwarder.Run(gctx) })
			log.Info().Msg("Audit archive enabled")
		}
	}

	router := routes.NewRouter(
		routes.Handlers{
			Queue:      handlers.NewQueueHandler(hospital.Queue),
			Crowd:      handlers.NewCrowdHandler(hospital.Crowd, hospital.Queue),
			Doctors:    handlers.NewDoctorHandler(hospital.Pool, hospital.Roster),
			Allocation: handlers.NewAllocationHandler(hospital.Allocator, hospital.Protector, hospital.Roster),
			Emergency:  handlers.NewEmergencyHandler(hospital.Overrides, archive),
			Activity:   handlers.NewActivityHandler(hospital.Activity),
			Admin:      handlers.NewAdminHandler(hospital.Demo),
			Health:     health,
		},
		middleware.NewActorRateLimiter(cfg.Override.RatePerMinute, cfg.Override.Burst),
		cacheMiddleware,
		metrics,
		cfg.Server.AllowedOrigins,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error { return hospital.Queue.Run(gctx, cfg.Queue.RecalculateInterval) })
	g.Go(func() error { return hospital.Allocator.Run(gctx, cfg.Allocator.Interval) })

	g.Go(func() error {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Server stopped with error")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}
	log.Info().Msg("Server stopped")
}
