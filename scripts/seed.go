package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/smartcare/backend/internal/adapters/database"
	"github.com/zatekoja/smartcare/backend/internal/application/services"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
	"github.com/zatekoja/smartcare/backend/pkg/config"
	"github.com/zatekoja/smartcare/backend/pkg/secrets"
)

// Seeds the patient directory with the demo patients so display boards show
// registered names after POST /api/admin/demo/seed.
func main() {
	lookup, err := secrets.Lookup(context.Background(), os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read configuration secrets")
	}
	cfg, err := config.LoadFrom(lookup)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", "development")

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.EnsureSchema(ctx, pgClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare schema")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating patients before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE patients`); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset patients table")
		}
	}

	directory := database.NewPatientDirectoryAdapter(pgClient)
	seeded := 0
	for _, rec := range services.DemoPatientRecords() {
		if err := directory.Upsert(ctx, &rec); err != nil {
			log.Error().Err(err).Str("patient_id", rec.ID).Msg("Failed to seed patient")
			continue
		}
		seeded++
	}

	log.Info().Int("patients", seeded).Msg("Patient directory seeded")
}
