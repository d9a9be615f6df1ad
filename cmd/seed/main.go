package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("seed", cfg.Env)

	if cfg.Storage != config.StoragePostgres {
		log.Fatal().Msg("seed writes to Postgres, set STORAGE=postgres")
	}

	opts := seed.Options{
		Units:                getInt("SEED_UNITS", 5),
		ProfessionalsPerUnit: getInt("SEED_PROFESSIONALS_PER_UNIT", 12),
		Patients:             getInt("SEED_PATIENTS", 5000),
		Seed:                 uint64(getInt("SEED_RANDOM_SEED", 0)),
	}
	log.Info().
		Int("units", opts.Units).
		Int("professionals_per_unit", opts.ProfessionalsPerUnit).
		Int("patients", opts.Patients).
		Msg("seed starting")

	ctx := log.Logger.WithContext(context.Background())

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.EnsureSchema(connectCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	if err := seed.WritePostgres(ctx, pool, seed.Generate(opts)); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	log.Info().Msg("seed complete")
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
