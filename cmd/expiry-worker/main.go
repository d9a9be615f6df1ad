package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("expiry-worker", cfg.Env)

	if cfg.Storage == config.StorageMemory {
		log.Fatal().Msg("expiry-worker needs shared storage, set STORAGE=postgres")
	}

	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("no_show_grace", cfg.NoShowGrace).
		Dur("waitlist_max_age", cfg.WaitlistMaxAge).
		Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rootCtx = log.Logger.WithContext(rootCtx)

	a, err := app.New(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start services")
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a)
		}
	}
}

// runOnce marks overdue appointments as no-shows and expires stale waitlist
// entries. The two sweeps are independent; a failure in one does not skip
// the other.
func runOnce(ctx context.Context, a *app.App) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()

	noShows, err := a.Appointments.MarkOverdueNoShows(runCtx, a.Config.NoShowGrace)
	if err != nil {
		log.Error().Err(err).Msg("no-show sweep failed")
	}

	expired, err := a.Waitlist.ExpireStale(runCtx, a.Config.WaitlistMaxAge)
	if err != nil {
		log.Error().Err(err).Msg("waitlist expiry failed")
	}

	log.Info().
		Int("no_shows", noShows).
		Int("waitlist_expired", expired).
		Dur("took", time.Since(start)).
		Msg("expiry run complete")
}
