package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("api-server", cfg.Env)

	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.Storage).
		Str("lock_backend", cfg.LockBackend).
		Str("timezone", cfg.Location.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start services")
	}
	defer a.Close()

	matcherCtx, stopMatcher := context.WithCancel(context.Background())
	matcherDone := make(chan struct{})
	go func() {
		defer close(matcherDone)
		a.Waitlist.Run(log.Logger.WithContext(matcherCtx))
	}()

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Appointments: a.Appointments,
			Schedules:    a.Schedules,
			Availability: a.Availability,
			Waitlist:     a.Waitlist,
			Triage:       a.Triage,
			Health:       api.NewHealthHandler(cfg.Env, version, a.Checks...),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// bookings in flight have finished, the matcher can stop
	stopMatcher()
	select {
	case <-matcherDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("waitlist matcher did not stop in time")
	}

	log.Info().Msg("api-server stopped")
}
