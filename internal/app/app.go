// Package app assembles the scheduling services from configuration. The
// API server and the worker binaries share it so both run on the same
// stores and locks.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/retry"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/seed"
	"github.com/hackgods/clinic-scheduling/internal/triage"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type App struct {
	Config       config.Config
	Catalog      catalog.Catalog
	Schedules    *schedule.Service
	Availability *availability.Engine
	Appointments *appointment.Service
	Waitlist     *waitlist.Service
	Triage       *triage.Service
	Checks       []api.Check
	// Demo is the generated dataset behind memory storage.
	Demo *seed.Dataset

	pool  *pgxpool.Pool
	redis *redis.Client
}

type stores struct {
	catalog      catalog.Catalog
	templates    schedule.Repository
	appointments appointment.Repository
	waitlist     waitlist.Repository
}

// New connects the configured backends and wires the services together,
// including the freed-slot and capacity hooks that feed the waitlist.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	st, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy := retry.DefaultPolicy()
	policy.Attempts = cfg.ConflictRetries

	a.Catalog = catalog.WithTimeout(st.catalog, cfg.CatalogTimeout)
	a.Schedules = schedule.NewService(st.templates, a.Catalog, policy)
	a.Availability = availability.NewEngine(a.Catalog, st.templates, st.appointments, cfg.Location)
	a.Appointments = appointment.NewService(st.appointments, a.Catalog, a.Availability, locker, cfg.Location,
		appointment.WithRetry(policy))
	a.Waitlist = waitlist.NewService(st.waitlist, a.Catalog, a.Appointments, a.Availability, waitlist.AutoAcceptOfferer{},
		waitlist.Options{
			MaxDeclines:  cfg.WaitlistMaxDeclines,
			OfferTimeout: cfg.WaitlistOfferTimeout,
			HorizonDays:  cfg.WaitlistHorizonDays,
			QueueSize:    cfg.WaitlistQueueSize,
			Retry:        policy,
		})

	a.Appointments.OnSlotFreed(a.Waitlist.Notify)
	a.Schedules.OnCapacityAdded(a.Waitlist.NotifyCapacityAdded)

	var classifier triage.Classifier
	if cfg.ClassifierEnabled() {
		classifier = triage.NewOpenAIClient(triage.OpenAIConfig{
			BaseURL: cfg.ClassifierURL,
			APIKey:  cfg.ClassifierAPIKey,
			Model:   cfg.ClassifierModel,
			Timeout: cfg.ClassifierTimeout,
			RPM:     cfg.ClassifierRPM,
		})
		log.Info().Str("model", cfg.ClassifierModel).Bool("prefer_ai", cfg.TriagePreferAI).Msg("triage classifier enabled")
	}
	a.Triage = triage.NewService(classifier, cfg.TriagePreferAI)

	return a, nil
}

func (a *App) openStores(ctx context.Context) (stores, error) {
	if a.Config.Storage == config.StorageMemory {
		cat := catalog.NewMemory()
		templates := schedule.NewMemoryRepository()
		demo := seed.Generate(seed.Options{Units: 2, ProfessionalsPerUnit: 4, Patients: 50})
		if err := seed.LoadMemory(ctx, cat, templates, demo); err != nil {
			return stores{}, fmt.Errorf("load demo data: %w", err)
		}
		a.Demo = &demo
		log.Warn().Msg("using in-memory storage with generated demo data, nothing is persisted")
		return stores{
			catalog:      cat,
			templates:    templates,
			appointments: appointment.NewMemoryRepository(),
			waitlist:     waitlist.NewMemoryRepository(),
		}, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, a.Config.PostgresDSN, db.PoolOptions{})
	if err != nil {
		return stores{}, fmt.Errorf("postgres connection error: %w", err)
	}
	a.pool = pool
	a.Checks = append(a.Checks, api.Check{Name: "postgres", Critical: true, Ping: pool.Ping})

	if err := db.EnsureSchema(pgCtx, pool); err != nil {
		return stores{}, err
	}
	log.Info().Msg("connected to Postgres")

	return stores{
		catalog:      catalog.NewPg(pool),
		templates:    schedule.NewPgRepository(pool),
		appointments: appointment.NewPgRepository(pool),
		waitlist:     waitlist.NewPgRepository(pool),
	}, nil
}

func (a *App) openLocker(ctx context.Context) (lock.Locker, error) {
	if a.Config.LockBackend == config.LockLocal {
		log.Warn().Msg("using process-local slot locks, run a single instance only")
		return lock.NewLocal(), nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     a.Config.RedisAddr,
		Username: a.Config.RedisUsername,
		Password: a.Config.RedisPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	a.redis = rdb
	a.Checks = append(a.Checks, api.Check{
		Name: "redis",
		Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	log.Info().Msg("connected to Redis")

	return redisclient.NewRedisSlotLocker(rdb, a.Config.LockTTL, a.Config.LockWait), nil
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
