package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/clubevents/internal/clock"
	"github.com/geocoder89/clubevents/internal/config"
	"github.com/geocoder89/clubevents/internal/db"
	"github.com/geocoder89/clubevents/internal/jobs"
	"github.com/geocoder89/clubevents/internal/lifecycle"
	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/geocoder89/clubevents/internal/queue/worker"
	"github.com/geocoder89/clubevents/internal/repo/memory"
	"github.com/geocoder89/clubevents/internal/repo/postgres"
	"github.com/geocoder89/clubevents/internal/repo/sqlite"
	"github.com/geocoder89/clubevents/internal/validation"
)

const sportCacheTTL = 5 * time.Minute

// JobStore is the outbox as both the engine and the delivery worker use it.
type JobStore interface {
	jobs.Enqueuer
	worker.JobsRepository
}

// Stores is one storage backend, selected by STORE_DRIVER.
type Stores struct {
	Driver        string
	Events        lifecycle.EventStore
	Registrations lifecycle.RegistrationStore
	Jobs          JobStore
	// Deliveries is nil when the backend has no delivery ledger.
	Deliveries jobs.DeliveryGuard
	// Sports is nil when no catalog is configured; any sportId is accepted then.
	Sports validation.SportCatalog
	Pings  map[string]func(ctx context.Context) error

	closers []func()
}

// Shared reports whether other processes see the same rows. The memory
// backend is private to the process that opened it.
func (s *Stores) Shared() bool { return s.Driver != config.StoreMemory }

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStores connects and migrates the configured backend.
func OpenStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (*Stores, error) {
	st := &Stores{Driver: cfg.StoreDriver, Pings: map[string]func(context.Context) error{}}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		events := memory.NewEventsRepo()
		st.Events = events
		st.Registrations = memory.NewRegistrationsRepo(events)
		st.Jobs = memory.NewJobsRepo(nil)
		st.Deliveries = memory.NewDeliveriesRepo(jobs.DeliveryLease, nil)
		st.Sports = staticCatalog(cfg.SportIDs)

	case config.StorePostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DBURL, MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)

		if err := db.Migrate(ctx, pool); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}

		sports := postgres.NewSportsRepo(pool, prom)
		if err := sports.Ensure(ctx, cfg.SportIDs...); err != nil {
			st.Close()
			return nil, fmt.Errorf("seed sports: %w", err)
		}

		st.Events = postgres.NewEventsRepo(pool, prom)
		st.Registrations = postgres.NewRegistrationsRepo(pool, prom)
		st.Jobs = postgres.NewJobsRepo(pool, prom)
		st.Deliveries = postgres.NewNotificationDeliveriesRepo(pool, prom, jobs.DeliveryLease)
		st.Sports = validation.NewCachedCatalog(sports, sportCacheTTL)
		st.Pings["db"] = pool.Ping

	case config.StoreSQLite:
		sqldb, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		st.closers = append(st.closers, func() { _ = sqldb.Close() })

		if err := sqlite.Migrate(ctx, sqldb); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}

		st.Events = sqlite.NewEventsRepo(sqldb, prom)
		st.Registrations = sqlite.NewRegistrationsRepo(sqldb, prom)
		st.Jobs = sqlite.NewJobsRepo(sqldb, prom, nil)
		st.Sports = staticCatalog(cfg.SportIDs)
		st.Pings["db"] = sqldb.PingContext

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	log.Info("store opened", "driver", cfg.StoreDriver)
	return st, nil
}

func staticCatalog(ids []string) validation.SportCatalog {
	if len(ids) == 0 {
		return nil
	}
	return validation.NewStaticCatalog(ids...)
}

// NewEngine builds the lifecycle engine over st. Notifications go to the
// outbox; a worker delivers them.
func NewEngine(cfg config.Config, st *Stores, log *slog.Logger, prom *observability.Prom, clk clock.Clock) (*lifecycle.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return lifecycle.New(st.Events, st.Registrations, clk,
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(prom),
		lifecycle.WithLocation(loc),
		lifecycle.WithSportCatalog(st.Sports),
		lifecycle.WithNotifier(jobs.NewQueueNotifier(st.Jobs, jobs.DefaultMaxAttempts)),
		lifecycle.WithNotifyTimeout(cfg.NotifierTimeout),
	), nil
}
