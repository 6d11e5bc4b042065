package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/geocoder89/clubevents/internal/clock"
	"github.com/geocoder89/clubevents/internal/config"
	"github.com/geocoder89/clubevents/internal/notifications"
	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/geocoder89/clubevents/internal/queue/redisclient"
	"github.com/geocoder89/clubevents/internal/queue/worker"
	"github.com/geocoder89/clubevents/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// Background is the status sweeper plus the outbox worker.
type Background struct {
	Sweeper *scheduler.Sweeper
	Worker  *worker.Worker
	Metrics *observability.JobMetrics
	Pings   map[string]func(ctx context.Context) error

	closers []func()
}

// NewBackground wires the sweeper and the outbox worker. With REDIS_ADDR set
// the sweep is guarded by a Redis lease so only one replica advances
// statuses per tick; NATS_URL adds a NATS publisher to the delivery chain.
func NewBackground(cfg config.Config, st *Stores, engine scheduler.Advancer, clk clock.Clock, log *slog.Logger, prom *observability.Prom) (*Background, error) {
	b := &Background{
		Metrics: observability.NewJobMetrics(),
		Pings:   map[string]func(context.Context) error{},
	}

	var locker scheduler.Locker
	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		b.closers = append(b.closers, func() { _ = rc.Close() })
		b.Pings["redis"] = rc.Ping
		locker = redisclient.NewLocker(rc, "")
	}

	b.Sweeper = scheduler.NewSweeper(scheduler.Config{Interval: cfg.SweepInterval}, engine, clk, locker, log)

	notifier, closeNotifier, err := NewDeliveryNotifier(cfg, log)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, closeNotifier)

	b.Worker = worker.New(worker.Config{
		PollInterval:  cfg.WorkerPollInterval,
		WorkerID:      workerID(),
		Concurrency:   cfg.WorkerConcurrency,
		ShutdownGrace: 10 * time.Second,
	}, st.Jobs, notifier, log, b.Metrics, prom)

	if st.Deliveries != nil {
		b.Worker.UseDeliveryGuard(st.Deliveries)
	}

	return b, nil
}

// Run blocks until ctx is done and both loops have stopped.
func (b *Background) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Sweeper.Run(ctx) })
	g.Go(func() error { return b.Worker.Run(ctx) })
	return g.Wait()
}

func (b *Background) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// NewDeliveryNotifier builds the provider chain the worker delivers through:
// the structured log always, NATS when configured, behind a timeout and a
// circuit breaker.
func NewDeliveryNotifier(cfg config.Config, log *slog.Logger) (notifications.Notifier, func(), error) {
	targets := []notifications.Notifier{
		notifications.NewLogNotifier(log, notifications.LogNotifierConfig{}),
	}
	closeFn := func() {}

	if cfg.NATSURL != "" {
		nn, err := notifications.NewNATSNotifier(cfg.NATSURL, "clubevents-"+workerID())
		if err != nil {
			return nil, nil, fmt.Errorf("nats: %w", err)
		}
		targets = append(targets, nn)
		closeFn = func() {
			if err := nn.Close(); err != nil {
				log.Warn("nats drain failed", "err", err)
			}
		}
	}

	return notifications.NewProtectedNotifier(
		notifications.NewMultiNotifier(targets...),
		notifications.ProtectedNotifierConfig{Timeout: cfg.NotifierTimeout},
	), closeFn, nil
}

func workerID() string {
	host, _ := os.Hostname()
	return host + "-" + strconv.Itoa(os.Getpid())
}
