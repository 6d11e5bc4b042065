// Package scheduler drives the periodic status sweep.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/clubevents/internal/clock"
	"github.com/geocoder89/clubevents/internal/lifecycle"
	"github.com/geocoder89/clubevents/internal/observability"
)

const DefaultInterval = 60 * time.Second

// Advancer is the engine entry point the sweep calls.
type Advancer interface {
	AdvanceStatuses(ctx context.Context, now time.Time) (lifecycle.SweepResult, error)
}

// Locker grants a named lease. An error means the lease is held elsewhere or
// the lock backend is unreachable; either way the tick is skipped.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

type Config struct {
	Interval time.Duration
	// Timeout bounds a single pass; it defaults to the interval.
	Timeout  time.Duration
	LockName string
}

type Sweeper struct {
	cfg    Config
	engine Advancer
	clock  clock.Clock
	locker Locker
	log    *slog.Logger
}

func NewSweeper(cfg Config, engine Advancer, clk clock.Clock, locker Locker, log *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if cfg.LockName == "" {
		cfg.LockName = "status-sweep"
	}
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = observability.Discard()
	}
	return &Sweeper{cfg: cfg, engine: engine, clock: clk, locker: locker, log: log}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.InfoContext(ctx, "sweeper started", "interval", s.cfg.Interval.String())

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick never returns an error: a failed pass is retried on the next tick.
func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.ErrorContext(ctx, "sweep failed", "err", err)
	}
}

// SweepOnce runs one pass if this process holds the lease. A skipped pass
// returns a zero result and nil.
func (s *Sweeper) SweepOnce(ctx context.Context) (lifecycle.SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.locker != nil {
		release, err := s.locker.TryLock(ctx, s.cfg.LockName, s.cfg.Timeout)
		if err != nil {
			s.log.DebugContext(ctx, "sweep skipped; lease not acquired", "err", err)
			return lifecycle.SweepResult{}, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.WarnContext(ctx, "sweep lease release failed", "err", err)
			}
		}()
	}

	return s.engine.AdvanceStatuses(ctx, s.clock.Now())
}
