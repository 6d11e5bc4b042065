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

	"github.com/geocoder89/clubevents/internal/app"
	"github.com/geocoder89/clubevents/internal/clock"
	"github.com/geocoder89/clubevents/internal/config"
	"github.com/geocoder89/clubevents/internal/observability"
	probe "github.com/geocoder89/clubevents/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const serviceName = "clubevents-worker"

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if cfg.StoreDriver == config.StoreMemory {
		log.Error("worker needs a shared store; the API runs these loops itself with STORE_DRIVER=memory",
			"driver", cfg.StoreDriver)
		os.Exit(1)
	}

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	stores, err := app.OpenStores(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer stores.Close()

	clk := clock.System{}
	engine, err := app.NewEngine(cfg, stores, log, prom, clk)
	if err != nil {
		log.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	bg, err := app.NewBackground(cfg, stores, engine, clk, log, prom)
	if err != nil {
		log.Error("background init failed", "err", err)
		os.Exit(1)
	}
	defer bg.Close()

	ready := probe.NewReadiness(bg.Worker.Ready, bg.Metrics)
	for name, ping := range stores.Pings {
		ready.Add(name, probe.PingFunc(ping))
	}
	for name, ping := range bg.Pings {
		ready.Add(name, probe.PingFunc(ping))
	}

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           probe.NewMux(ready, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("worker has started", "store", cfg.StoreDriver, "health_port", cfg.WorkerHealthPort)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return bg.Run(gctx) })

	g.Go(func() error {
		err := healthSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		ready.MarkShuttingDown()

		shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		return healthSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	tracerCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	if err := shutdownTracer(tracerCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("worker shutdown complete")
}
