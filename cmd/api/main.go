package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/clubevents/internal/app"
	"github.com/geocoder89/clubevents/internal/clock"
	"github.com/geocoder89/clubevents/internal/config"
	httpx "github.com/geocoder89/clubevents/internal/http"
	"github.com/geocoder89/clubevents/internal/http/handlers"
	"github.com/geocoder89/clubevents/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "clubevents-api"

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	checks := map[string]handlers.Check{}
	for name, ping := range stores.Pings {
		checks[name] = ping
	}

	// The memory store is private to this process, so nothing else could
	// sweep it or drain its outbox.
	bgDone := make(chan struct{})
	if !stores.Shared() {
		bg, err := app.NewBackground(cfg, stores, engine, clk, log, prom)
		if err != nil {
			log.Error("background init failed", "err", err)
			os.Exit(1)
		}
		defer bg.Close()
		for name, ping := range bg.Pings {
			checks[name] = ping
		}

		go func() {
			defer close(bgDone)
			if err := bg.Run(ctx); err != nil {
				log.Error("background loops stopped", "err", err)
			}
		}()
		log.Info("in-process sweeper and outbox worker started", "driver", stores.Driver)
	} else {
		close(bgDone)
	}

	// set up routers with the log
	router := httpx.NewRouter(httpx.RouterDeps{
		Env:                cfg.Env,
		ServiceName:        serviceName,
		Log:                log,
		Service:            engine,
		Checks:             checks,
		Prom:               prom,
		Gatherer:           reg,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
		<-bgDone
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
