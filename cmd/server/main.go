package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"leadcapture/internal/app"
	"leadcapture/internal/platform/config"
	"leadcapture/internal/platform/httpserver"
	"leadcapture/internal/platform/logger"
	"leadcapture/internal/platform/otel"
)

const serviceName = "leadcapture"

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, cfg.Otel, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("failed to release resources", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Addr, a.Router(reg), cfg.HTTP, log)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting leadcapture", "addr", cfg.Addr, "storage", cfg.Storage.Driver)
		return srv.Run(gctx)
	})

	if a.Drainer != nil {
		g.Go(func() error {
			log.Info("outbox drainer started", "interval", cfg.Remote.OutboxInterval)
			return a.Drainer.Run(gctx)
		})
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.SweepInterval > 0 {
		g.Go(func() error {
			return a.Limiter.Run(gctx, cfg.RateLimit.SweepInterval)
		})
	}

	return g.Wait()
}
