// Package app assembles the service from configuration. The server and the
// operator CLI share it so both read the same storage the same way.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"leadcapture/internal/exitintent"
	"leadcapture/internal/intake"
	"leadcapture/internal/kv"
	"leadcapture/internal/kv/rediskv"
	"leadcapture/internal/kv/sqlkv"
	"leadcapture/internal/lead/capture"
	"leadcapture/internal/lead/localstore"
	"leadcapture/internal/lead/outbox"
	"leadcapture/internal/lead/remote"
	"leadcapture/internal/platform/config"
	"leadcapture/internal/platform/metrics"
	"leadcapture/internal/platform/redis"
	"leadcapture/internal/ratelimit"
	"leadcapture/internal/reconcile"
	"leadcapture/pkg/platform/circuit"
)

// App holds the wired services. Close releases storage and flushes sinks.
type App struct {
	Config     config.Server
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Store      kv.Store
	Leads      *localstore.Store
	Sink       remote.Sink
	Recorder   *capture.Recorder
	Intake     *intake.Service
	ExitIntent *exitintent.Service
	Reconciler *reconcile.Reconciler
	Limiter    *ratelimit.Limiter
	// Drainer is nil unless the outbox is enabled.
	Drainer *outbox.Drainer

	storageHealth func(ctx context.Context) error
	closers       []func() error
}

// Backend is an opened key-value store with its lifecycle hooks.
type Backend struct {
	Store kv.Store
	Close func() error
	// Health is nil for backends with nothing to probe.
	Health func(ctx context.Context) error
}

// OpenStorage opens the configured key-value backend.
func OpenStorage(ctx context.Context, cfg config.Server) (Backend, error) {
	noop := func() error { return nil }
	switch strings.ToLower(cfg.Storage.Driver) {
	case config.DriverMemory:
		return Backend{Store: kv.NewMemoryStore(), Close: noop}, nil
	case config.DriverRedis:
		client, err := redis.Dial(ctx, cfg.Redis)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: rediskv.New(client.Client), Close: client.Close, Health: client.Health}, nil
	case config.DriverSQLite:
		store, err := sqlkv.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: store, Close: store.Close, Health: store.Health}, nil
	case config.DriverPostgres:
		store, err := sqlkv.OpenPostgres(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Store: store, Close: store.Close, Health: store.Health}, nil
	default:
		return Backend{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// New wires every service. reg may be nil to skip metrics.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if reg != nil {
		a.Metrics = metrics.New(reg)
	}

	backend, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	store := backend.Store
	a.Store = store
	a.storageHealth = backend.Health
	a.closers = append(a.closers, backend.Close)

	loc, err := time.LoadLocation(cfg.Capture.DateLocation)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load date location: %w", err)
	}

	a.Leads = localstore.New(store, logger, localstore.WithMetrics(a.Metrics))
	if err := a.wireSinks(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Recorder = capture.NewRecorder(a.Leads, a.Sink, logger,
		capture.WithLocation(loc),
		capture.WithMetrics(a.Metrics),
	)
	a.Intake = intake.NewService(store, a.Recorder, logger,
		intake.WithSessionTTL(cfg.Capture.SessionTTL),
		intake.WithSubmitDelay(cfg.Capture.SubmitDelay),
		intake.WithMetrics(a.Metrics),
	)
	a.ExitIntent = exitintent.NewService(store, a.Recorder, logger,
		exitintent.WithSessionTTL(cfg.Capture.SessionTTL),
		exitintent.WithSubmitDelay(cfg.Capture.ExitIntentDelay),
		exitintent.WithMetrics(a.Metrics),
	)

	opts := []reconcile.Option{
		reconcile.WithDeleteWindow(cfg.Admin.DeleteWindow),
		reconcile.WithMetrics(a.Metrics),
		reconcile.WithBreaker(circuit.New("spreadsheet-export",
			circuit.WithFailureThreshold(cfg.Remote.BreakerThreshold),
			circuit.WithCooldown(cfg.Remote.BreakerCooldown),
		)),
	}
	if cfg.Remote.ExportURL != "" {
		exporter := remote.NewExportClient(cfg.Remote.ExportURL, remote.NewHTTPClient(cfg.Remote.ExportTimeout))
		opts = append(opts, reconcile.WithExporter(exporter))
	}
	a.Reconciler = reconcile.New(a.Leads, store, logger, opts...)
	a.Limiter = ratelimit.New(map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassCapture: {Requests: cfg.RateLimit.CaptureRequests, Window: cfg.RateLimit.Window},
		ratelimit.ClassLogin:   {Requests: cfg.RateLimit.LoginRequests, Window: cfg.RateLimit.Window},
	})
	return a, nil
}

const kafkaEnsureTimeout = 10 * time.Second

// wireSinks picks the delivery mode. With the outbox enabled the webhook is
// reached only through the drainer; otherwise leads are fired directly.
func (a *App) wireSinks(ctx context.Context) error {
	cfg := a.Config
	var sinks []remote.Sink

	if cfg.Remote.WebhookURL != "" {
		webhook := remote.NewWebhookSink(cfg.Remote.WebhookURL, cfg.Remote.WebhookTimeout, a.Logger,
			remote.WithWebhookClient(remote.NewHTTPClient(cfg.Remote.WebhookTimeout)),
			remote.WithWebhookMetrics(a.Metrics),
		)
		if cfg.Remote.OutboxEnabled {
			sinks = append(sinks, outbox.NewSink(a.Store, a.Logger, a.Metrics))
			a.Drainer = outbox.NewDrainer(a.Store, webhook, cfg.Remote.OutboxInterval, a.Logger,
				outbox.WithMetrics(a.Metrics))
		} else {
			sinks = append(sinks, webhook)
		}
	} else {
		a.Logger.Warn("LEAD_WEBHOOK_URL not set, leads are kept locally only")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		k, err := remote.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.Logger, a.Metrics)
		if err != nil {
			return err
		}
		if cfg.Kafka.EnsureTopic {
			ensureCtx, cancel := context.WithTimeout(ctx, kafkaEnsureTimeout)
			if err := k.EnsureTopic(ensureCtx); err != nil {
				a.Logger.Warn("kafka topic not ensured, relying on broker auto-create", "topic", cfg.Kafka.Topic, "error", err)
			}
			cancel()
		}
		sinks = append(sinks, k)
		a.closers = append(a.closers, func() error {
			k.Close()
			return nil
		})
	}

	a.Sink = remote.NewFanoutSink(sinks...)
	return nil
}

// Close waits for in-flight deliveries then releases resources in reverse
// order.
func (a *App) Close() error {
	if w, ok := a.Sink.(remote.Waiter); ok {
		w.Wait()
	}
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
