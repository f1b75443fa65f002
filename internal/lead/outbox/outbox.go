// Package outbox is the opt-in confirmed-delivery mode. Leads are queued in
// the key-value store as pending and a drainer posts them to the webhook,
// retrying with exponential backoff and dropping each entry once delivered.
// Delivery is at least once.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"leadcapture/internal/kv"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/platform/metrics"
)

// Key holds the pending deliveries.
const Key = "outbox"

// Entry is one pending delivery.
type Entry struct {
	Record   models.LeadRecord `json:"record"`
	QueuedAt time.Time         `json:"queued_at"`
	Attempts int               `json:"attempts"`
}

// Deliverer posts a lead and reports whether the endpoint accepted it.
type Deliverer interface {
	PostChecked(ctx context.Context, rec models.LeadRecord) error
}

func decode(raw []byte) []Entry {
	if len(raw) == 0 {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}

// Sink queues leads instead of delivering them.
type Sink struct {
	kv      kv.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewSink(store kv.Store, logger *slog.Logger, m *metrics.Metrics) *Sink {
	return &Sink{kv: store, logger: logger, metrics: m, now: time.Now}
}

func (s *Sink) Send(ctx context.Context, rec models.LeadRecord) {
	var pending int
	err := s.kv.Update(ctx, Key, func(current []byte, _ bool) ([]byte, error) {
		entries := append(decode(current), Entry{Record: rec, QueuedAt: s.now().UTC()})
		pending = len(entries)
		return json.Marshal(entries)
	})
	if err != nil {
		s.metrics.IncRemoteWriteFailure("outbox")
		s.logger.ErrorContext(ctx, "queue lead for delivery", "lead_id", rec.ID, "error", err)
		return
	}
	s.metrics.IncRemoteSend("outbox")
	s.metrics.SetOutboxPending(pending)
}

// Pending lists queued deliveries, oldest first.
func Pending(ctx context.Context, store kv.Store) ([]Entry, error) {
	raw, err := store.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	return decode(raw), nil
}

// Drainer periodically delivers pending entries.
type Drainer struct {
	kv          kv.Store
	deliverer   Deliverer
	interval    time.Duration
	maxRetries  uint64
	initialWait time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Drainer)

// WithRetry bounds the per-entry retries within one drain pass.
func WithRetry(maxRetries uint64, initialWait time.Duration) Option {
	return func(d *Drainer) {
		d.maxRetries = maxRetries
		d.initialWait = initialWait
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Drainer) {
		d.metrics = m
	}
}

func NewDrainer(store kv.Store, deliverer Deliverer, interval time.Duration, logger *slog.Logger, opts ...Option) *Drainer {
	d := &Drainer{
		kv:          store,
		deliverer:   deliverer,
		interval:    interval,
		maxRetries:  4,
		initialWait: 500 * time.Millisecond,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run drains on every tick until ctx is done.
func (d *Drainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		if _, err := d.DrainOnce(ctx); err != nil {
			d.logger.WarnContext(ctx, "outbox drain failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Drainer) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.initialWait
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, d.maxRetries), ctx)
}

// DrainOnce tries every pending entry once (with retries) and removes those
// that were delivered. Entries that still fail stay queued with their attempt
// count bumped.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	entries, err := Pending(ctx, d.kv)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		d.metrics.SetOutboxPending(0)
		return 0, nil
	}

	delivered := make(map[string]bool, len(entries))
	failed := make(map[string]int)
	for _, e := range entries {
		attempts := 0
		op := func() error {
			attempts++
			return d.deliverer.PostChecked(ctx, e.Record)
		}
		if err := backoff.Retry(op, d.policy(ctx)); err != nil {
			failed[e.Record.ID] = attempts
			d.logger.WarnContext(ctx, "outbox delivery failed",
				"lead_id", e.Record.ID,
				"attempts", e.Attempts+attempts,
				"error", err,
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		delivered[e.Record.ID] = true
	}

	var pending int
	err = d.kv.Update(ctx, Key, func(current []byte, _ bool) ([]byte, error) {
		var kept []Entry
		for _, e := range decode(current) {
			if delivered[e.Record.ID] {
				continue
			}
			e.Attempts += failed[e.Record.ID]
			kept = append(kept, e)
		}
		pending = len(kept)
		if kept == nil {
			kept = []Entry{}
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return len(delivered), fmt.Errorf("update outbox: %w", err)
	}
	d.metrics.SetOutboxPending(pending)
	return len(delivered), nil
}
