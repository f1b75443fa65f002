// Package capture performs the dual write shared by both capture paths: the
// local append completes before Record returns, the remote delivery does not.
package capture

import (
	"context"
	"log/slog"
	"time"

	"leadcapture/internal/lead/models"
	"leadcapture/internal/lead/remote"
	"leadcapture/internal/platform/metrics"
	"leadcapture/pkg/requestcontext"
)

// Capture paths, used as the metrics label.
const (
	PathWizard     = "wizard"
	PathExitIntent = "exit_intent"
)

// LocalAppender is the local half of the dual write.
type LocalAppender interface {
	Append(ctx context.Context, rec models.LeadRecord) error
}

type Recorder struct {
	local    LocalAppender
	sink     remote.Sink
	ids      *models.IDGenerator
	location *time.Location
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Recorder)

func WithLocation(loc *time.Location) Option {
	return func(r *Recorder) {
		r.location = loc
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func NewRecorder(local LocalAppender, sink remote.Sink, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		local:    local,
		sink:     sink,
		ids:      &models.IDGenerator{},
		location: time.UTC,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = remote.NopSink{}
	}
	return r
}

// Record stores the lead locally then hands it to the sink. A local failure
// is logged and does not stop the remote send; nothing is returned to the
// visitor either way.
func (r *Recorder) Record(ctx context.Context, fields models.Fields, path string) models.LeadRecord {
	now := requestcontext.Now(ctx)
	rec := models.NewLocalRecord(r.ids.Next(now), now, r.location, fields)

	if err := r.local.Append(ctx, rec); err != nil {
		r.logger.ErrorContext(ctx, "local lead write failed",
			"lead_id", rec.ID,
			"path", path,
			"error", err,
		)
	} else {
		r.metrics.IncLeadCaptured(path)
	}

	r.sink.Send(ctx, rec)
	r.logger.InfoContext(ctx, "lead captured", "lead_id", rec.ID, "path", path)
	return rec
}
