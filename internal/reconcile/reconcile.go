// Package reconcile builds the admin view of all leads: the local store merged
// with the shared spreadsheet's export, newest first.
package reconcile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"leadcapture/internal/kv"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/lead/remote"
	"leadcapture/internal/platform/metrics"
	"leadcapture/pkg/platform/circuit"
)

const (
	accessDeniedMessage = "Accès refusé. Assurez-vous que le Google Sheet est partagé avec 'Tous les utilisateurs disposant du lien' (Lecteur)."
	breakerOpenMessage  = "Service distant temporairement indisponible"
)

// minRemoteCells is the fewest cells an export row needs to be kept.
const minRemoteCells = 3

// LocalStore is the local half of the merge and the target of deletes.
type LocalStore interface {
	ListAll(ctx context.Context) []models.LeadRecord
	Exists(ctx context.Context, id string) bool
	Remove(ctx context.Context, id string) error
}

// Exporter fetches the raw spreadsheet export.
type Exporter interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Result is one refresh. Warning is set when the remote half could not be
// read; Records then holds local records only.
type Result struct {
	Records []models.LeadRecord `json:"leads"`
	Warning string              `json:"warning,omitempty"`
}

type Reconciler struct {
	local        LocalStore
	exporter     Exporter
	breaker      *circuit.Breaker
	pending      kv.Store
	deleteWindow time.Duration
	now          func() time.Time
	tracer       trace.Tracer
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Reconciler)

// WithExporter enables the remote half. Without one Refresh returns local
// records only and no warning.
func WithExporter(e Exporter) Option {
	return func(r *Reconciler) {
		r.exporter = e
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Reconciler) {
		r.breaker = b
	}
}

// WithDeleteWindow sets how long a first delete click stays armed.
func WithDeleteWindow(d time.Duration) Option {
	return func(r *Reconciler) {
		r.deleteWindow = d
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// New builds a reconciler. pending holds the per-admin-session delete
// confirmation state.
func New(local LocalStore, pending kv.Store, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		local:        local,
		pending:      pending,
		deleteWindow: 3 * time.Second,
		now:          time.Now,
		tracer:       otel.Tracer("leadcapture/reconcile"),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("spreadsheet-export")
	}
	return r
}

func warning(reason string) string {
	return fmt.Sprintf("Info: Impossible de charger les leads du Cloud (%s). Seuls les tests locaux sont affichés.", reason)
}

// Refresh merges local and remote records. Remote failures never fail the
// call; they become the Warning.
func (r *Reconciler) Refresh(ctx context.Context) Result {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "reconcile.refresh")
	defer span.End()

	local := r.local.ListAll(ctx)
	var (
		online []models.LeadRecord
		warn   string
	)
	if r.exporter != nil {
		var err error
		online, err = r.fetchRemote(ctx)
		if err != nil {
			warn = warning(reasonText(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "remote export unavailable")
		}
	}

	merged := make([]models.LeadRecord, 0, len(local)+len(online))
	merged = append(merged, local...)
	merged = append(merged, online...)
	reverse(merged)

	span.SetAttributes(
		attribute.Int("leads.local", len(local)),
		attribute.Int("leads.online", len(online)),
	)
	r.metrics.ObserveReconcile(start, len(local), len(online))
	return Result{Records: merged, Warning: warn}
}

var errBreakerOpen = errors.New("export circuit open")

func reasonText(err error) string {
	switch {
	case errors.Is(err, remote.ErrExportDenied):
		return accessDeniedMessage
	case errors.Is(err, errBreakerOpen):
		return breakerOpenMessage
	default:
		return err.Error()
	}
}

func (r *Reconciler) fetchRemote(ctx context.Context) ([]models.LeadRecord, error) {
	if !r.breaker.Allow() {
		r.metrics.IncRemoteReadFailure("breaker_open")
		return nil, errBreakerOpen
	}

	body, err := r.exporter.Fetch(ctx)
	if err != nil {
		reason := "transport"
		if errors.Is(err, remote.ErrExportDenied) {
			reason = "access_denied"
		}
		r.metrics.IncRemoteReadFailure(reason)
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.WarnContext(ctx, "export circuit opened", "breaker", r.breaker.Name())
		}
		r.logger.WarnContext(ctx, "remote export unavailable, showing local leads only",
			"reason", reason,
			"error", err,
		)
		return nil, err
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "export circuit closed", "breaker", r.breaker.Name())
	}
	return ParseExport(body), nil
}

// ParseExport turns the export into records tagged online. The first line
// is the header. Whitespace-only lines are skipped without consuming an
// index; every other line consumes one, and lines with fewer than three
// cells are dropped. Quoted cells may hold commas. A line the CSV reader
// rejects is split on bare commas instead, so one stray quote costs at most
// that line.
func ParseExport(body []byte) []models.LeadRecord {
	lines := strings.Split(string(body), "\n")
	if len(lines) < 2 {
		return nil
	}

	var records []models.LeadRecord
	index := 0
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		i := index
		index++
		cells := splitLine(strings.TrimSuffix(line, "\r"))
		if len(cells) < minRemoteCells {
			continue
		}
		records = append(records, models.LeadRecord{
			ID:      models.RemoteRecordID(i),
			Date:    cell(cells, 0),
			Name:    cell(cells, 1),
			Email:   cell(cells, 2),
			Phone:   cell(cells, 3),
			Company: cell(cells, 4),
			Source:  models.SourceOnline,
		})
	}
	return records
}

func splitLine(line string) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	row, err := reader.Read()
	if err != nil {
		row = strings.Split(line, ",")
	}
	for i, c := range row {
		row[i] = unquote(strings.TrimSpace(c))
	}
	return row
}

// unquote drops one leading and one trailing double quote.
func unquote(c string) string {
	c = strings.TrimPrefix(c, `"`)
	return strings.TrimSuffix(c, `"`)
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

func reverse(records []models.LeadRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
