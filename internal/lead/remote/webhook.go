package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"leadcapture/internal/lead/models"
	"leadcapture/internal/platform/metrics"
)

const webhookSinkName = "webhook"

// NewHTTPClient returns a client whose transport is traced.
// A zero timeout means no client-side limit.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// WebhookSink POSTs each lead to the ingestion webhook from a background
// goroutine. The response is drained and discarded without looking at its
// status: the endpoint is treated as an opaque write.
type WebhookSink struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

type WebhookOption func(*WebhookSink)

func WithWebhookClient(c *http.Client) WebhookOption {
	return func(s *WebhookSink) {
		s.client = c
	}
}

func WithWebhookMetrics(m *metrics.Metrics) WebhookOption {
	return func(s *WebhookSink) {
		s.metrics = m
	}
}

// NewWebhookSink builds a sink posting to url. timeout bounds each delivery.
func NewWebhookSink(url string, timeout time.Duration, logger *slog.Logger, opts ...WebhookOption) *WebhookSink {
	s := &WebhookSink{
		url:     url,
		timeout: timeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = NewHTTPClient(0)
	}
	return s
}

// Send schedules the delivery and returns immediately. The delivery outlives
// the request context.
func (s *WebhookSink) Send(ctx context.Context, rec models.LeadRecord) {
	s.metrics.IncRemoteSend(webhookSinkName)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sendCtx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(sendCtx, s.timeout)
			defer cancel()
		}
		if _, err := s.post(sendCtx, rec); err != nil {
			s.metrics.IncRemoteWriteFailure(webhookSinkName)
			s.logger.WarnContext(sendCtx, "remote lead delivery failed",
				"lead_id", rec.ID,
				"error", err,
			)
		}
	}()
}

// post returns the response status. The body is always drained.
func (s *WebhookSink) post(ctx context.Context, rec models.LeadRecord) (int, error) {
	body, err := json.Marshal(rec.Payload())
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Wait blocks until every scheduled delivery has finished.
func (s *WebhookSink) Wait() {
	s.wg.Wait()
}

// PostChecked delivers rec synchronously and fails on a non-2xx status.
// The outbox drainer uses it where delivery must be confirmed.
func (s *WebhookSink) PostChecked(ctx context.Context, rec models.LeadRecord) error {
	status, err := s.post(ctx, rec)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("post webhook: unexpected status %d", status)
	}
	return nil
}
