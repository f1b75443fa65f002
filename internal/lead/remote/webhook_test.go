package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcapture/internal/lead/models"
	"leadcapture/internal/platform/logger"
	"leadcapture/internal/platform/metrics"
)

func sampleLead() models.LeadRecord {
	return models.LeadRecord{
		ID:      "1760000000000",
		Date:    "12/04/2026",
		Name:    "Amina",
		Email:   "amina@example.ma",
		Phone:   "0612345678",
		Company: "Atlas",
		Source:  models.SourceLocal,
	}
}

type capturedRequest struct {
	method      string
	contentType string
	body        []byte
}

func recordingServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, capturedRequest{method: r.Method, contentType: r.Header.Get("Content-Type"), body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), got...)
	}
}

func TestWebhookSinkPostsPayload(t *testing.T) {
	srv, requests := recordingServer(t, http.StatusOK)
	sink := NewWebhookSink(srv.URL, time.Second, logger.Discard())

	sink.Send(context.Background(), sampleLead())
	sink.Wait()

	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, "application/json", got[0].contentType)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got[0].body, &payload))
	assert.Equal(t, map[string]string{
		"date":    "12/04/2026",
		"name":    "Amina",
		"email":   "amina@example.ma",
		"phone":   "0612345678",
		"company": "Atlas",
	}, payload)
}

func TestWebhookSinkIgnoresErrorStatus(t *testing.T) {
	srv, requests := recordingServer(t, http.StatusInternalServerError)
	m := metrics.New(prometheus.NewRegistry())
	sink := NewWebhookSink(srv.URL, time.Second, logger.Discard(), WithWebhookMetrics(m))

	sink.Send(context.Background(), sampleLead())
	sink.Wait()

	assert.Len(t, requests(), 1)
	assert.Equal(t, 0.0, promtest.ToFloat64(m.RemoteWriteFailures.WithLabelValues("webhook")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RemoteSends.WithLabelValues("webhook")))
}

func TestWebhookSinkTransportFailureIsCounted(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := metrics.New(prometheus.NewRegistry())
	sink := NewWebhookSink(url, time.Second, logger.Discard(), WithWebhookMetrics(m))

	sink.Send(context.Background(), sampleLead())
	sink.Wait()

	assert.Equal(t, 1.0, promtest.ToFloat64(m.RemoteWriteFailures.WithLabelValues("webhook")))
}

func TestWebhookSinkOutlivesRequestContext(t *testing.T) {
	release := make(chan struct{})
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	sink := NewWebhookSink(srv.URL, 5*time.Second, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	sink.Send(ctx, sampleLead())
	cancel()
	close(release)
	sink.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
}

func TestPostCheckedReportsStatus(t *testing.T) {
	ok, _ := recordingServer(t, http.StatusCreated)
	bad, _ := recordingServer(t, http.StatusBadGateway)

	assert.NoError(t, NewWebhookSink(ok.URL, time.Second, logger.Discard()).PostChecked(context.Background(), sampleLead()))
	assert.ErrorContains(t,
		NewWebhookSink(bad.URL, time.Second, logger.Discard()).PostChecked(context.Background(), sampleLead()),
		"unexpected status 502")
}

type countingSink struct {
	mu   sync.Mutex
	sent []string
}

func (c *countingSink) Send(_ context.Context, rec models.LeadRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, rec.ID)
}

func TestFanoutSinkSendsToEverySink(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	srv, requests := recordingServer(t, http.StatusOK)
	webhook := NewWebhookSink(srv.URL, time.Second, logger.Discard())

	fan := NewFanoutSink(a, nil, b, webhook)
	fan.Send(context.Background(), sampleLead())
	fan.Wait()

	assert.Equal(t, []string{"1760000000000"}, a.sent)
	assert.Equal(t, []string{"1760000000000"}, b.sent)
	assert.Len(t, requests(), 1)
}
