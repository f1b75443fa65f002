package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcapture/internal/admin"
	"leadcapture/internal/lead/handler"
	"leadcapture/internal/platform/config"
	"leadcapture/internal/platform/logger"
	"leadcapture/pkg/testutil"
)

func testConfig() config.Server {
	return config.Server{
		Admin: config.Admin{
			Secret:        "s3cret",
			JWTSigningKey: "test-signing-key",
			SessionTTL:    time.Hour,
			DeleteWindow:  3 * time.Second,
		},
		Remote: config.Remote{
			WebhookTimeout:   time.Second,
			OutboxInterval:   time.Hour,
			BreakerThreshold: 3,
			BreakerCooldown:  time.Minute,
		},
		Storage: config.Storage{Driver: config.DriverMemory},
		Kafka:   config.Kafka{Topic: "leads.captured"},
		Capture: config.Capture{
			SessionTTL:   time.Hour,
			DateLocation: "Africa/Casablanca",
		},
	}
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodPost, "/admin/login", admin.LoginRequest{Password: "s3cret"}))
	testutil.AssertStatus(t, rec, http.StatusOK)
	return testutil.UnmarshalResponse[admin.LoginResult](t, rec).Token
}

func TestEndToEndWizardAndDashboard(t *testing.T) {
	var webhookHits atomic.Int32
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookHits.Add(1)
	}))
	t.Cleanup(webhook.Close)
	sheet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("Date,Nom,Email,Téléphone,Société\n01/04/2026,Karim,karim@example.ma,0611111111,Souss Agro\n"))
	}))
	t.Cleanup(sheet.Close)

	cfg := testConfig()
	cfg.Remote.WebhookURL = webhook.URL
	cfg.Remote.ExportURL = sheet.URL

	reg := prometheus.NewRegistry()
	a, err := New(context.Background(), cfg, logger.Discard(), reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	h := a.Router(reg)

	rec := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodPost, "/api/intake", nil))
	testutil.AssertStatus(t, rec, http.StatusCreated)
	id := testutil.UnmarshalResponse[handler.SessionResponse](t, rec).ID

	for _, v := range []string{"Amina", "amina@example.ma", "0612345678", "Atlas"} {
		rec = testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodPost, "/api/intake/"+id+"/answer", handler.AnswerRequest{Value: v}))
		testutil.AssertStatus(t, rec, http.StatusOK)
	}
	assert.Equal(t, "submitted", testutil.UnmarshalResponse[handler.SessionResponse](t, rec).Status)

	require.NoError(t, a.Close())
	assert.Equal(t, int32(1), webhookHits.Load())

	token := login(t, h)
	rec = testutil.DoRequest(h, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/admin/leads", nil), token))
	testutil.AssertStatus(t, rec, http.StatusOK)
	leads := testutil.UnmarshalResponse[handler.LeadsResponse](t, rec)
	require.Len(t, leads.Leads, 2)
	assert.Equal(t, "sheet-0", leads.Leads[0].ID)
	assert.Equal(t, "Atlas", leads.Leads[1].Company)
	assert.Empty(t, leads.Warning)

	localID := leads.Leads[1].ID
	for _, want := range []string{"pending_confirmation", "deleted"} {
		rec = testutil.DoRequest(h, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodDelete, "/admin/leads/"+localID, nil), token))
		testutil.AssertStatus(t, rec, http.StatusOK)
		assert.Equal(t, want, testutil.UnmarshalResponse[handler.DeleteResponse](t, rec).Status)
	}
	assert.Empty(t, a.Leads.ListAll(context.Background()))

	rec = testutil.DoRequest(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "leadcapture_leads_captured_total")
}

func TestOutboxModeQueuesInsteadOfFiring(t *testing.T) {
	var hits atomic.Int32
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(webhook.Close)

	cfg := testConfig()
	cfg.Remote.WebhookURL = webhook.URL
	cfg.Remote.OutboxEnabled = true

	a, err := New(context.Background(), cfg, logger.Discard(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NotNil(t, a.Drainer)

	ctx := context.Background()
	_, err = a.ExitIntent.Trigger(ctx, "visit-1", "page_hidden", "")
	require.NoError(t, err)
	_, err = a.ExitIntent.Submit(ctx, "visit-1", "Amina", "amina@example.ma", "0612345678")
	require.NoError(t, err)
	assert.Zero(t, hits.Load())

	n, err := a.Drainer.DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSQLiteStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage = config.Storage{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "leads.db")}

	a, err := New(context.Background(), cfg, logger.Discard(), nil)
	require.NoError(t, err)

	_, err = a.ExitIntent.Trigger(context.Background(), "visit-1", "back_navigation", "")
	require.NoError(t, err)
	_, err = a.ExitIntent.Submit(context.Background(), "visit-1", "Amina", "amina@example.ma", "0612345678")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	reopened, err := New(context.Background(), cfg, logger.Discard(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	assert.Len(t, reopened.Leads.ListAll(context.Background()), 1)
}

func TestUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Driver = "cassandra"
	_, err := New(context.Background(), cfg, logger.Discard(), nil)
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestAdminLoginIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimit{Enabled: true, LoginRequests: 2, CaptureRequests: 100, Window: time.Minute}

	a, err := New(context.Background(), cfg, logger.Discard(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	h := a.Router(nil)

	wrong := admin.LoginRequest{Password: "nope"}
	for range 2 {
		rec := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodPost, "/admin/login", wrong))
		testutil.AssertStatus(t, rec, http.StatusUnauthorized)
	}

	rec := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodPost, "/admin/login", admin.LoginRequest{Password: "s3cret"}))
	testutil.AssertStatus(t, rec, http.StatusTooManyRequests)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodPost, "/api/intake", nil))
	testutil.AssertStatus(t, rec, http.StatusCreated)
}

func TestHealthzReportsStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage = config.Storage{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "leads.db")}

	a, err := New(context.Background(), cfg, logger.Discard(), nil)
	require.NoError(t, err)
	h := a.Router(nil)

	rec := testutil.DoRequest(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)
	body := *testutil.UnmarshalResponse[map[string]string](t, rec)
	assert.Equal(t, "sqlite", body["storage"])

	require.NoError(t, a.Close())
	rec = testutil.DoRequest(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertStatus(t, rec, http.StatusServiceUnavailable)
}
