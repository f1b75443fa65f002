package reconcile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcapture/internal/kv"
	"leadcapture/internal/lead/localstore"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/lead/remote"
	"leadcapture/internal/platform/logger"
	"leadcapture/pkg/platform/circuit"
)

const sheetCSV = "Date,Nom,Email,Téléphone,Société\n" +
	"01/04/2026,Karim,karim@example.ma,0611111111,Souss Agro\n" +
	"\n" +
	"02/04/2026,Salma\n" +
	"03/04/2026,\"Idrissi, Nadia\",nadia@example.ma,0622222222,\"Rabat, Conseil\"\n" +
	"04/04/2026,Omar,omar@example.ma,0633333333,Atlas\n"

func seedLocal(t *testing.T) *localstore.Store {
	t.Helper()
	store := localstore.New(kv.NewMemoryStore(), logger.Discard())
	for _, id := range []string{"100", "200"} {
		require.NoError(t, store.Append(context.Background(), models.LeadRecord{ID: id, Name: "local " + id}))
	}
	return store
}

func exportServer(t *testing.T, contentType string, status int, body string) *remote.ExportClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return remote.NewExportClient(srv.URL, srv.Client())
}

func ids(records []models.LeadRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestRefreshMergesAndReverses(t *testing.T) {
	r := New(seedLocal(t), kv.NewMemoryStore(), logger.Discard(),
		WithExporter(exportServer(t, "text/csv", http.StatusOK, sheetCSV)))

	res := r.Refresh(context.Background())

	assert.Empty(t, res.Warning)
	assert.Equal(t, []string{"sheet-3", "sheet-2", "sheet-0", "200", "100"}, ids(res.Records))
	assert.Equal(t, models.SourceOnline, res.Records[0].Source)
	assert.Equal(t, models.SourceLocal, res.Records[4].Source)

	nadia := res.Records[1]
	assert.Equal(t, "Idrissi, Nadia", nadia.Name)
	assert.Equal(t, "Rabat, Conseil", nadia.Company)
	assert.Equal(t, "nadia@example.ma", nadia.Email)
}

func TestRefreshLoginPageIsLocalOnly(t *testing.T) {
	r := New(seedLocal(t), kv.NewMemoryStore(), logger.Discard(),
		WithExporter(exportServer(t, "text/html; charset=utf-8", http.StatusOK, "<html></html>")))

	res := r.Refresh(context.Background())

	assert.Equal(t, []string{"200", "100"}, ids(res.Records))
	assert.Contains(t, res.Warning, "Accès refusé")
	assert.True(t, strings.HasPrefix(res.Warning, "Info: Impossible de charger les leads du Cloud ("))
}

func TestRefreshErrorStatusIsLocalOnly(t *testing.T) {
	r := New(seedLocal(t), kv.NewMemoryStore(), logger.Discard(),
		WithExporter(exportServer(t, "text/csv", http.StatusNotFound, sheetCSV)))

	res := r.Refresh(context.Background())
	assert.Len(t, res.Records, 2)
	assert.Contains(t, res.Warning, "Accès refusé")
}

func TestRefreshWithoutExporter(t *testing.T) {
	res := New(seedLocal(t), kv.NewMemoryStore(), logger.Discard()).Refresh(context.Background())
	assert.Empty(t, res.Warning)
	assert.Equal(t, []string{"200", "100"}, ids(res.Records))
}

func TestRefreshEmptyEverywhere(t *testing.T) {
	local := localstore.New(kv.NewMemoryStore(), logger.Discard())
	r := New(local, kv.NewMemoryStore(), logger.Discard(),
		WithExporter(exportServer(t, "text/csv", http.StatusOK, "Date,Nom,Email\n")))
	res := r.Refresh(context.Background())
	assert.Empty(t, res.Records)
	assert.Empty(t, res.Warning)
}

type stubExporter struct {
	calls int
	err   error
	body  string
}

func (s *stubExporter) Fetch(context.Context) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

func TestRefreshBreakerSkipsFetchWhileOpen(t *testing.T) {
	now := time.Date(2026, 4, 12, 10, 0, 0, 0, time.UTC)
	breaker := circuit.New("export",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	exp := &stubExporter{err: errors.New("dial tcp: connection refused")}
	r := New(seedLocal(t), kv.NewMemoryStore(), logger.Discard(), WithExporter(exp), WithBreaker(breaker))

	for range 2 {
		res := r.Refresh(context.Background())
		assert.Contains(t, res.Warning, "connection refused")
	}
	assert.Equal(t, 2, exp.calls)

	res := r.Refresh(context.Background())
	assert.Equal(t, 2, exp.calls)
	assert.Contains(t, res.Warning, breakerOpenMessage)
	assert.Len(t, res.Records, 2)

	now = now.Add(2 * time.Minute)
	exp.err = nil
	exp.body = sheetCSV
	res = r.Refresh(context.Background())
	assert.Equal(t, 3, exp.calls)
	assert.Empty(t, res.Warning)
	assert.Len(t, res.Records, 5)
	assert.False(t, breaker.IsOpen())
}

func TestParseExport(t *testing.T) {
	t.Run("header only", func(t *testing.T) {
		assert.Empty(t, ParseExport([]byte("Date,Nom,Email\n")))
	})

	t.Run("short rows consume an index", func(t *testing.T) {
		got := ParseExport([]byte("h\nx,y\n   \n01/04/2026,Karim,karim@example.ma\n"))
		require.Len(t, got, 1)
		assert.Equal(t, "sheet-1", got[0].ID)
		assert.Empty(t, got[0].Phone)
		assert.Empty(t, got[0].Company)
	})

	t.Run("cells trimmed", func(t *testing.T) {
		got := ParseExport([]byte("h\n 01/04/2026 , Karim ,karim@example.ma , 06 , Atlas \n"))
		require.Len(t, got, 1)
		assert.Equal(t, models.LeadRecord{
			ID: "sheet-0", Date: "01/04/2026", Name: "Karim", Email: "karim@example.ma",
			Phone: "06", Company: "Atlas", Source: models.SourceOnline,
		}, got[0])
	})

	t.Run("crlf line endings", func(t *testing.T) {
		got := ParseExport([]byte("h\r\na,b,c\r\nd,e,f\r\n"))
		assert.Equal(t, []string{"sheet-0", "sheet-1"}, ids(got))
	})

	t.Run("quotes stripped after spaces", func(t *testing.T) {
		got := ParseExport([]byte("h\n01/04/2026, \"Karim\", \"k@x.ma\" , \"06\"\n"))
		require.Len(t, got, 1)
		assert.Equal(t, "Karim", got[0].Name)
		assert.Equal(t, "k@x.ma", got[0].Email)
		assert.Equal(t, "06", got[0].Phone)
	})

	t.Run("quoted comma stays in the cell", func(t *testing.T) {
		got := ParseExport([]byte("h\n01/04/2026,\"Alaoui, Karim\",k@x.ma\n"))
		require.Len(t, got, 1)
		assert.Equal(t, "Alaoui, Karim", got[0].Name)
		assert.Equal(t, "k@x.ma", got[0].Email)
	})

	t.Run("empty-cell rows keep their index", func(t *testing.T) {
		got := ParseExport([]byte("h\n,,,,\na,b,c\n"))
		require.Len(t, got, 2)
		assert.Equal(t, []string{"sheet-0", "sheet-1"}, ids(got))
		assert.Empty(t, got[0].Name)
		assert.Equal(t, "b", got[1].Name)
	})

	t.Run("unterminated quote only affects its line", func(t *testing.T) {
		got := ParseExport([]byte("h\n\"a,b,c\nd,e,f\ng,h,i"))
		require.Len(t, got, 3)
		assert.Equal(t, "a", got[0].Date)
		assert.Equal(t, "d", got[1].Date)
		assert.Equal(t, "g", got[2].Date)
	})
}
