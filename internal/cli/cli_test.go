package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadcapture/internal/app"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/platform/config"
	"leadcapture/internal/platform/logger"
)

func seededBuilder(t *testing.T, records ...models.LeadRecord) Builder {
	t.Helper()
	return func(ctx context.Context) (*app.App, error) {
		cfg := config.Server{
			Admin:   config.Admin{DeleteWindow: 3 * time.Second},
			Remote:  config.Remote{BreakerThreshold: 3, BreakerCooldown: time.Minute},
			Storage: config.Storage{Driver: config.DriverMemory},
			Capture: config.Capture{DateLocation: "UTC"},
		}
		a, err := app.New(ctx, cfg, logger.Discard(), nil)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if err := a.Leads.Append(ctx, r); err != nil {
				return nil, err
			}
		}
		return a, nil
	}
}

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestListCommand(t *testing.T) {
	build := seededBuilder(t,
		models.LeadRecord{ID: "100", Date: "01/04/2026", Name: "Amina", Company: "Atlas"},
		models.LeadRecord{ID: "200", Date: "02/04/2026", Name: "Karim", Company: "Souss Agro"},
	)
	var out bytes.Buffer
	cmd := RootCmd(build)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	lines := strings.Split(out.String(), "\n")
	assert.Contains(t, lines[0], "SOURCE")
	assert.Contains(t, lines[1], "200")
	assert.Contains(t, lines[2], "100")
	assert.Contains(t, lines[1], "local")
	assert.Contains(t, out.String(), "2 lead(s)")
}

func TestListCommandEmpty(t *testing.T) {
	var out bytes.Buffer
	cmd := RootCmd(seededBuilder(t))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "No leads.\n", out.String())
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	build := seededBuilder(t, models.LeadRecord{ID: "100", Date: "01/04/2026", Name: "Amina", Company: "Atlas"})

	cmd := exportCmd(build, func() time.Time { return time.Date(2026, 4, 12, 8, 0, 0, 0, time.UTC) })

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--out", dir})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "leads_export_2026-04-12.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Date,Nom,Email,Téléphone,Société,Source\n\"01/04/2026\",\"Amina\",\"\",\"\",\"Atlas\",\"local\"", string(data))
	assert.Contains(t, out.String(), "exported 1 lead(s)")
}

func TestMemoryDriverWarns(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := RootCmd(seededBuilder(t))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, errOut.String(), "LEAD_STORAGE_DRIVER=memory")
	assert.Equal(t, "No leads.\n", out.String())
}
