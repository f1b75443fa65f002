// Package cli implements leadctl, the operator view of the lead store.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"leadcapture/internal/app"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/platform/config"
	"leadcapture/internal/platform/logger"
	"leadcapture/internal/reconcile"
)

// Builder opens the application the commands operate on.
type Builder func(ctx context.Context) (*app.App, error)

// FromEnv builds the application from LEAD_* environment variables, logging
// to stderr.
func FromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger.NewWithWriter(os.Stderr, cfg.LogLevel), nil)
}

// RootCmd returns the leadctl command tree.
func RootCmd(build Builder) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "leadctl",
		Short:         "Inspect and export captured leads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(listCmd(build))
	cmd.AddCommand(exportCmd(build, time.Now))
	return cmd
}

const memoryDriverWarning = "warning: LEAD_STORAGE_DRIVER=memory keeps leads inside the server process; leadctl sees no local leads. Point it at the server's redis, sqlite or postgres store."

func refresh(cmd *cobra.Command, build Builder) (reconcile.Result, error) {
	ctx := cmd.Context()
	a, err := build(ctx)
	if err != nil {
		return reconcile.Result{}, err
	}
	defer a.Close()
	if strings.EqualFold(a.Config.Storage.Driver, config.DriverMemory) {
		fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.FgYellow).Sprint(memoryDriverWarning))
	}
	return a.Reconciler.Refresh(ctx), nil
}

func listCmd(build Builder) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local and spreadsheet leads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := refresh(cmd, build)
			if err != nil {
				return err
			}
			printLeads(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func printLeads(out io.Writer, res reconcile.Result) {
	if res.Warning != "" {
		fmt.Fprintln(out, color.New(color.FgYellow).Sprint(res.Warning))
	}
	if len(res.Records) == 0 {
		fmt.Fprintln(out, "No leads.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tNAME\tEMAIL\tPHONE\tCOMPANY\tSOURCE")
	for _, r := range res.Records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, r.Name, r.Email, r.Phone, r.Company, sourceLabel(r.Source))
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\n%d lead(s)\n", len(res.Records))
}

func sourceLabel(src models.Source) string {
	if src == models.SourceOnline {
		return color.New(color.FgCyan).Sprint(string(src))
	}
	return color.New(color.FgGreen).Sprint(string(src))
}

func exportCmd(build Builder, now func() time.Time) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all leads to leads_export_<date>.csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := refresh(cmd, build)
			if err != nil {
				return err
			}
			if res.Warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.FgYellow).Sprint(res.Warning))
			}
			path := filepath.Join(outDir, reconcile.ExportFilename(now()))
			if err := os.WriteFile(path, []byte(reconcile.ToCSV(res.Records)), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d lead(s) to %s\n",
				color.New(color.FgGreen).Sprint("exported"), len(res.Records), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the export into")
	return cmd
}
