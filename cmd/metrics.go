package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/covenant-monitor/internal/metricsource"
	"github.com/sells-group/covenant-monitor/internal/report"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Manage the client metrics database",
}

var metricsRecordCmd = &cobra.Command{
	Use:   "record <name> <value>",
	Short: "Append a metric observation to the SQLite metrics database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrapf(err, "parse value %q", args[1])
		}

		at := time.Now().UTC()
		if s, _ := cmd.Flags().GetString("at"); s != "" {
			at, err = time.Parse(time.RFC3339, s)
			if err != nil {
				return eris.Wrapf(err, "parse --at %q", s)
			}
		}

		src, err := openMetricsDB(ctx)
		if err != nil {
			return eris.Wrap(err, "metrics record")
		}
		defer src.Close() //nolint:errcheck
		if err := src.Record(ctx, args[0], value, at); err != nil {
			return eris.Wrap(err, "metrics record")
		}
		fmt.Fprintf(os.Stdout, "%s = %s at %s\n", args[0], args[1], at.Format(time.RFC3339))
		return nil
	},
}

var metricsImportCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Load metric observations from a spreadsheet into the SQLite metrics database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sheet, _ := cmd.Flags().GetString("sheet")
		n, err := importMetrics(cmd.Context(), args[0], sheet, time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "metrics import")
		}
		fmt.Fprintf(os.Stdout, "Imported %d observations from %s.\n", n, args[0])
		return nil
	},
}

// openMetricsDB opens the configured SQLite metrics database.
func openMetricsDB(ctx context.Context) (*metricsource.SQLite, error) {
	if cfg.Metrics.Source != "sqlite" {
		return nil, eris.Errorf("requires metrics.source sqlite, got %q", cfg.Metrics.Source)
	}
	src, err := metricsource.OpenSQLite(cfg.Metrics.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := src.EnsureSchema(ctx); err != nil {
		src.Close() //nolint:errcheck
		return nil, err
	}
	return src, nil
}

// importMetrics records every observation in the sheet. Rows without an
// observed_at column value are stamped with now.
func importMetrics(ctx context.Context, path, sheet string, now time.Time) (int, error) {
	obs, err := report.ReadMetrics(path, sheet, now)
	if err != nil {
		return 0, err
	}
	src, err := openMetricsDB(ctx)
	if err != nil {
		return 0, err
	}
	defer src.Close() //nolint:errcheck

	for _, o := range obs {
		if err := src.Record(ctx, o.Name, o.Value, o.ObservedAt); err != nil {
			return 0, eris.Wrapf(err, "record %s", o.Name)
		}
	}
	zap.L().Info("imported metric observations",
		zap.String("file", path),
		zap.Int("count", len(obs)),
	)
	return len(obs), nil
}

func init() {
	metricsRecordCmd.Flags().String("at", "", "observation time, RFC 3339 (default now)")
	metricsImportCmd.Flags().String("sheet", report.MetricsSheet, "sheet with metric_name, value and observed_at columns")
	metricsCmd.AddCommand(metricsRecordCmd)
	metricsCmd.AddCommand(metricsImportCmd)
	rootCmd.AddCommand(metricsCmd)
}
