package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/covenant-monitor/internal/monitor"
	"github.com/sells-group/covenant-monitor/internal/report"
	"github.com/sells-group/covenant-monitor/internal/store"
)

const reportLimit = 100000

var (
	reportOut  string
	reportUser string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export covenants and alerts to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := loadReport(ctx, env.Service, reportUser)
		if err != nil {
			return err
		}
		if err := report.Save(reportOut, data); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %d covenants and %d alerts to %s\n", len(data.Covenants), len(data.Alerts), reportOut)
		return nil
	},
}

func loadReport(ctx context.Context, svc *monitor.Service, userID string) (report.Data, error) {
	covenants, err := svc.ListCovenants(ctx, store.CovenantFilter{UserID: userID, Limit: reportLimit})
	if err != nil {
		return report.Data{}, eris.Wrap(err, "report: list covenants")
	}
	alerts, err := svc.ListAlerts(ctx, store.AlertFilter{UserID: userID, Limit: reportLimit})
	if err != nil {
		return report.Data{}, eris.Wrap(err, "report: list alerts")
	}
	return report.Data{Covenants: covenants, Alerts: alerts}, nil
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "covenants.xlsx", "output file")
	reportCmd.Flags().StringVar(&reportUser, "user", "", "only include this user's covenants and alerts")
	rootCmd.AddCommand(reportCmd)
}
