package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/store"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect and resolve compliance alerts",
}

// -- alerts list --

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		user, _ := cmd.Flags().GetString("user")
		covenant, _ := cmd.Flags().GetString("covenant")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		alerts, err := env.Service.ListAlerts(ctx, store.AlertFilter{
			UserID:     user,
			CovenantID: covenant,
			Status:     model.AlertStatus(status),
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "alerts list")
		}

		if asJSON {
			return writeJSON(os.Stdout, alerts)
		}
		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts found.")
			return nil
		}
		formatAlertsList(os.Stdout, alerts)
		return nil
	},
}

// -- alerts dismiss --

var alertsDismissCmd = &cobra.Command{
	Use:   "dismiss <alert-id>",
	Short: "Resolve an active alert by hand",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		notes, _ := cmd.Flags().GetString("notes")
		a, err := env.Service.DismissAlert(ctx, args[0], notes)
		if err != nil {
			return eris.Wrap(err, "alerts dismiss")
		}
		fmt.Fprintf(os.Stdout, "Alert %s resolved.\n", a.ID)
		return nil
	},
}

// -- alerts summary --

var alertsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show active alert counts and daily alert history for a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		user, _ := cmd.Flags().GetString("user")
		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = cfg.Alerts.SummaryWindowDays
		}

		summary, err := env.Service.GetAlertSummary(ctx, user, days)
		if err != nil {
			return eris.Wrap(err, "alerts summary")
		}
		formatAlertSummary(os.Stdout, summary)
		return nil
	},
}

// -- alerts analyze --

var alertsAnalyzeCmd = &cobra.Command{
	Use:   "analyze <covenant-id>",
	Short: "Run a breach analysis for a covenant in warning or breach",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.Service.AnalyzeCovenant(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "alerts analyze")
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return writeJSON(os.Stdout, a)
		}
		formatBreachAnalysis(os.Stdout, a.Details.Analysis)
		return nil
	},
}

// -- alerts recommendations --

var alertsRecommendationsCmd = &cobra.Command{
	Use:   "recommendations <alert-id>",
	Short: "Show the breach analysis for an alert, running one if needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		analysis, err := env.Service.Recommendations(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "alerts recommendations")
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return writeJSON(os.Stdout, analysis)
		}
		formatBreachAnalysis(os.Stdout, analysis)
		return nil
	},
}

func init() {
	alertsListCmd.Flags().String("user", "", "filter by user id")
	alertsListCmd.Flags().String("covenant", "", "filter by covenant id")
	alertsListCmd.Flags().String("status", "", "filter by status (active, resolved)")
	alertsListCmd.Flags().Int("limit", 50, "max number of alerts to display")
	alertsListCmd.Flags().Bool("json", false, "print JSON")

	alertsDismissCmd.Flags().String("notes", "", "resolution notes")

	alertsSummaryCmd.Flags().String("user", "", "user id")
	alertsSummaryCmd.Flags().Int("days", 0, "history window in days (default from config)")
	_ = alertsSummaryCmd.MarkFlagRequired("user")

	alertsAnalyzeCmd.Flags().Bool("json", false, "print the updated alert as JSON")
	alertsRecommendationsCmd.Flags().Bool("json", false, "print JSON")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsDismissCmd)
	alertsCmd.AddCommand(alertsSummaryCmd)
	alertsCmd.AddCommand(alertsAnalyzeCmd)
	alertsCmd.AddCommand(alertsRecommendationsCmd)
	rootCmd.AddCommand(alertsCmd)
}
