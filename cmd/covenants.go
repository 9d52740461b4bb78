package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/covenant-monitor/internal/alert"
	"github.com/sells-group/covenant-monitor/internal/model"
	"github.com/sells-group/covenant-monitor/internal/store"
)

var covenantsCmd = &cobra.Command{
	Use:   "covenants",
	Short: "Inspect and update monitored covenants",
}

// -- covenants list --

var covenantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List covenants",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		user, _ := cmd.Flags().GetString("user")
		doc, _ := cmd.Flags().GetString("document")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		covenants, err := env.Service.ListCovenants(ctx, store.CovenantFilter{
			UserID:     user,
			DocumentID: doc,
			Status:     model.ComplianceStatus(status),
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "covenants list")
		}

		if asJSON {
			return writeJSON(os.Stdout, covenants)
		}
		if len(covenants) == 0 {
			fmt.Fprintln(os.Stderr, "No covenants found.")
			return nil
		}
		formatCovenantsList(os.Stdout, covenants)
		return nil
	},
}

// -- covenants set-value --

var covenantsSetValueCmd = &cobra.Command{
	Use:   "set-value <covenant-id> <value>",
	Short: "Record a covenant's current value and re-evaluate it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrapf(err, "parse value %q", args[1])
		}

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		c, tr, err := env.Service.SetCurrentValue(ctx, args[0], value)
		if err != nil {
			return eris.Wrap(err, "covenants set-value")
		}
		fmt.Fprintf(os.Stdout, "%s: %s\n", c.Name, c.ComplianceStatus)
		if tr.Kind != alert.TransitionNone {
			fmt.Fprintf(os.Stdout, "Alert %s %s.\n", tr.Alert.ID, tr.Kind)
		}
		return nil
	},
}

// -- covenants delete --

var covenantsDeleteCmd = &cobra.Command{
	Use:   "delete <covenant-id>",
	Short: "Delete a covenant and its alerts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.DeleteCovenant(ctx, args[0]); err != nil {
			return eris.Wrap(err, "covenants delete")
		}
		fmt.Fprintf(os.Stdout, "Covenant %s deleted.\n", args[0])
		return nil
	},
}

// -- covenants history --

var covenantsHistoryCmd = &cobra.Command{
	Use:   "history <covenant-id>",
	Short: "Compute a covenant's value over the metric history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		days, _ := cmd.Flags().GetInt("days")
		points, err := env.Service.CovenantHistory(ctx, args[0], days)
		if err != nil {
			return eris.Wrap(err, "covenants history")
		}
		return writeJSON(os.Stdout, points)
	},
}

func init() {
	covenantsListCmd.Flags().String("user", "", "filter by user id")
	covenantsListCmd.Flags().String("document", "", "filter by document id")
	covenantsListCmd.Flags().String("status", "", "filter by compliance status")
	covenantsListCmd.Flags().Int("limit", 100, "max number of covenants to display")
	covenantsListCmd.Flags().Bool("json", false, "print JSON")

	covenantsHistoryCmd.Flags().Int("days", 90, "history window in days")

	covenantsCmd.AddCommand(covenantsListCmd)
	covenantsCmd.AddCommand(covenantsSetValueCmd)
	covenantsCmd.AddCommand(covenantsDeleteCmd)
	covenantsCmd.AddCommand(covenantsHistoryCmd)
	rootCmd.AddCommand(covenantsCmd)
}
