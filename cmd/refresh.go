package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var refreshWatch bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh monitored covenants from the metrics source",
	Long:  "Runs one refresh cycle, or with --watch keeps running cycles on the configured schedule until interrupted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Scheduler == nil {
			return eris.New("refresh: no metrics source configured (metrics.source is none)")
		}

		if !refreshWatch {
			report, err := env.Scheduler.RunOnce(ctx)
			if err != nil {
				return eris.Wrap(err, "refresh")
			}
			formatCycleReport(os.Stdout, report)
			return nil
		}

		zap.L().Info("refresh scheduler started", zap.String("schedule", cfg.Refresh.Schedule))
		env.Scheduler.Start(ctx)
		<-ctx.Done()
		env.Scheduler.Stop()
		zap.L().Info("refresh scheduler stopped")
		return nil
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshWatch, "watch", false, "keep refreshing on the configured schedule")
	rootCmd.AddCommand(refreshCmd)
}
