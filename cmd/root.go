package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/covenant-monitor/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "covenant-monitor",
	Short: "Loan covenant extraction and compliance monitoring",
	Long:  "Extracts financial covenants from loan documents, refreshes their values from a metrics source, evaluates compliance and raises alerts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
