package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-aml/riskwatch/internal/config"
	"github.com/meridian-aml/riskwatch/internal/model"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "riskwatch",
	Short: "Entity risk ledger and model performance monitoring",
	Long:  "Persists versioned entity risk assessments across dual backends and validates model output quality against golden references on monthly, quarterly, and bi-annual cadences.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps the failure kind to a distinct process exit code so
// operational alerting can tell a threshold failure apart from missing data
// or a broken run: 1 = verdict FAIL, 2 = insufficient/missing data,
// 3 = operational error.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errVerdictFailed):
		return 1
	case errors.Is(err, model.ErrInsufficientData):
		return 2
	default:
		return 3
	}
}
