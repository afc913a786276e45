package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlie-robison/pythia/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pythia",
	Short: "Prediction market research and risk analysis pipelines",
	Long:  "Researches prediction market events with live web lookups, synthesizes cross-event analysis, and produces YES/NO trading signals per market.",
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
		os.Exit(1)
	}
}
