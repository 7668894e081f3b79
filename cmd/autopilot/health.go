package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/maintenance"
	"github.com/jonathan/job-autopilot/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report recent batch activity and exit non-zero when unhealthy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
		ctx := context.Background()
		database, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		report, err := maintenance.Health(ctx, database, healthWindow)
		if err != nil {
			return err
		}
		if verbose {
			observability.NewPrinter(cmd.ErrOrStderr()).PrintHealth(report)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if !report.Healthy {
			return fmt.Errorf("pipeline unhealthy: %d warnings", len(report.Warnings))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
