package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/keywords"
	"github.com/jonathan/job-autopilot/internal/observability"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Print the aggregated scrape keywords and locations",
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

		res, err := keywords.NewAggregator(database).Run(ctx)
		if err != nil {
			return err
		}
		if verbose {
			observability.NewPrinter(cmd.ErrOrStderr()).PrintKeywords(res)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(keywordsCmd)
}
