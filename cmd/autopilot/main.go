// Package main provides the autopilot CLI: the HTTP server, the scheduled
// batch tasks and operator utilities.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Job Autopilot",
	Long: `Job Autopilot scrapes job sources, matches postings to users, drafts
applications with an AI provider and sends them on a paced schedule.

Configuration is read from --config (YAML or JSON) and overlaid with
environment variables such as DATABASE_URL, CRON_SECRET and GEMINI_API_KEY.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print formatted summaries to stderr")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
