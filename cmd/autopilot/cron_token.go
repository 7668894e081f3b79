package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-autopilot/internal/server"
)

var cronTokenTTL time.Duration

var cronTokenCmd = &cobra.Command{
	Use:   "cron-token",
	Short: "Print a short-lived signed token for the cron endpoints",
	Long: `Sign a token with the cron secret. Schedulers can send it as a bearer
token instead of the raw secret. The server rejects tokens whose lifetime
exceeds cron.token_max_age.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cronTokenTTL > cfg.Cron.TokenMaxAge {
			return fmt.Errorf("--ttl %s exceeds cron.token_max_age %s", cronTokenTTL, cfg.Cron.TokenMaxAge)
		}
		token, err := server.NewCronToken(cfg.Cron.Secret, cronTokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	cronTokenCmd.Flags().DurationVar(&cronTokenTTL, "ttl", 2*time.Minute, "Token lifetime")
	rootCmd.AddCommand(cronTokenCmd)
}
