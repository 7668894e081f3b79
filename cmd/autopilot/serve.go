package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-autopilot/internal/config"
	"github.com/jonathan/job-autopilot/internal/server"
	"github.com/jonathan/job-autopilot/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start an HTTP server exposing the cron task endpoints, the email provider
webhook and the authenticated /me endpoints.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config and PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to load JWT config: %w", err)
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, needs{LLM: true, Mail: true})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		CronSecret:      cfg.Cron.Secret,
		CronTokenMaxAge: cfg.Cron.TokenMaxAge,
		WebhookSecret:   cfg.Mail.WebhookSecret,
		RateLimit:       ratelimit.LoadConfig(),
	}, server.Deps{
		Tasks:        a.registry,
		Readiness:    a.readiness,
		Drafts:       a.drafting,
		Applications: a.sending,
		Scanner:      a.linker,
		Resumes:      a.resumes,
		UserJobs:     a.db,
		Health:       a.health,
		Tokens:       server.NewJWTService(jwtCfg).AsTokenValidator(),
		Actions:      a.actions,
	})
	return srv.Start()
}
