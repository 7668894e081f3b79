package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/job-autopilot/internal/config"
	"github.com/jonathan/job-autopilot/internal/db"
	"github.com/jonathan/job-autopilot/internal/drafting"
	"github.com/jonathan/job-autopilot/internal/fetch"
	"github.com/jonathan/job-autopilot/internal/ingest"
	"github.com/jonathan/job-autopilot/internal/keywords"
	"github.com/jonathan/job-autopilot/internal/llm"
	"github.com/jonathan/job-autopilot/internal/lock"
	"github.com/jonathan/job-autopilot/internal/mailer"
	"github.com/jonathan/job-autopilot/internal/maintenance"
	"github.com/jonathan/job-autopilot/internal/matching"
	"github.com/jonathan/job-autopilot/internal/notify"
	"github.com/jonathan/job-autopilot/internal/pipeline"
	"github.com/jonathan/job-autopilot/internal/pipeline/steps"
	"github.com/jonathan/job-autopilot/internal/readiness"
	"github.com/jonathan/job-autopilot/internal/resumes"
	"github.com/jonathan/job-autopilot/internal/sending"
	"github.com/jonathan/job-autopilot/internal/server/ratelimit"
	"github.com/jonathan/job-autopilot/internal/sources"
	"github.com/jonathan/job-autopilot/internal/types"
)

// healthWindow is how far back /cron/health looks for batch summaries.
const healthWindow = 24 * time.Hour

// needs lists the external services a command cannot run without.
type needs struct {
	LLM  bool
	Mail bool
}

// app holds every service built from one configuration.
type app struct {
	cfg *config.Config
	db  *db.DB
	llm llm.Client

	keywords  *keywords.Aggregator
	linker    *matching.Linker
	scraper   *pipeline.Scraper
	readiness *readiness.Checker
	resumes   *resumes.Service
	drafting  *drafting.Service
	sending   *sending.Service
	sweeper   *maintenance.Sweeper
	actions   *ratelimit.ActionLimiter
	registry  *steps.Registry

	closers []func()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// llmConfig maps the configured provider and model overrides onto the
// client configuration.
func llmConfig(cfg config.LLMConfig) *llm.Config {
	out := llm.DefaultGeminiConfig()
	if llm.Provider(cfg.Provider) == llm.ProviderAnthropic {
		out = llm.DefaultClaudeConfig()
	}
	for tier, model := range cfg.Models {
		if model != "" {
			out.Models[llm.ModelTier(tier)] = model
		}
	}
	return out
}

// newApp connects to the database and builds the services. Services that
// depend on an unavailable provider are left nil and their tasks are not
// registered.
func newApp(ctx context.Context, cfg *config.Config, req needs) (*app, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a := &app{cfg: cfg, db: database}
	a.closers = append(a.closers, database.Close)

	if err := a.build(ctx, req); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context, req needs) error {
	cfg := a.cfg

	var sender mailer.Sender
	if cfg.Mail.APIURL != "" {
		client, err := mailer.NewClient(mailer.Config{BaseURL: cfg.Mail.APIURL, APIKey: cfg.Mail.APIKey, Timeout: 30 * time.Second})
		if err != nil {
			return fmt.Errorf("failed to create mail client: %w", err)
		}
		sender = client
	} else if req.Mail {
		return fmt.Errorf("MAIL_API_URL environment variable is required")
	} else {
		log.Printf("[autopilot] no mail API configured; sending and notifications disabled")
	}

	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(ctx, llmConfig(cfg.LLM), cfg.LLM.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.llm = client
		a.closers = append(a.closers, func() { _ = client.Close() })
	} else if req.LLM {
		return fmt.Errorf("an API key for LLM provider %q is required", cfg.LLM.Provider)
	} else {
		log.Printf("[autopilot] no LLM API key; drafting disabled")
	}

	thresholds := matching.Thresholds{Show: cfg.Matching.ShowThreshold, Quality: cfg.Matching.QualityThreshold}

	var matchNotifier matching.Notifier
	var bounceNotifier sending.BounceNotifier
	if sender != nil {
		n := notify.NewNotifier(
			notify.NewLimiter(a.db, notify.Limits{PerDay: cfg.Notifications.DailyCap, PerHour: cfg.Notifications.HourlyCap}),
			sender,
			"notifications@"+cfg.Mail.FromDomain,
		)
		matchNotifier, bounceNotifier = n, n
	}

	a.keywords = keywords.NewAggregator(a.db)
	a.linker = matching.NewLinker(a.db, matching.Options{
		Thresholds:    thresholds,
		BatchLookback: cfg.Matching.BatchLookback,
		MaxJobs:       cfg.Matching.MaxJobsPerRun,
	}, matchNotifier)

	var renderer fetch.Renderer
	for _, sc := range cfg.Sources {
		if sc.IsEnabled() && sc.UseBrowser {
			renderer = fetch.NewChromeRenderer()
			break
		}
	}
	adapters, err := sources.NewFromConfig(cfg.Sources, renderer)
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}
	a.scraper = pipeline.NewScraper(a.keywords, adapters, ingest.NewUpserter(a.db), a.linker, pipeline.Options{
		QuotaKeywordCap: cfg.Matching.QuotaKeywordCap,
		MatchFresh:      true,
		OnProgress: func(ev pipeline.ProgressEvent) {
			log.Printf("[scrape] %s %s: %s", ev.Stage, ev.Source, ev.Message)
		},
	})

	a.readiness = readiness.NewChecker(a.db)
	a.resumes = resumes.NewService(a.db)
	a.sweeper = maintenance.NewSweeper(a.db, maintenance.Options{
		DefaultStaleAfter: cfg.Maintenance.DefaultStaleAfter,
		StaleWindows:      cfg.StaleWindows(),
		StuckSendTimeout:  cfg.Maintenance.StuckSendTimeout,
		LogRetention:      cfg.Maintenance.LogRetention,
		GhostAfter:        cfg.Maintenance.GhostAfter,
	})

	if a.llm != nil {
		opts := drafting.DefaultOptions()
		opts.Timeout = cfg.Drafting.Timeout
		opts.UndoWindow = cfg.Drafting.UndoWindow
		opts.AutoDraftLimit = cfg.Drafting.AutoDraftLimit
		opts.Thresholds = thresholds
		selector := resumes.NewSelector(resumes.NewLLMTiebreaker(a.llm), cfg.Drafting.TiebreakTimeout)
		a.drafting = drafting.NewService(a.db, drafting.NewLLMDrafter(a.llm), selector, a.readiness, opts)
	}

	if sender != nil {
		opts := sending.DefaultOptions()
		opts.BatchSize = cfg.Sending.BatchSize
		opts.Pacing = cfg.Sending.InterSendDelay
		opts.SoftBudget = cfg.Sending.SoftBudget
		opts.LockTimeout = cfg.Sending.LockTimeout
		opts.PerHour = cfg.Sending.MaxPerHour
		opts.PerDay = cfg.Sending.MaxPerDay
		opts.BounceCooldown = cfg.Sending.BounceCooldown
		opts.MaxManualRetries = cfg.Sending.MaxManualRetry
		a.sending = sending.NewService(a.db, lock.NewRunner(a.db), sender, a.readiness, bounceNotifier, opts)
	}

	store, err := a.counterStore(ctx)
	if err != nil {
		return err
	}
	a.actions = ratelimit.NewActionLimiter(store, nil)

	a.registry, err = a.newRegistry()
	return err
}

// counterStore shares action counters through Redis when configured.
func (a *app) counterStore(ctx context.Context) (ratelimit.CounterStore, error) {
	if a.cfg.Redis.URL == "" {
		mem := ratelimit.NewMemoryStore(5 * time.Minute)
		a.closers = append(a.closers, mem.Stop)
		return mem, nil
	}
	rs, err := ratelimit.NewRedisStoreFromURL(a.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis store: %w", err)
	}
	if err := rs.Ping(ctx); err != nil {
		_ = rs.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rs.Close() })
	return rs, nil
}

func (a *app) newRegistry() (*steps.Registry, error) {
	tasks := map[string]steps.TaskFunc{
		steps.TaskScrape: a.scraper.Run,
		steps.TaskMatch: func(ctx context.Context) *types.BatchResult {
			return a.linker.Run(ctx, matching.LaneBatch)
		},
		steps.TaskSweep: a.sweeper.Run,
	}
	if a.drafting != nil {
		tasks[steps.TaskAutoDraft] = a.drafting.AutoDraft
	}
	if a.sending != nil {
		tasks[steps.TaskSend] = a.sending.RunBatch
	}

	reg := steps.NewRegistry()
	for name, fn := range tasks {
		if err := reg.Register(name, fn); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (a *app) health(ctx context.Context) (*maintenance.HealthReport, error) {
	return maintenance.Health(ctx, a.db, healthWindow)
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
