// Package config provides configuration loading and validation for the
// autopilot service and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. It is read from a YAML (or JSON)
// file and then overlaid with environment variables. Zero values are filled
// by WithDefaults.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	LLM           LLMConfig          `yaml:"llm"`
	Mail          MailConfig         `yaml:"mail"`
	Cron          CronConfig         `yaml:"cron"`
	Matching      MatchingConfig     `yaml:"matching"`
	Drafting      DraftingConfig     `yaml:"drafting"`
	Sending       SendingConfig      `yaml:"sending"`
	Notifications NotificationConfig `yaml:"notifications"`
	Maintenance   MaintenanceConfig  `yaml:"maintenance"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig configures the optional shared store for rate-limit counters.
// An empty URL keeps counters in process memory.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LLMConfig selects the AI provider.
type LLMConfig struct {
	Provider string            `yaml:"provider"`
	APIKey   string            `yaml:"api_key"`
	Models   map[string]string `yaml:"models"`
}

// MailConfig configures the transactional email API.
type MailConfig struct {
	APIURL        string `yaml:"api_url"`
	APIKey        string `yaml:"api_key"`
	FromDomain    string `yaml:"from_domain"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// CronConfig holds the shared secret for scheduled-task endpoints.
type CronConfig struct {
	Secret      string        `yaml:"secret"`
	TokenMaxAge time.Duration `yaml:"token_max_age"`
}

// MatchingConfig holds scoring thresholds and lane sizes.
type MatchingConfig struct {
	ShowThreshold    int           `yaml:"show_threshold"`
	QualityThreshold int           `yaml:"quality_threshold"`
	BatchLookback    time.Duration `yaml:"batch_lookback"`
	MaxJobsPerRun    int           `yaml:"max_jobs_per_run"`
	QuotaKeywordCap  int           `yaml:"quota_keyword_cap"`
}

// DraftingConfig bounds AI calls made while drafting.
type DraftingConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	TiebreakTimeout time.Duration `yaml:"tiebreak_timeout"`
	AutoDraftLimit  int           `yaml:"auto_draft_limit"`
	UndoWindow      time.Duration `yaml:"undo_window"`
}

// SendingConfig bounds the send batch.
type SendingConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	InterSendDelay time.Duration `yaml:"inter_send_delay"`
	SoftBudget     time.Duration `yaml:"soft_budget"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
	MaxPerHour     int           `yaml:"max_per_hour"`
	MaxPerDay      int           `yaml:"max_per_day"`
	BounceCooldown time.Duration `yaml:"bounce_cooldown"`
	MaxManualRetry int           `yaml:"max_manual_retry"`
}

// NotificationConfig caps outbound user notifications.
type NotificationConfig struct {
	DailyCap  int `yaml:"daily_cap"`
	HourlyCap int `yaml:"hourly_cap"`
}

// MaintenanceConfig configures the sweep.
type MaintenanceConfig struct {
	DefaultStaleAfter time.Duration `yaml:"default_stale_after"`
	StuckSendTimeout  time.Duration `yaml:"stuck_send_timeout"`
	LogRetention      time.Duration `yaml:"log_retention"`
	GhostAfter        time.Duration `yaml:"ghost_after"`
}

// SourceConfig describes one job source adapter.
type SourceConfig struct {
	Name         string            `yaml:"name"`
	Kind         string            `yaml:"kind"` // feed or board
	URL          string            `yaml:"url"`  // may contain {keyword} and {location}
	Enabled      *bool             `yaml:"enabled"`
	QuotaLimited bool              `yaml:"quota_limited"`
	StaleAfter   time.Duration     `yaml:"stale_after"`
	UseBrowser   bool              `yaml:"use_browser"`
	Headers      map[string]string `yaml:"headers"`
	Fields       map[string]string `yaml:"fields"` // feed: gjson paths; board: CSS selectors
}

// IsEnabled reports whether the source should be scraped. Sources are enabled
// unless explicitly turned off.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Load reads configuration from a YAML or JSON file. JSON is valid YAML, so
// both go through the same decoder.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path when it is set and otherwise starts from an empty
// config. Env overrides and defaults are applied in both cases.
func LoadOrDefault(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	result := cfg.WithDefaults()
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// ApplyEnv overlays well-known environment variables onto the config.
func (c *Config) ApplyEnv() {
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.Mail.APIURL, "MAIL_API_URL")
	setString(&c.Mail.APIKey, "MAIL_API_KEY")
	setString(&c.Mail.FromDomain, "MAIL_FROM_DOMAIN")
	setString(&c.Mail.WebhookSecret, "WEBHOOK_SECRET")
	setString(&c.Cron.Secret, "CRON_SECRET")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	// The API key follows the selected provider.
	switch c.LLM.Provider {
	case "anthropic":
		setString(&c.LLM.APIKey, "ANTHROPIC_API_KEY")
	default:
		setString(&c.LLM.APIKey, "GEMINI_API_KEY")
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Matching.ShowThreshold < 0 || c.Matching.ShowThreshold > 100 {
		return fmt.Errorf("config error: 'matching.show_threshold' must be within 0-100")
	}
	if c.Matching.QualityThreshold < c.Matching.ShowThreshold || c.Matching.QualityThreshold > 100 {
		return fmt.Errorf("config error: 'matching.quality_threshold' must be within show_threshold-100")
	}
	if c.Sending.BatchSize < 0 {
		return fmt.Errorf("config error: 'sending.batch_size' must be non-negative")
	}
	if c.Sending.MaxPerHour < 0 || c.Sending.MaxPerDay < 0 {
		return fmt.Errorf("config error: sending quotas must be non-negative")
	}
	if c.Sending.MaxPerDay > 0 && c.Sending.MaxPerHour > c.Sending.MaxPerDay {
		return fmt.Errorf("config error: 'sending.max_per_hour' cannot exceed 'sending.max_per_day'")
	}

	seen := make(map[string]bool)
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("config error: sources[%d] is missing 'name'", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("config error: duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Kind != "feed" && s.Kind != "board" {
			return fmt.Errorf("config error: source %q has unknown kind %q", s.Name, s.Kind)
		}
		if s.URL == "" {
			return fmt.Errorf("config error: source %q is missing 'url'", s.Name)
		}
	}

	return nil
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c *Config) WithDefaults() Config {
	result := *c

	setIntDefault(&result.Server.Port, 8080)
	if result.LLM.Provider == "" {
		result.LLM.Provider = "gemini"
	}

	setDurationDefault(&result.Cron.TokenMaxAge, 5*time.Minute)

	setIntDefault(&result.Matching.ShowThreshold, 35)
	setIntDefault(&result.Matching.QualityThreshold, 70)
	setDurationDefault(&result.Matching.BatchLookback, 72*time.Hour)
	setIntDefault(&result.Matching.MaxJobsPerRun, 500)
	setIntDefault(&result.Matching.QuotaKeywordCap, 10)

	setDurationDefault(&result.Drafting.Timeout, 45*time.Second)
	setDurationDefault(&result.Drafting.TiebreakTimeout, 15*time.Second)
	setIntDefault(&result.Drafting.AutoDraftLimit, 3)
	setDurationDefault(&result.Drafting.UndoWindow, 10*time.Minute)

	setIntDefault(&result.Sending.BatchSize, 10)
	setDurationDefault(&result.Sending.InterSendDelay, 2*time.Second)
	setDurationDefault(&result.Sending.SoftBudget, 50*time.Second)
	setDurationDefault(&result.Sending.LockTimeout, 10*time.Minute)
	setIntDefault(&result.Sending.MaxPerHour, 5)
	setIntDefault(&result.Sending.MaxPerDay, 20)
	setDurationDefault(&result.Sending.BounceCooldown, 24*time.Hour)
	setIntDefault(&result.Sending.MaxManualRetry, 3)

	setIntDefault(&result.Notifications.DailyCap, 3)
	setIntDefault(&result.Notifications.HourlyCap, 1)

	setDurationDefault(&result.Maintenance.DefaultStaleAfter, 14*24*time.Hour)
	setDurationDefault(&result.Maintenance.StuckSendTimeout, 10*time.Minute)
	setDurationDefault(&result.Maintenance.LogRetention, 30*24*time.Hour)
	setDurationDefault(&result.Maintenance.GhostAfter, 21*24*time.Hour)

	return result
}

// StaleWindows returns the per-source staleness windows that differ from the default.
func (c *Config) StaleWindows() map[string]time.Duration {
	windows := make(map[string]time.Duration)
	for _, s := range c.Sources {
		if s.StaleAfter > 0 {
			windows[s.Name] = s.StaleAfter
		}
	}
	return windows
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setIntDefault(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setDurationDefault(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}
