package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  port: 9090
matching:
  show_threshold: 40
sending:
  inter_send_delay: 5s
  max_per_hour: 2
sources:
  - name: remote-feed
    kind: feed
    url: https://example.com/api?q={keyword}
    quota_limited: true
    stale_after: 168h
    fields:
      items: jobs
      id: id
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 40, cfg.Matching.ShowThreshold)
	assert.Equal(t, 5*time.Second, cfg.Sending.InterSendDelay)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "remote-feed", cfg.Sources[0].Name)
	assert.True(t, cfg.Sources[0].QuotaLimited)
	assert.True(t, cfg.Sources[0].IsEnabled())
	assert.Equal(t, 7*24*time.Hour, cfg.Sources[0].StaleAfter)
	assert.Equal(t, "jobs", cfg.Sources[0].Fields["items"])
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"server": {"port": 7070}, "mail": {"from_domain": "mail.example.com"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "mail.example.com", cfg.Mail.FromDomain)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.ErrorContains(t, err, "config path is empty")

	_, err = Load("/nonexistent/path/config.yaml")
	assert.ErrorContains(t, err, "failed to read config file")

	path := writeConfig(t, "bad.yaml", "server: [unclosed")
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestWithDefaults(t *testing.T) {
	cfg := (&Config{Sending: SendingConfig{BatchSize: 3}}).WithDefaults()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 35, cfg.Matching.ShowThreshold)
	assert.Equal(t, 70, cfg.Matching.QualityThreshold)
	assert.Equal(t, 3, cfg.Sending.BatchSize, "explicit values are kept")
	assert.Equal(t, 10*time.Minute, cfg.Sending.LockTimeout)
	assert.Equal(t, 5, cfg.Sending.MaxPerHour)
	assert.Equal(t, 20, cfg.Sending.MaxPerDay)
	assert.Equal(t, 24*time.Hour, cfg.Sending.BounceCooldown)
	assert.Equal(t, 3, cfg.Notifications.DailyCap)
	assert.Equal(t, 1, cfg.Notifications.HourlyCap)
	assert.Equal(t, 14*24*time.Hour, cfg.Maintenance.DefaultStaleAfter)
	assert.Equal(t, 10*time.Minute, cfg.Maintenance.StuckSendTimeout)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
}

func TestValidate(t *testing.T) {
	disabled := false
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "show threshold above 100", mutate: func(c *Config) { c.Matching.ShowThreshold = 120 }, wantErr: "show_threshold"},
		{name: "quality below show", mutate: func(c *Config) { c.Matching.QualityThreshold = 10 }, wantErr: "quality_threshold"},
		{name: "hourly above daily", mutate: func(c *Config) { c.Sending.MaxPerHour = 50 }, wantErr: "max_per_hour"},
		{name: "source without name", mutate: func(c *Config) {
			c.Sources = []SourceConfig{{Kind: "feed", URL: "https://x"}}
		}, wantErr: "missing 'name'"},
		{name: "duplicate source", mutate: func(c *Config) {
			c.Sources = []SourceConfig{{Name: "a", Kind: "feed", URL: "https://x"}, {Name: "a", Kind: "board", URL: "https://y"}}
		}, wantErr: "duplicate source"},
		{name: "unknown kind", mutate: func(c *Config) {
			c.Sources = []SourceConfig{{Name: "a", Kind: "rss", URL: "https://x"}}
		}, wantErr: "unknown kind"},
		{name: "disabled source still validated", mutate: func(c *Config) {
			c.Sources = []SourceConfig{{Name: "a", Kind: "feed", Enabled: &disabled}}
		}, wantErr: "missing 'url'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := (&Config{}).WithDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("CRON_SECRET", "cron-secret")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("GEMINI_API_KEY", "gm-key")
	t.Setenv("PORT", "8181")

	cfg := &Config{Database: DatabaseConfig{URL: "postgres://file"}}
	cfg.ApplyEnv()

	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, "cron-secret", cfg.Cron.Secret)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Equal(t, 8181, cfg.Server.Port)
}

func TestStaleWindows(t *testing.T) {
	cfg := &Config{Sources: []SourceConfig{
		{Name: "fast", StaleAfter: 48 * time.Hour},
		{Name: "default"},
	}}
	windows := cfg.StaleWindows()
	assert.Equal(t, map[string]time.Duration{"fast": 48 * time.Hour}, windows)
}
