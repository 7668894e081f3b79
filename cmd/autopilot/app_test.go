package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-autopilot/internal/config"
	"github.com/jonathan/job-autopilot/internal/llm"
	"github.com/jonathan/job-autopilot/internal/pipeline/steps"
	"github.com/jonathan/job-autopilot/internal/types"
)

func TestLLMConfig(t *testing.T) {
	tests := []struct {
		name     string
		in       config.LLMConfig
		provider llm.Provider
		standard string
	}{
		{"default gemini", config.LLMConfig{}, llm.ProviderGemini, llm.DefaultGeminiConfig().Models[llm.TierStandard]},
		{"anthropic", config.LLMConfig{Provider: "anthropic"}, llm.ProviderAnthropic, llm.DefaultClaudeConfig().Models[llm.TierStandard]},
		{"model override", config.LLMConfig{Provider: "gemini", Models: map[string]string{"standard": "gemini-custom"}}, llm.ProviderGemini, "gemini-custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := llmConfig(tt.in)
			assert.Equal(t, tt.provider, got.Provider)
			assert.Equal(t, tt.standard, got.Models[llm.TierStandard])
		})
	}
}

func TestRequiredNeeds(t *testing.T) {
	assert.Equal(t, needs{}, requiredNeeds([]string{steps.TaskScrape, steps.TaskMatch, steps.TaskSweep}))
	assert.Equal(t, needs{LLM: true}, requiredNeeds([]string{steps.TaskMatch, steps.TaskAutoDraft}))
	assert.Equal(t, needs{LLM: true, Mail: true}, requiredNeeds(steps.Names()))
}

func TestTaskCommandsRegistered(t *testing.T) {
	for _, name := range append(steps.Names(), "serve", "run", "migrate", "keywords", "health", "cron-token") {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	res := types.NewBatchResult(steps.TaskSweep)
	res.Add("deactivated", 3)
	require.NoError(t, printResults(&buf, []*types.BatchResult{res.Finish()}))
	assert.Contains(t, buf.String(), `"task": "sweep"`)
	assert.Contains(t, buf.String(), `"deactivated": 3`)
}

func TestCronTokenCommand(t *testing.T) {
	t.Setenv("CRON_SECRET", "cron-secret-for-cli-tests")
	configPath = ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"cron-token", "--ttl", "1m"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		cronTokenTTL = 2 * time.Minute
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, 2, bytes.Count(bytes.TrimSpace(out.Bytes()), []byte(".")))
}
