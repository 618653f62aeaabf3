package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GITHUB_WEBHOOK_SECRET", "")
	t.Setenv("GITHUB_APP_ID", "")

	cfg, err := LoadConfig()
	require.NoError(t, err, "missing secrets must not fail loading")

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, time.Second, cfg.Queue.BackoffBase)
	assert.Equal(t, 60*time.Second, cfg.Queue.BackoffMax)
	assert.Equal(t, 5, cfg.Recovery.FailureThreshold)
	assert.Contains(t, cfg.MissingSecrets(), "GITHUB_WEBHOOK_SECRET")
	assert.Contains(t, cfg.MissingSecrets(), "GITHUB_APP_ID")
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GITHUB_WEBHOOK_SECRET", "s3cret")
	t.Setenv("GITHUB_APP_ID", "12345")
	t.Setenv("LLM_PROVIDER", "OLLAMA")
	t.Setenv("QUEUE_CONCURRENCY", "7")
	t.Setenv("QUEUE_BACKOFF_MAX", "2m")
	t.Setenv("LEDGER_URL", "https://wallet.internal/")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.GitHub.WebhookSecret)
	assert.Equal(t, int64(12345), cfg.GitHub.AppID)
	assert.Equal(t, "ollama", cfg.AI.LLMProvider)
	assert.Equal(t, 7, cfg.Queue.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Queue.BackoffMax)
	assert.Equal(t, "https://wallet.internal", cfg.Ledger.URL)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown provider", env: map[string]string{"LLM_PROVIDER": "openai"}},
		{name: "zero workers", env: map[string]string{"QUEUE_CONCURRENCY": "0"}},
		{name: "backoff max below base", env: map[string]string{"QUEUE_BACKOFF_BASE": "10s", "QUEUE_BACKOFF_MAX": "1s"}},
		{name: "zero breaker threshold", env: map[string]string{"CIRCUIT_FAILURE_THRESHOLD": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestConfig_MissingAISecrets(t *testing.T) {
	cfg := &Config{AI: AIConfig{LLMProvider: "gemini", EmbedderProvider: "ollama", OllamaHost: "http://ollama:11434"}}
	assert.Equal(t, []string{"GEMINI_API_KEY"}, cfg.MissingAISecrets())

	cfg.AI.GeminiAPIKey = "key"
	assert.Empty(t, cfg.MissingAISecrets())
}

func TestParseRepoConfig(t *testing.T) {
	t.Run("empty input yields defaults", func(t *testing.T) {
		cfg, err := ParseRepoConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, core.DefaultRepoConfig(), cfg)
	})

	t.Run("rules are normalized", func(t *testing.T) {
		data := []byte(`
custom_instructions:
  - Prefer table-driven tests.
custom_rules:
  - id: no-todo
    name: No TODO comments
    description: New code must not add TODO comments.
  - id: ""
    name: nameless
  - id: api-docs
    name: Public API is documented
    severity: high
exclude_paths:
  - ./dist/
  - "  "
  - vendor/
`)
		cfg, err := ParseRepoConfig(data)
		require.NoError(t, err)

		require.Len(t, cfg.CustomRules, 2)
		assert.Equal(t, "no-todo", cfg.CustomRules[0].ID)
		assert.Equal(t, core.SeverityMedium, cfg.CustomRules[0].Severity)
		assert.Equal(t, core.SeverityHigh, cfg.CustomRules[1].Severity)
		assert.Equal(t, []string{"dist/", "vendor/"}, cfg.ExcludePaths)
		assert.Equal(t, []string{"Prefer table-driven tests."}, cfg.CustomInstructions)
	})

	t.Run("invalid yaml falls back to defaults", func(t *testing.T) {
		cfg, err := ParseRepoConfig([]byte("custom_rules: [unclosed"))
		require.ErrorIs(t, err, ErrConfigParsing)
		assert.Equal(t, core.DefaultRepoConfig(), cfg)
	})
}
