// Package config loads process configuration from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/devasignhq/devasign-api-sub002/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server   ServerConfig
	GitHub   GitHubConfig
	AI       AIConfig
	Database DBConfig
	Queue    QueueConfig
	Ledger   LedgerConfig
	Recovery RecoveryConfig
	Logging  logger.Config
}

type ServerConfig struct {
	Port           string
	MaxPayloadSize int64
}

type GitHubConfig struct {
	AppID          int64
	WebhookSecret  string
	PrivateKeyPath string
	// Token is a personal access token used by the CLI when no App is configured.
	Token   string
	Timeout time.Duration
}

type AIConfig struct {
	LLMProvider       string
	GeminiAPIKey      string
	GeneratorModel    string
	EmbedderProvider  string
	EmbedderModel     string
	OllamaHost        string
	QdrantHost        string
	Timeout           time.Duration
	EnrichmentEnabled bool
	EnrichmentDocs    int
}

var supportedProviders = []string{"gemini", "ollama"}

// Validate checks provider names. Missing credentials are not validation errors:
// they are reported where the credential is used.
func (c AIConfig) Validate() error {
	if !slices.Contains(supportedProviders, c.LLMProvider) {
		return fmt.Errorf("unsupported LLM provider %q (expected one of %s)", c.LLMProvider, strings.Join(supportedProviders, ", "))
	}
	if !slices.Contains(supportedProviders, c.EmbedderProvider) {
		return fmt.Errorf("unsupported embedder provider %q (expected one of %s)", c.EmbedderProvider, strings.Join(supportedProviders, ", "))
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive")
	}
	return nil
}

type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MaxOpenConns    int
}

// DSN returns the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

type QueueConfig struct {
	Concurrency int
	Capacity    int
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	JobTimeout  time.Duration
}

func (c QueueConfig) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("QUEUE_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	if c.Capacity < 1 {
		return fmt.Errorf("QUEUE_CAPACITY must be at least 1, got %d", c.Capacity)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("QUEUE_MAX_RETRIES must not be negative, got %d", c.MaxRetries)
	}
	if c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase {
		return fmt.Errorf("invalid queue backoff: base=%s max=%s", c.BackoffBase, c.BackoffMax)
	}
	return nil
}

type LedgerConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type RecoveryConfig struct {
	FailureThreshold int
	OpenTimeout      time.Duration
}

// MissingSecrets lists the credentials the running service cannot work without.
// An empty result means every collaborator is configured.
func (c *Config) MissingSecrets() []string {
	var missing []string
	if c.GitHub.WebhookSecret == "" {
		missing = append(missing, "GITHUB_WEBHOOK_SECRET")
	}
	missing = append(missing, c.MissingGitHubSecrets()...)
	missing = append(missing, c.MissingAISecrets()...)
	if c.Ledger.URL == "" {
		missing = append(missing, "LEDGER_URL")
	}
	return missing
}

// MissingGitHubSecrets lists absent GitHub App credentials.
func (c *Config) MissingGitHubSecrets() []string {
	var missing []string
	if c.GitHub.AppID == 0 {
		missing = append(missing, "GITHUB_APP_ID")
	}
	if c.GitHub.PrivateKeyPath == "" {
		missing = append(missing, "GITHUB_PRIVATE_KEY_PATH")
	}
	return missing
}

// MissingAISecrets lists absent AI provider credentials.
func (c *Config) MissingAISecrets() []string {
	var missing []string
	if (c.AI.LLMProvider == "gemini" || c.AI.EmbedderProvider == "gemini") && c.AI.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if (c.AI.LLMProvider == "ollama" || c.AI.EmbedderProvider == "ollama") && c.AI.OllamaHost == "" {
		missing = append(missing, "OLLAMA_HOST")
	}
	return missing
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets defaults, and validates the values that have no safe fallback. Absent
// secrets do not fail loading.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			slog.Error("failed to read config file", "error", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MAX_PAYLOAD_SIZE", 25<<20)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/devasign-app.private-key.pem")
	v.SetDefault("GITHUB_TIMEOUT", 30*time.Second)

	v.SetDefault("LLM_PROVIDER", "gemini")
	v.SetDefault("GENERATOR_MODEL_NAME", "gemini-2.5-flash")
	v.SetDefault("EMBEDDER_PROVIDER", "ollama")
	v.SetDefault("EMBEDDER_MODEL_NAME", "nomic-embed-text")
	v.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	v.SetDefault("QDRANT_HOST", "localhost:6334")
	v.SetDefault("AI_TIMEOUT", 60*time.Second)
	v.SetDefault("CONTEXT_ENRICHMENT_ENABLED", false)
	v.SetDefault("CONTEXT_ENRICHMENT_DOCS", 5)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "devasign")
	v.SetDefault("DB_NAME", "devasign")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)

	v.SetDefault("QUEUE_CONCURRENCY", 3)
	v.SetDefault("QUEUE_CAPACITY", 100)
	v.SetDefault("QUEUE_MAX_RETRIES", 3)
	v.SetDefault("QUEUE_BACKOFF_BASE", time.Second)
	v.SetDefault("QUEUE_BACKOFF_MAX", 60*time.Second)
	v.SetDefault("JOB_TIMEOUT", 5*time.Minute)

	v.SetDefault("LEDGER_TIMEOUT", 30*time.Second)

	v.SetDefault("CIRCUIT_FAILURE_THRESHOLD", 5)
	v.SetDefault("CIRCUIT_OPEN_TIMEOUT", 30*time.Second)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			MaxPayloadSize: v.GetInt64("SERVER_MAX_PAYLOAD_SIZE"),
		},
		GitHub: GitHubConfig{
			AppID:          v.GetInt64("GITHUB_APP_ID"),
			WebhookSecret:  v.GetString("GITHUB_WEBHOOK_SECRET"),
			PrivateKeyPath: v.GetString("GITHUB_PRIVATE_KEY_PATH"),
			Token:          v.GetString("GITHUB_TOKEN"),
			Timeout:        v.GetDuration("GITHUB_TIMEOUT"),
		},
		AI: AIConfig{
			LLMProvider:       strings.ToLower(v.GetString("LLM_PROVIDER")),
			GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
			GeneratorModel:    v.GetString("GENERATOR_MODEL_NAME"),
			EmbedderProvider:  strings.ToLower(v.GetString("EMBEDDER_PROVIDER")),
			EmbedderModel:     v.GetString("EMBEDDER_MODEL_NAME"),
			OllamaHost:        v.GetString("OLLAMA_HOST"),
			QdrantHost:        v.GetString("QDRANT_HOST"),
			Timeout:           v.GetDuration("AI_TIMEOUT"),
			EnrichmentEnabled: v.GetBool("CONTEXT_ENRICHMENT_ENABLED"),
			EnrichmentDocs:    v.GetInt("CONTEXT_ENRICHMENT_DOCS"),
		},
		Database: DBConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Username:        v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		Queue: QueueConfig{
			Concurrency: v.GetInt("QUEUE_CONCURRENCY"),
			Capacity:    v.GetInt("QUEUE_CAPACITY"),
			MaxRetries:  v.GetInt("QUEUE_MAX_RETRIES"),
			BackoffBase: v.GetDuration("QUEUE_BACKOFF_BASE"),
			BackoffMax:  v.GetDuration("QUEUE_BACKOFF_MAX"),
			JobTimeout:  v.GetDuration("JOB_TIMEOUT"),
		},
		Ledger: LedgerConfig{
			URL:     strings.TrimRight(v.GetString("LEDGER_URL"), "/"),
			APIKey:  v.GetString("LEDGER_API_KEY"),
			Timeout: v.GetDuration("LEDGER_TIMEOUT"),
		},
		Recovery: RecoveryConfig{
			FailureThreshold: v.GetInt("CIRCUIT_FAILURE_THRESHOLD"),
			OpenTimeout:      v.GetDuration("CIRCUIT_OPEN_TIMEOUT"),
		},
		Logging: logger.Config{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
			Output: strings.ToLower(v.GetString("LOG_OUTPUT")),
		},
	}

	if err := cfg.AI.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI config: %w", err)
	}
	if err := cfg.Queue.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	if cfg.Recovery.FailureThreshold < 1 {
		return nil, fmt.Errorf("CIRCUIT_FAILURE_THRESHOLD must be at least 1")
	}
	return cfg, nil
}
