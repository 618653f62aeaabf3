package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/llms"
	"github.com/sevigo/goframe/llms/gemini"
	"github.com/sevigo/goframe/llms/ollama"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// DefaultTimeout bounds a single AI provider call.
const DefaultTimeout = 60 * time.Second

// Reviewer is the AI provider as seen by the analysis pipeline.
type Reviewer interface {
	// GenerateReview sends a rendered prompt and parses the model's verdict.
	GenerateReview(ctx context.Context, prompt string) (*ReviewVerdict, error)
	// GenerateEmbedding embeds text with the configured embedding model.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	// Provider selects the prompt variant for the generator model.
	Provider() ModelProvider
}

type aiReviewer struct {
	generator llms.Model
	embedder  embeddings.Embedder
	provider  ModelProvider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewReviewer wraps a generator model and an embedder. Either may be nil when the
// provider is not configured; calls then fail with a configuration error.
func NewReviewer(generator llms.Model, embedder embeddings.Embedder, provider ModelProvider, timeout time.Duration, logger *slog.Logger) Reviewer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &aiReviewer{
		generator: generator,
		embedder:  embedder,
		provider:  provider,
		timeout:   timeout,
		logger:    logger,
	}
}

func (r *aiReviewer) Provider() ModelProvider {
	return r.provider
}

func (r *aiReviewer) GenerateReview(ctx context.Context, prompt string) (*ReviewVerdict, error) {
	if r.generator == nil {
		return nil, core.NewError(core.KindConfiguration, "AI generator model is not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	response, err := llms.GenerateFromSinglePrompt(ctx, r.generator, prompt)
	if err != nil {
		return nil, core.NewError(core.KindAnalysis, "AI provider call failed", err).
			WithDetail("provider", string(r.provider))
	}
	r.logger.Debug("AI provider answered", "provider", r.provider, "duration", time.Since(start), "response_chars", len(response))

	verdict, err := ParseReviewVerdict(response)
	if err != nil {
		return nil, core.NewError(core.KindAnalysis, "AI provider returned an unparseable review", err).
			WithDetail("provider", string(r.provider))
	}
	return verdict, nil
}

func (r *aiReviewer) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if r.embedder == nil {
		return nil, core.NewError(core.KindConfiguration, "embedding model is not configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vec, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, core.NewError(core.KindTransient, "embedding call failed", err)
	}
	return vec, nil
}

// NewGeneratorModel creates the generator model for the configured provider.
func NewGeneratorModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llms.Model, error) {
	switch cfg.AI.LLMProvider {
	case "gemini":
		if cfg.AI.GeminiAPIKey == "" {
			return nil, core.NewError(core.KindConfiguration, "GEMINI_API_KEY is not set", nil)
		}
		return gemini.New(ctx, gemini.WithModel(cfg.AI.GeneratorModel), gemini.WithAPIKey(cfg.AI.GeminiAPIKey))
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.AI.OllamaHost),
			ollama.WithHTTPClient(NewOllamaHTTPClient()),
			ollama.WithModel(cfg.AI.GeneratorModel),
			ollama.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.AI.LLMProvider)
	}
}

// NewEmbedder creates the embedding model for the configured provider.
func NewEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embeddings.Embedder, error) {
	var (
		embedderLLM embeddings.Embedder
		err         error
	)

	switch cfg.AI.EmbedderProvider {
	case "gemini":
		if cfg.AI.GeminiAPIKey == "" {
			return nil, core.NewError(core.KindConfiguration, "GEMINI_API_KEY is not set", nil)
		}
		embedderLLM, err = gemini.New(ctx,
			gemini.WithEmbeddingModel(cfg.AI.EmbedderModel),
			gemini.WithAPIKey(cfg.AI.GeminiAPIKey),
		)
	case "ollama":
		embedderLLM, err = ollama.New(
			ollama.WithServerURL(cfg.AI.OllamaHost),
			ollama.WithModel(cfg.AI.EmbedderModel),
			ollama.WithHTTPClient(NewOllamaHTTPClient()),
			ollama.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.AI.EmbedderProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder LLM: %w", err)
	}
	return embeddings.NewEmbedder(embedderLLM)
}

// ProviderFor maps a configured provider name onto a prompt variant.
func ProviderFor(name string) ModelProvider {
	switch strings.ToLower(name) {
	case "gemini":
		return GeminiProvider
	case "ollama":
		return OllamaProvider
	default:
		return DefaultProvider
	}
}

// NewOllamaHTTPClient returns an HTTP client with generous timeouts; local models
// can take minutes on large prompts.
func NewOllamaHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxConnsPerHost:     10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: 5 * time.Minute,
	}
}
