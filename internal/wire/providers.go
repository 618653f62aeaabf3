package wire

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"
	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/llms"

	"github.com/devasignhq/devasign-api-sub002/internal/analysis"
	"github.com/devasignhq/devasign-api-sub002/internal/app"
	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/db"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/jobs"
	"github.com/devasignhq/devasign-api-sub002/internal/ledger"
	"github.com/devasignhq/devasign-api-sub002/internal/llm"
	"github.com/devasignhq/devasign-api-sub002/internal/logger"
	"github.com/devasignhq/devasign-api-sub002/internal/payout"
	"github.com/devasignhq/devasign-api-sub002/internal/recovery"
	"github.com/devasignhq/devasign-api-sub002/internal/review"
	"github.com/devasignhq/devasign-api-sub002/internal/server"
	"github.com/devasignhq/devasign-api-sub002/internal/storage"
	"github.com/devasignhq/devasign-api-sub002/internal/webhook"
)

// AppSet provides everything the webhook service needs.
var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	config.LoadConfig,
	storage.NewStore,
	storage.NewTxManager,
	llm.NewPromptManager,
	provideLogger,
	provideDatabase,
	provideSQLX,
	provideBreakers,
	provideAppClientFactory,
	provideClientFactory,
	provideGeneratorModel,
	provideEmbedder,
	provideReviewer,
	provideRepoIndex,
	provideAnalyzer,
	providePublisher,
	provideAnalysisHandler,
	provideQueue,
	provideLedger,
	providePayoutService,
	provideClassifier,
	provideCoordinator,
	provideServerDeps,
)

// ToolkitSet provides the components the admin CLI drives directly, without the
// HTTP server or the queue.
var ToolkitSet = wire.NewSet(
	config.LoadConfig,
	storage.NewStore,
	storage.NewTxManager,
	llm.NewPromptManager,
	provideLogger,
	provideDatabase,
	provideSQLX,
	provideBreakers,
	provideAppClientFactory,
	provideClientFactory,
	provideGeneratorModel,
	provideEmbedder,
	provideReviewer,
	provideRepoIndex,
	provideAnalyzer,
	providePublisher,
	provideLedger,
	providePayoutService,
	provideCoordinator,
	wire.Struct(new(Toolkit), "*"),
)

// Toolkit groups the services used by one-shot administrative commands.
type Toolkit struct {
	Cfg         *config.Config
	Logger      *slog.Logger
	Store       *storage.Store
	Clients     github.ClientFactory
	Analyzer    *analysis.Analyzer
	Publisher   *review.Publisher
	Payouts     *payout.Service
	Ledger      *ledger.Client
	Index       storage.RepoIndex
	Coordinator *recovery.Coordinator
}

// Breakers are the circuit breakers shared by the clients and the coordinator.
type Breakers struct {
	AI       *recovery.Breaker
	GitHub   *recovery.Breaker
	Database *recovery.Breaker
}

func provideLogger(cfg *config.Config) *slog.Logger {
	l := logger.NewLogger(cfg.Logging, nil)
	slog.SetDefault(l)
	return l
}

// provideDatabase connects and applies pending migrations.
func provideDatabase(cfg *config.Config, logger *slog.Logger) (*db.DB, func(), error) {
	conn, cleanup, err := db.NewDatabase(&cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.RunMigrations(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return conn, cleanup, nil
}

func provideSQLX(conn *db.DB) *sqlx.DB {
	return conn.DB
}

func provideBreakers(cfg *config.Config, logger *slog.Logger) *Breakers {
	return &Breakers{
		AI:       recovery.NewBreaker(recovery.ServiceAIProvider, cfg.Recovery, logger),
		GitHub:   recovery.NewBreaker(recovery.ServiceGitHub, cfg.Recovery, logger),
		Database: recovery.NewBreaker(recovery.ServiceDatabase, cfg.Recovery, logger),
	}
}

func provideAppClientFactory(cfg *config.Config, logger *slog.Logger) *github.AppClientFactory {
	return github.NewAppClientFactory(cfg, logger)
}

func provideClientFactory(f *github.AppClientFactory, b *Breakers) github.ClientFactory {
	return github.GuardedFactory(f, b.GitHub)
}

// provideGeneratorModel returns a nil model when the provider lacks credentials so
// the service still starts; reviews then fail with a configuration error.
func provideGeneratorModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llms.Model, error) {
	model, err := llm.NewGeneratorModel(ctx, cfg, logger)
	if core.IsKind(err, core.KindConfiguration) {
		logger.Warn("AI generator unavailable", "error", err)
		return nil, nil
	}
	return model, err
}

func provideEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embeddings.Embedder, error) {
	emb, err := llm.NewEmbedder(ctx, cfg, logger)
	if core.IsKind(err, core.KindConfiguration) {
		logger.Warn("embedding model unavailable", "error", err)
		return nil, nil
	}
	return emb, err
}

func provideReviewer(cfg *config.Config, generator llms.Model, embedder embeddings.Embedder, logger *slog.Logger) llm.Reviewer {
	return llm.NewReviewer(generator, embedder, llm.ProviderFor(cfg.AI.LLMProvider), cfg.AI.Timeout, logger)
}

// provideRepoIndex returns nil when enrichment is disabled or nothing can embed.
func provideRepoIndex(cfg *config.Config, embedder embeddings.Embedder, logger *slog.Logger) storage.RepoIndex {
	if !cfg.AI.EnrichmentEnabled || embedder == nil {
		return nil
	}
	return storage.NewQdrantRepoIndex(cfg.AI.QdrantHost, cfg.AI.EmbedderModel, embedder, logger)
}

func provideAnalyzer(cfg *config.Config, prompts *llm.PromptManager, reviewer llm.Reviewer, index storage.RepoIndex, b *Breakers, logger *slog.Logger) *analysis.Analyzer {
	opts := []analysis.Option{analysis.WithGuard(b.AI)}
	if cfg.AI.EnrichmentEnabled {
		opts = append(opts, analysis.WithEnricher(analysis.NewContextEnricher(index, cfg.AI.EnrichmentDocs, logger)))
	}
	return analysis.NewAnalyzer(prompts, reviewer, logger, opts...)
}

func providePublisher(clients github.ClientFactory, store *storage.Store, logger *slog.Logger) *review.Publisher {
	return review.NewPublisher(clients, store, logger)
}

func provideAnalysisHandler(clients github.ClientFactory, analyzer *analysis.Analyzer, publisher *review.Publisher, store *storage.Store, logger *slog.Logger) *jobs.AnalysisHandler {
	return jobs.NewAnalysisHandler(clients, analyzer, publisher, store, logger)
}

func provideQueue(cfg *config.Config, logger *slog.Logger) *jobs.Queue {
	return jobs.NewQueue(cfg.Queue, logger)
}

func provideLedger(cfg *config.Config, logger *slog.Logger) *ledger.Client {
	return ledger.NewClient(cfg.Ledger, logger)
}

func providePayoutService(store *storage.Store, tx *storage.TxManager, l *ledger.Client, clients github.ClientFactory, logger *slog.Logger) *payout.Service {
	return payout.NewService(store, tx, l, clients, logger)
}

func provideClassifier(clients github.ClientFactory, logger *slog.Logger) *webhook.Classifier {
	return webhook.NewClassifier(clients, logger)
}

// provideCoordinator registers the recovery strategy of every external service.
func provideCoordinator(cfg *config.Config, b *Breakers, gh *github.AppClientFactory, reviewer llm.Reviewer, store *storage.Store, l *ledger.Client, logger *slog.Logger) *recovery.Coordinator {
	return recovery.NewCoordinator(logger,
		recovery.Service{
			Name:    recovery.ServiceAIProvider,
			Breaker: b.AI,
			Missing: cfg.MissingAISecrets,
			Probe: func(ctx context.Context) error {
				_, err := reviewer.GenerateEmbedding(ctx, "health check")
				return err
			},
		},
		recovery.Service{
			Name:    recovery.ServiceGitHub,
			Breaker: b.GitHub,
			Missing: func() []string {
				missing := cfg.MissingGitHubSecrets()
				if cfg.GitHub.WebhookSecret == "" {
					missing = append(missing, "GITHUB_WEBHOOK_SECRET")
				}
				return missing
			},
			Probe: gh.Ping,
		},
		recovery.Service{
			Name:    recovery.ServiceDatabase,
			Breaker: b.Database,
			Probe: func(ctx context.Context) error {
				return b.Database.Execute(ctx, store.Ping)
			},
		},
		recovery.Service{
			Name: recovery.ServiceLedger,
			Missing: func() []string {
				if cfg.Ledger.URL == "" {
					return []string{"LEDGER_URL"}
				}
				return nil
			},
			Probe: l.Ping,
		},
	)
}

func provideServerDeps(classifier *webhook.Classifier, queue *jobs.Queue, payouts *payout.Service, coord *recovery.Coordinator) server.Deps {
	return server.Deps{
		Classifier: classifier,
		Queue:      queue,
		Payouts:    payouts,
		Recovery:   coord,
	}
}
