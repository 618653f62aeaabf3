// Package app ties the HTTP server, the analysis queue and the database lifecycle
// together.
package app

import (
	"log/slog"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/jobs"
	"github.com/devasignhq/devasign-api-sub002/internal/server"
)

// App holds the main application components.
type App struct {
	cfg    *config.Config
	server *server.Server
	queue  *jobs.Queue
	logger *slog.Logger
}

// NewApp binds the analysis handler to the queue. Missing secrets are reported but
// do not prevent startup; the affected paths fail with configuration errors.
func NewApp(cfg *config.Config, srv *server.Server, queue *jobs.Queue, analysis *jobs.AnalysisHandler, logger *slog.Logger) *App {
	queue.RegisterHandler(core.JobTypePRAnalysis, analysis)

	if missing := cfg.MissingSecrets(); len(missing) > 0 {
		logger.Warn("service started with missing configuration", "missing", missing)
	}
	return &App{
		cfg:    cfg,
		server: srv,
		queue:  queue,
		logger: logger,
	}
}

// Start runs the HTTP server and blocks until it stops.
func (a *App) Start() error {
	a.logger.Info("starting devasign webhook service",
		"server_port", a.cfg.Server.Port,
		"queue_concurrency", a.cfg.Queue.Concurrency,
		"llm_provider", a.cfg.AI.LLMProvider)

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the HTTP server first so no new jobs arrive, then waits for
// running jobs. The database is closed afterwards by the injector's cleanup.
func (a *App) Stop() error {
	a.logger.Info("shutting down services")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.queue.Stop()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("services stopped")
	return nil
}
