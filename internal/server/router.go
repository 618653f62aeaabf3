package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/server/handler"
	"github.com/devasignhq/devasign-api-sub002/internal/webhook"
)

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Classifier handler.Classifier
	Queue      core.JobQueue
	Payouts    handler.Payouts
	Recovery   handler.Recovery
}

// NewRouter creates and configures a new HTTP router with middleware and routes.
func NewRouter(cfg *config.Config, deps Deps, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", handler.Live)

	webhooks := handler.NewWebhookHandler(
		webhook.NewVerifier(cfg.GitHub.WebhookSecret),
		deps.Classifier,
		deps.Queue,
		deps.Payouts,
		cfg.Server.MaxPayloadSize,
		logger,
	)
	jobs := handler.NewJobsHandler(deps.Queue, logger)
	health := handler.NewHealthHandler(deps.Recovery, deps.Queue, logger)
	manual := handler.NewManualAnalysisHandler(deps.Queue, logger)
	rec := handler.NewRecoveryHandler(deps.Recovery, logger)

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/github", webhooks.Handle)
		r.Post("/github/manual-analysis", manual.Handle)
		r.Get("/jobs/{jobId}", jobs.GetJob)
		r.Get("/queue/stats", jobs.Stats)
		r.Get("/health", health.Check)
		r.Post("/recovery/{kind}", rec.Recover)
		r.Get("/circuits", rec.Circuits)
		r.Post("/circuits/reset", rec.ResetCircuits)
	})

	return r
}
