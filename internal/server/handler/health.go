package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/recovery"
)

// Recovery is the part of the recovery coordinator the HTTP layer drives.
type Recovery interface {
	Health(ctx context.Context) *recovery.Health
	AttemptSystemRecovery(ctx context.Context, kind string) *recovery.Result
	ResetCircuits() []string
	Circuits() []recovery.Snapshot
}

// HealthResponse is the body of GET /webhooks/health.
type HealthResponse struct {
	Healthy  bool                              `json:"healthy"`
	Services map[string]recovery.ServiceHealth `json:"services"`
	Queue    core.QueueStats                   `json:"queue"`
}

type HealthHandler struct {
	recovery Recovery
	queue    core.JobQueue
	logger   *slog.Logger
}

func NewHealthHandler(rec Recovery, queue core.JobQueue, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{recovery: rec, queue: queue, logger: logger}
}

// Check probes every dependency. Any unhealthy service turns the response into a 503.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	report := h.recovery.Health(r.Context())
	resp := HealthResponse{
		Healthy:  report.Healthy,
		Services: report.Services,
		Queue:    h.queue.GetQueueStats(),
	}
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
		h.logger.Warn("health check failed", "services", report.Services)
	}
	writeData(w, status, resp)
}

// Live reports that the process is serving requests.
func Live(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
