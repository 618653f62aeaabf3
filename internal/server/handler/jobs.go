package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// QueueStatsResponse adds the active job count to the queue counters.
type QueueStatsResponse struct {
	core.QueueStats
	ActiveJobsCount int `json:"activeJobsCount"`
}

// JobsHandler exposes the analysis queue state.
type JobsHandler struct {
	queue  core.JobQueue
	logger *slog.Logger
}

func NewJobsHandler(queue core.JobQueue, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{queue: queue, logger: logger}
}

func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")
	job := h.queue.GetJobData(id)
	if job == nil {
		writeError(w, h.logger, core.Errorf(core.KindNotFound, "job %s not found", id))
		return
	}
	writeData(w, http.StatusOK, job)
}

func (h *JobsHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, QueueStatsResponse{
		QueueStats:      h.queue.GetQueueStats(),
		ActiveJobsCount: h.queue.GetActiveJobsCount(),
	})
}
