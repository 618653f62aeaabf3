package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/recovery"
)

type RecoveryHandler struct {
	recovery Recovery
	logger   *slog.Logger
}

func NewRecoveryHandler(rec Recovery, logger *slog.Logger) *RecoveryHandler {
	return &RecoveryHandler{recovery: rec, logger: logger}
}

// Recover runs the recovery strategy named in the path. The result carries the
// per-step breakdown; a concurrent attempt is answered with 409.
func (h *RecoveryHandler) Recover(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	res := h.recovery.AttemptSystemRecovery(r.Context(), kind)

	switch res.Status {
	case recovery.StatusUnknownService:
		writeError(w, h.logger, core.NewError(core.KindNotFound, res.Message, nil).WithDetail("kind", kind))
	case recovery.StatusAlreadyInProgress:
		writeData(w, http.StatusConflict, res)
	default:
		writeData(w, http.StatusOK, res)
	}
}

func (h *RecoveryHandler) ResetCircuits(w http.ResponseWriter, _ *http.Request) {
	reset := h.recovery.ResetCircuits()
	h.logger.Info("circuits reset by operator", "services", reset)
	writeData(w, http.StatusOK, map[string]any{
		"reset":    reset,
		"circuits": h.recovery.Circuits(),
	})
}

func (h *RecoveryHandler) Circuits(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, h.recovery.Circuits())
}
