package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/util"
)

// ManualAnalysisRequest triggers an analysis without a webhook.
type ManualAnalysisRequest struct {
	InstallationID int64  `json:"installationId" validate:"required,gt=0"`
	RepositoryName string `json:"repositoryName" validate:"required"`
	PRNumber       int    `json:"prNumber" validate:"required,gt=0"`
}

// ManualAnalysisHandler queues analyses requested by operators.
type ManualAnalysisHandler struct {
	queue    core.JobQueue
	validate *validator.Validate
	logger   *slog.Logger
}

func NewManualAnalysisHandler(queue core.JobQueue, logger *slog.Logger) *ManualAnalysisHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &ManualAnalysisHandler{queue: queue, validate: v, logger: logger}
}

func (h *ManualAnalysisHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req ManualAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, core.NewError(core.KindMalformedPayload, "request body must be a JSON object", err))
		return
	}
	if err := h.check(&req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, _, ok := util.SplitRepoFullName(req.RepositoryName); !ok {
		writeError(w, h.logger, core.Errorf(core.KindValidation, "repositoryName must have the form owner/repo"))
		return
	}

	jobID, err := h.queue.Enqueue(r.Context(), core.JobSpec{
		Type: core.JobTypePRAnalysis,
		Data: core.AnalysisRequest{
			InstallationID: req.InstallationID,
			RepositoryName: req.RepositoryName,
			PRNumber:       req.PRNumber,
			Source:         "manual",
		},
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("manual analysis queued", "job_id", jobID, "repo", req.RepositoryName, "pr", req.PRNumber)
	writeData(w, http.StatusAccepted, WebhookResponse{
		Processed: true,
		Status:    "queued",
		Message:   "PR analysis queued for background processing",
		JobID:     jobID,
	})
}

// check lists every absent field in one message, or failing that every field
// with an out-of-range value.
func (h *ManualAnalysisHandler) check(req *ManualAnalysisRequest) error {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.NewError(core.KindValidation, "invalid request", err)
	}
	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		return core.NewError(core.KindValidation, "missing required fields: "+strings.Join(missing, ", "), nil).
			WithDetail("fields", missing)
	}
	return core.NewError(core.KindValidation, "fields must be positive: "+strings.Join(invalid, ", "), nil).
		WithDetail("fields", invalid)
}
