// Package handler provides the HTTP handlers of the webhook service.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/payout"
	"github.com/devasignhq/devasign-api-sub002/internal/webhook"
)

const (
	headerEvent     = "X-GitHub-Event"
	headerSignature = "X-Hub-Signature-256"
	headerDelivery  = "X-GitHub-Delivery"
)

// Classifier routes a verified delivery.
type Classifier interface {
	Classify(ctx context.Context, eventType, action string, payload []byte) (webhook.Verdict, error)
}

// Payouts runs the bounty flows triggered by webhooks.
type Payouts interface {
	HandleMergedPR(ctx context.Context, ev *core.PullRequestEvent) (*payout.Outcome, error)
	HandleInstallationDeleted(ctx context.Context, installationID int64) (*payout.RefundOutcome, error)
}

// WebhookResponse is the data of a processed or skipped delivery.
type WebhookResponse struct {
	Processed  bool   `json:"processed"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	EventType  string `json:"eventType,omitempty"`
	DeliveryID string `json:"deliveryId,omitempty"`
	JobID      string `json:"jobId,omitempty"`
	Result     any    `json:"result,omitempty"`
}

// WebhookHandler processes incoming webhooks from GitHub.
type WebhookHandler struct {
	verifier       *webhook.Verifier
	classifier     Classifier
	queue          core.JobQueue
	payouts        Payouts
	maxPayloadSize int64
	logger         *slog.Logger
}

func NewWebhookHandler(verifier *webhook.Verifier, classifier Classifier, queue core.JobQueue, payouts Payouts, maxPayloadSize int64, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:       verifier,
		classifier:     classifier,
		queue:          queue,
		payouts:        payouts,
		maxPayloadSize: maxPayloadSize,
		logger:         logger,
	}
}

// Handle verifies the raw body before anything parses it, then classifies the
// delivery and dispatches it.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	eventType := r.Header.Get(headerEvent)
	deliveryID := r.Header.Get(headerDelivery)
	log := h.logger.With("event", eventType, "delivery_id", deliveryID)

	body := r.Body
	if h.maxPayloadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxPayloadSize)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		writeError(w, log, core.NewError(core.KindMalformedPayload, "failed to read request body", err))
		return
	}

	event, err := h.verifier.VerifyAndParse(payload, r.Header.Get(headerSignature))
	if err != nil {
		writeError(w, log, err)
		return
	}
	if eventType == "" {
		writeError(w, log, core.NewError(core.KindMalformedPayload, "missing "+headerEvent+" header", nil))
		return
	}
	action, _ := event["action"].(string)

	verdict, err := h.classifier.Classify(r.Context(), eventType, action, payload)
	if err != nil {
		writeError(w, log, err)
		return
	}

	resp := WebhookResponse{EventType: verdict.EventType, DeliveryID: deliveryID}
	switch verdict.Route {
	case webhook.RouteSkip:
		resp.Status = "skipped"
		resp.Code = verdict.Code
		resp.Message = skipMessage(verdict)
		log.Debug("webhook skipped", "code", verdict.Code, "reason", verdict.Reason)
		writeData(w, http.StatusOK, resp)

	case webhook.RouteAnalyze:
		h.enqueueAnalysis(r.Context(), w, log, verdict, resp)

	case webhook.RoutePayout:
		outcome, err := h.payouts.HandleMergedPR(r.Context(), verdict.Event)
		if err != nil {
			writeError(w, log, err)
			return
		}
		resp.Processed = outcome.Status == payout.StatusPaid
		resp.Status = string(outcome.Status)
		resp.Message = outcome.Message
		resp.Result = outcome
		writeData(w, http.StatusOK, resp)

	case webhook.RouteInstallationDeleted:
		outcome, err := h.payouts.HandleInstallationDeleted(r.Context(), verdict.InstallationID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		resp.Processed = true
		resp.Status = string(outcome.Status)
		resp.Message = "installation deletion processed"
		resp.Result = outcome
		writeData(w, http.StatusOK, resp)

	default:
		writeError(w, log, errors.New("unknown webhook route "+string(verdict.Route)))
	}
}

func (h *WebhookHandler) enqueueAnalysis(ctx context.Context, w http.ResponseWriter, log *slog.Logger, verdict webhook.Verdict, resp WebhookResponse) {
	ev := verdict.Event
	jobID, err := h.queue.Enqueue(ctx, core.JobSpec{
		Type: core.JobTypePRAnalysis,
		Data: core.AnalysisRequest{
			InstallationID: ev.InstallationID,
			RepositoryName: ev.RepoFullName,
			PRNumber:       ev.PRNumber,
			PRURL:          ev.PRURL,
			HeadSHA:        ev.HeadSHA,
			Source:         "webhook",
		},
	})
	if err != nil {
		writeError(w, log, err)
		return
	}

	log.Info("analysis job queued", "job_id", jobID, "repo", ev.RepoFullName, "pr", ev.PRNumber)
	resp.Processed = true
	resp.Status = "queued"
	resp.Message = "PR analysis queued for background processing"
	resp.JobID = jobID
	writeData(w, http.StatusAccepted, resp)
}

func skipMessage(v webhook.Verdict) string {
	if v.Code == webhook.CodeNotEligible {
		return "not eligible: " + v.Reason
	}
	return v.Reason
}
