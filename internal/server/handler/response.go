package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

const internalErrorMessage = "an unexpected error occurred"

// StatusFor maps an error kind onto its HTTP status.
func StatusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindConfiguration:
		return http.StatusInternalServerError
	case core.KindMissingSignature, core.KindInvalidSignature:
		return http.StatusUnauthorized
	case core.KindMalformedPayload, core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindPermission:
		return http.StatusForbidden
	case core.KindTransient, core.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case core.KindAnalysis, core.KindPayment:
		return http.StatusBadGateway
	case core.KindUnexpected:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Data: data})
}

// writeError renders err. Unexpected errors keep their code but never their message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	e, ok := core.AsError(err)
	if !ok {
		e = core.NewError(core.KindUnexpected, internalErrorMessage, err)
	}
	status := StatusFor(e.Kind)

	apiErr := &APIError{Code: e.Code, Message: e.Message, Details: e.Details}
	if e.Kind == core.KindUnexpected {
		apiErr.Message = internalErrorMessage
		apiErr.Details = nil
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", e.Code, "error", err)
	} else {
		logger.Warn("request rejected", "code", e.Code, "error", err)
	}
	writeJSON(w, status, Envelope{Error: apiErr})
}
