package github

import (
	"errors"
	"net/http"

	"github.com/google/go-github/v73/github"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// StatusCode extracts the HTTP status of a GitHub API error, or 0 when err does not
// carry one.
func StatusCode(err error) int {
	if e, ok := core.AsError(err); ok {
		if code, ok := e.Details["status"].(int); ok {
			return code
		}
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	return core.IsKind(err, core.KindNotFound) || StatusCode(err) == http.StatusNotFound
}

// IsForbidden reports whether err means the installation lacks access.
func IsForbidden(err error) bool {
	if core.IsKind(err, core.KindPermission) {
		return true
	}
	code := StatusCode(err)
	return code == http.StatusForbidden || code == http.StatusUnauthorized
}

// Classify wraps a go-github error into a core.Error whose kind reflects whether
// retrying can help. Rate limits are transient even though GitHub answers 403.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := core.AsError(err); ok {
		return err
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return core.NewError(core.KindTransient, "github rate limit exceeded during "+op, err)
	}

	code := StatusCode(err)
	var kind core.ErrorKind
	switch {
	case code == 0:
		kind = core.KindTransient
	case code == http.StatusNotFound:
		kind = core.KindNotFound
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		kind = core.KindPermission
	case code == http.StatusUnprocessableEntity || code == http.StatusBadRequest:
		kind = core.KindValidation
	default:
		kind = core.KindTransient
	}

	e := core.NewError(kind, "github "+op+" failed", err)
	if code != 0 {
		e.WithDetail("status", code)
	}
	return e
}
