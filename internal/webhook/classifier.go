package webhook

import (
	"context"
	"fmt"
	"log/slog"

	gh "github.com/google/go-github/v73/github"

	"github.com/devasignhq/devasign-api-sub002/internal/analysis"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
)

// Route tells the HTTP layer what to do with a delivery.
type Route string

const (
	RouteSkip                Route = "skip"
	RouteAnalyze             Route = "analyze"
	RoutePayout              Route = "payout"
	RouteInstallationDeleted Route = "installation_deleted"
)

// Machine-readable skip codes.
const (
	CodeEventNotProcessed  = "event_not_processed"
	CodeActionNotProcessed = "action_not_processed"
	CodeNotDefaultBranch   = "not_default_branch"
	CodeNotEligible        = "not_eligible"
)

const (
	eventPullRequest  = "pull_request"
	eventInstallation = "installation"
)

var analysisActions = map[string]struct{}{
	"opened":           {},
	"synchronize":      {},
	"ready_for_review": {},
}

// Verdict is the classification of one delivery.
type Verdict struct {
	Route          Route
	Reason         string
	Code           string
	EventType      string
	Event          *core.PullRequestEvent
	InstallationID int64
}

// Classifier decides how a verified delivery is handled.
type Classifier struct {
	clients github.ClientFactory
	logger  *slog.Logger
}

// NewClassifier creates a Classifier. clients is used only for the default branch
// lookup and may be nil, in which case the lookup is skipped.
func NewClassifier(clients github.ClientFactory, logger *slog.Logger) *Classifier {
	return &Classifier{clients: clients, logger: logger}
}

// Classify routes a delivery. Skips are verdicts, not errors; an error is returned
// only when the payload does not describe a usable event.
func (c *Classifier) Classify(ctx context.Context, eventType, action string, payload []byte) (Verdict, error) {
	switch eventType {
	case eventPullRequest:
		return c.classifyPullRequest(ctx, action, payload)
	case eventInstallation:
		return c.classifyInstallation(action, payload)
	default:
		c.logger.Debug("ignoring webhook event", "event", eventType)
		return Verdict{
			Route:     RouteSkip,
			Code:      CodeEventNotProcessed,
			Reason:    fmt.Sprintf("event %s not processed", eventType),
			EventType: eventType,
		}, nil
	}
}

func (c *Classifier) classifyInstallation(action string, payload []byte) (Verdict, error) {
	if action != "deleted" {
		return skipAction(eventInstallation, action), nil
	}

	parsed, err := gh.ParseWebHook(eventInstallation, payload)
	if err != nil {
		return Verdict{}, core.NewError(core.KindMalformedPayload, "could not parse installation event", err)
	}
	event, ok := parsed.(*gh.InstallationEvent)
	if !ok || event.GetInstallation().GetID() == 0 {
		return Verdict{}, core.NewError(core.KindMalformedPayload, "installation ID is missing from the event", nil)
	}

	return Verdict{
		Route:          RouteInstallationDeleted,
		EventType:      eventInstallation,
		InstallationID: event.GetInstallation().GetID(),
	}, nil
}

func (c *Classifier) classifyPullRequest(ctx context.Context, action string, payload []byte) (Verdict, error) {
	parsed, err := gh.ParseWebHook(eventPullRequest, payload)
	if err != nil {
		return Verdict{}, core.NewError(core.KindMalformedPayload, "could not parse pull_request event", err)
	}
	ghEvent, ok := parsed.(*gh.PullRequestEvent)
	if !ok {
		return Verdict{}, core.NewError(core.KindMalformedPayload, "unexpected pull_request payload", nil)
	}
	event, err := core.EventFromPullRequest(ghEvent)
	if err != nil {
		return Verdict{}, core.NewError(core.KindMalformedPayload, err.Error(), err)
	}
	if action == "" {
		action = event.Action
	}

	var route Route
	switch {
	case action == "closed" && event.IsMerged:
		route = RoutePayout
	case isAnalysisAction(action):
		route = RouteAnalyze
	default:
		return skipAction(eventPullRequest, action), nil
	}

	verdict := Verdict{
		Route:          route,
		EventType:      eventPullRequest,
		Event:          event,
		InstallationID: event.InstallationID,
	}

	// Eligibility is pure and runs before any network call.
	if route == RouteAnalyze {
		elig := analysis.ShouldAnalyzePR(analysis.Candidate{
			Owner:   event.RepoOwner,
			Repo:    event.RepoName,
			Body:    event.PRBody,
			IsDraft: event.IsDraft,
		})
		if !elig.Eligible {
			c.logger.Info("pull request not eligible for analysis",
				"repo", event.RepoFullName, "pr", event.PRNumber, "reason", elig.Reason)
			verdict.Route = RouteSkip
			verdict.Code = CodeNotEligible
			verdict.Reason = elig.Reason
			return verdict, nil
		}
	}

	if defaultBranch, ok := c.defaultBranch(ctx, event); ok && event.BaseBranch != defaultBranch {
		c.logger.Info("skipping pull request not targeting default branch",
			"repo", event.RepoFullName, "pr", event.PRNumber, "base", event.BaseBranch, "default", defaultBranch)
		verdict.Route = RouteSkip
		verdict.Code = CodeNotDefaultBranch
		verdict.Reason = CodeNotDefaultBranch
		return verdict, nil
	}

	return verdict, nil
}

// defaultBranch looks up the repository's default branch. Any failure is logged
// and reported as unknown so processing continues.
func (c *Classifier) defaultBranch(ctx context.Context, event *core.PullRequestEvent) (string, bool) {
	if c.clients == nil {
		return "", false
	}
	client, err := c.clients.ForInstallation(ctx, event.InstallationID)
	if err != nil {
		c.logger.Warn("default branch lookup unavailable, continuing",
			"installation_id", event.InstallationID, "repo", event.RepoFullName, "error", err)
		return "", false
	}
	branch, err := client.GetDefaultBranch(ctx, event.RepoOwner, event.RepoName)
	if err != nil || branch == "" {
		c.logger.Warn("default branch lookup failed, continuing",
			"installation_id", event.InstallationID, "repo", event.RepoFullName, "error", err)
		return "", false
	}
	return branch, true
}

func isAnalysisAction(action string) bool {
	_, ok := analysisActions[action]
	return ok
}

func skipAction(eventType, action string) Verdict {
	return Verdict{
		Route:     RouteSkip,
		Code:      CodeActionNotProcessed,
		Reason:    "action not processed",
		EventType: eventType + "." + action,
	}
}
