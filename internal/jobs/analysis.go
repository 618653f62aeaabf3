package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devasignhq/devasign-api-sub002/internal/analysis"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/util"
)

// PRAnalyzer turns a pull request into a review.
type PRAnalyzer interface {
	Analyze(ctx context.Context, client github.Client, pr *core.PullRequestData) (*core.ReviewResult, error)
}

// ReviewPoster publishes reviews and failure notices on the pull request.
type ReviewPoster interface {
	PostReviewComment(ctx context.Context, result *core.ReviewResult) (int64, error)
	PostAnalysisError(ctx context.Context, installationID int64, repoFullName string, prNumber int, cause error) error
}

// ResultStore keeps the latest review of each pull request.
type ResultStore interface {
	SaveReviewResult(ctx context.Context, r *core.ReviewResult) error
}

// AnalysisHandler executes pr-analysis jobs.
type AnalysisHandler struct {
	clients  github.ClientFactory
	analyzer PRAnalyzer
	poster   ReviewPoster
	results  ResultStore
	logger   *slog.Logger
}

var (
	_ core.JobHandler        = (*AnalysisHandler)(nil)
	_ core.JobFailureHandler = (*AnalysisHandler)(nil)
)

// NewAnalysisHandler wires the handler. results may be nil, in which case reviews
// are published but not persisted.
func NewAnalysisHandler(clients github.ClientFactory, analyzer PRAnalyzer, poster ReviewPoster, results ResultStore, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		clients:  clients,
		analyzer: analyzer,
		poster:   poster,
		results:  results,
		logger:   logger,
	}
}

// Handle runs one attempt: fetch the PR, analyze it and publish the review.
func (h *AnalysisHandler) Handle(ctx context.Context, job *core.AnalysisJob) (any, error) {
	req := job.Data
	owner, repo, ok := util.SplitRepoFullName(req.RepositoryName)
	if !ok {
		return nil, core.Errorf(core.KindValidation, "invalid repository name %q", req.RepositoryName)
	}
	if req.PRNumber <= 0 || req.InstallationID <= 0 {
		return nil, core.Errorf(core.KindValidation, "job %s has no pull request to analyze", job.ID)
	}

	client, err := h.clients.ForInstallation(ctx, req.InstallationID)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	pr, err := client.GetPullRequest(ctx, owner, repo, req.PRNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get PR details: %w", err)
	}
	if req.HeadSHA != "" && pr.GetHead().GetSHA() != req.HeadSHA {
		h.logger.Debug("pull request moved since the job was queued, analyzing the latest head",
			"job_id", job.ID, "queued_sha", req.HeadSHA, "head_sha", pr.GetHead().GetSHA())
	}

	data := analysis.NewPullRequestData(req.InstallationID, owner, repo, pr)
	result, err := h.analyzer.Analyze(ctx, client, data)
	if err != nil {
		return nil, err
	}

	if _, err := h.poster.PostReviewComment(ctx, result); err != nil {
		return nil, err
	}

	if h.results != nil {
		if err := h.results.SaveReviewResult(ctx, result); err != nil {
			h.logger.Warn("failed to persist review result", "job_id", job.ID, "repo", req.RepositoryName, "pr", req.PRNumber, "error", err)
		}
	}

	h.logger.Info("analysis job finished",
		"job_id", job.ID,
		"repo", req.RepositoryName,
		"pr", req.PRNumber,
		"merge_score", result.MergeScore,
		"status", result.ReviewStatus,
	)
	return result, nil
}

// OnJobFailed leaves an error comment on the PR once the job has given up.
// Ineligible PRs and installations without access get no comment.
func (h *AnalysisHandler) OnJobFailed(ctx context.Context, job *core.AnalysisJob, err error) {
	switch core.KindOf(err) {
	case core.KindValidation, core.KindPermission:
		return
	}
	req := job.Data
	if perr := h.poster.PostAnalysisError(ctx, req.InstallationID, req.RepositoryName, req.PRNumber, err); perr != nil {
		h.logger.Error("failed to post analysis error comment",
			"job_id", job.ID, "repo", req.RepositoryName, "pr", req.PRNumber, "error", perr)
	}
}
