package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/storage"
	"github.com/devasignhq/devasign-api-sub002/internal/util"
)

// CommentStore remembers which comment holds the AI review of a pull request.
type CommentStore interface {
	// GetReviewCommentID returns storage.ErrNotFound when no comment is recorded.
	GetReviewCommentID(ctx context.Context, installationID int64, repoFullName string, prNumber int) (int64, error)
	SaveReviewComment(ctx context.Context, installationID int64, repoFullName string, prNumber int, commentID int64) error
}

// Publisher keeps exactly one AI comment per pull request up to date.
type Publisher struct {
	clients github.ClientFactory
	store   CommentStore
	policy  RetryPolicy
	logger  *slog.Logger
}

type PublisherOption func(*Publisher)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) PublisherOption {
	return func(pub *Publisher) { pub.policy = p }
}

func NewPublisher(clients github.ClientFactory, store CommentStore, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		clients: clients,
		store:   store,
		policy:  DefaultRetryPolicy,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PostReviewComment validates result and creates or updates the PR's AI comment.
// When the review cannot be published, an analysis-error comment is posted in its
// place and the original error is returned.
func (p *Publisher) PostReviewComment(ctx context.Context, result *core.ReviewResult) (int64, error) {
	if err := ValidateResult(result); err != nil {
		return 0, err
	}

	owner, repo, ok := util.SplitRepoFullName(result.RepositoryName)
	if !ok {
		return 0, core.Errorf(core.KindValidation, "invalid repository name %q", result.RepositoryName)
	}
	client, err := p.clients.ForInstallation(ctx, result.InstallationID)
	if err != nil {
		return 0, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	body := FormatReviewComment(result)
	var commentID int64
	err = retry(ctx, p.policy, func(ctx context.Context) error {
		id, err := p.upsert(ctx, client, owner, repo, result.InstallationID, result.PRNumber, body)
		commentID = id
		return err
	})
	if err != nil {
		p.logger.Error("failed to publish review comment, posting error comment instead",
			"installation_id", result.InstallationID,
			"repo", result.RepositoryName,
			"pr", result.PRNumber,
			"error", err,
		)
		if _, fbErr := p.upsert(ctx, client, owner, repo, result.InstallationID, result.PRNumber,
			FormatErrorComment(result.InstallationID, result.PRNumber, err)); fbErr != nil {
			p.logger.Error("failed to post analysis error comment", "repo", result.RepositoryName, "pr", result.PRNumber, "error", fbErr)
		}
		return 0, fmt.Errorf("failed to publish review comment: %w", err)
	}

	result.CommentID = &commentID
	p.logger.Info("review comment published",
		"repo", result.RepositoryName, "pr", result.PRNumber, "comment_id", commentID)
	return commentID, nil
}

// PostAnalysisError tells the PR author that the review failed.
func (p *Publisher) PostAnalysisError(ctx context.Context, installationID int64, repoFullName string, prNumber int, cause error) error {
	owner, repo, ok := util.SplitRepoFullName(repoFullName)
	if !ok {
		return core.Errorf(core.KindValidation, "invalid repository name %q", repoFullName)
	}
	client, err := p.clients.ForInstallation(ctx, installationID)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	body := FormatErrorComment(installationID, prNumber, cause)
	return retry(ctx, p.policy, func(ctx context.Context) error {
		_, err := p.upsert(ctx, client, owner, repo, installationID, prNumber, body)
		return err
	})
}

// upsert updates the existing AI comment or creates one, then records its ID.
func (p *Publisher) upsert(ctx context.Context, client github.Client, owner, repo string, installationID int64, prNumber int, body string) (int64, error) {
	repoFullName := owner + "/" + repo

	existing, err := p.findExisting(ctx, client, owner, repo, installationID, prNumber)
	if err != nil {
		return 0, err
	}

	if existing != 0 {
		err := client.UpdateComment(ctx, owner, repo, existing, body)
		if err == nil {
			p.remember(ctx, installationID, repoFullName, prNumber, existing)
			return existing, nil
		}
		if !github.IsNotFound(err) {
			return 0, err
		}
		p.logger.Debug("review comment vanished before update, creating a new one", "repo", repoFullName, "comment_id", existing)
	}

	id, err := client.CreateComment(ctx, owner, repo, prNumber, body)
	if err != nil {
		return 0, err
	}
	p.remember(ctx, installationID, repoFullName, prNumber, id)
	return id, nil
}

// findExisting returns the ID of the live AI comment, or 0. The stored ID is
// verified first; a 404 means it was deleted. Otherwise comments are scanned for
// the marker to recover an orphaned comment.
func (p *Publisher) findExisting(ctx context.Context, client github.Client, owner, repo string, installationID int64, prNumber int) (int64, error) {
	repoFullName := owner + "/" + repo

	if p.store != nil {
		stored, err := p.store.GetReviewCommentID(ctx, installationID, repoFullName, prNumber)
		switch {
		case err == nil && stored != 0:
			_, err := client.GetIssueComment(ctx, owner, repo, stored)
			if err == nil {
				return stored, nil
			}
			if !github.IsNotFound(err) {
				return 0, err
			}
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			p.logger.Warn("failed to read stored review comment id", "repo", repoFullName, "pr", prNumber, "error", err)
		}
	}

	comments, err := client.ListIssueComments(ctx, owner, repo, prNumber)
	if err != nil {
		return 0, err
	}
	for _, c := range comments {
		if HasMarker(c.GetBody(), installationID, prNumber) {
			return c.GetID(), nil
		}
	}
	return 0, nil
}

func (p *Publisher) remember(ctx context.Context, installationID int64, repoFullName string, prNumber int, commentID int64) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveReviewComment(ctx, installationID, repoFullName, prNumber, commentID); err != nil {
		p.logger.Warn("failed to persist review comment id", "repo", repoFullName, "pr", prNumber, "comment_id", commentID, "error", err)
	}
}
