// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-github/v73/github"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// DefaultTimeout bounds a single GitHub API call.
const DefaultTimeout = 30 * time.Second

// Client defines the GitHub operations the application needs: pull request reads,
// issue reads, repository contents, and issue comment management.
//
//go:generate mockgen -destination=../../mocks/mock_github_client.go -package=mocks . Client
type Client interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	GetChangedFiles(ctx context.Context, owner, repo string, number int) ([]core.ChangedFile, error)
	GetDefaultBranch(ctx context.Context, owner, repo string) (string, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error)
	GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
	ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*github.IssueComment, error)
	GetIssueComment(ctx context.Context, owner, repo string, commentID int64) (*github.IssueComment, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (int64, error)
	UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error
	DeleteComment(ctx context.Context, owner, repo string, commentID int64) error
	RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error
}

type gitHubClient struct {
	client  *github.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewGitHubClient wraps the official go-github client to provide a focused,
// testable interface for application-specific GitHub operations. Every call is
// bounded by timeout; a non-positive timeout selects DefaultTimeout.
func NewGitHubClient(client *github.Client, timeout time.Duration, logger *slog.Logger) Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &gitHubClient{client: client, timeout: timeout, logger: logger}
}

func (g *gitHubClient) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

// GetPullRequest retrieves a single pull request by its number.
func (g *gitHubClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		g.logger.Error("failed to get pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
		return nil, Classify("get pull request", err)
	}
	return pr, nil
}

// GetChangedFiles retrieves the list of files modified in a pull request, following
// pagination (the API returns at most 100 files per page). Order is preserved.
func (g *gitHubClient) GetChangedFiles(ctx context.Context, owner, repo string, number int) ([]core.ChangedFile, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	var allFiles []core.ChangedFile
	opts := &github.ListOptions{PerPage: 100}

	for {
		files, resp, err := g.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			g.logger.Error("failed to list files for pull request", "owner", owner, "repo", repo, "pr", number, "error", err)
			return nil, Classify("list pull request files", err)
		}

		for _, file := range files {
			allFiles = append(allFiles, core.ChangedFile{
				Filename:         file.GetFilename(),
				Status:           file.GetStatus(),
				Additions:        file.GetAdditions(),
				Deletions:        file.GetDeletions(),
				Patch:            file.GetPatch(),
				PreviousFilename: file.GetPreviousFilename(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allFiles, nil
}

// GetDefaultBranch returns the repository's default branch name.
func (g *gitHubClient) GetDefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	r, _, err := g.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", Classify("get repository", err)
	}
	if r.GetDefaultBranch() == "" {
		return "", fmt.Errorf("repository %s/%s reports no default branch", owner, repo)
	}
	return r.GetDefaultBranch(), nil
}

// GetIssue retrieves an issue by number.
func (g *gitHubClient) GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	issue, _, err := g.client.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, Classify("get issue", err)
	}
	return issue, nil
}

// GetFileContent returns the decoded contents of a file. An empty ref reads the
// default branch.
func (g *gitHubClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}

	file, _, _, err := g.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, Classify("get contents", err)
	}
	if file == nil {
		return nil, core.Errorf(core.KindValidation, "%s is a directory", path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return []byte(content), nil
}

// ListIssueComments returns every comment on an issue or pull request, oldest first.
func (g *gitHubClient) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*github.IssueComment, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	var all []*github.IssueComment
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		comments, resp, err := g.client.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, Classify("list comments", err)
		}
		all = append(all, comments...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetIssueComment retrieves a single comment by ID.
func (g *gitHubClient) GetIssueComment(ctx context.Context, owner, repo string, commentID int64) (*github.IssueComment, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	comment, _, err := g.client.Issues.GetComment(ctx, owner, repo, commentID)
	if err != nil {
		return nil, Classify("get comment", err)
	}
	return comment, nil
}

// CreateComment creates a new comment on an issue or pull request and returns its ID.
func (g *gitHubClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) (int64, error) {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	comment, _, err := g.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: &body})
	if err != nil {
		g.logger.Error("failed to create comment", "owner", owner, "repo", repo, "pr", number, "error", err)
		return 0, Classify("create comment", err)
	}
	return comment.GetID(), nil
}

// UpdateComment replaces the body of an existing comment.
func (g *gitHubClient) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	_, _, err := g.client.Issues.EditComment(ctx, owner, repo, commentID, &github.IssueComment{Body: &body})
	if err != nil {
		g.logger.Error("failed to update comment", "owner", owner, "repo", repo, "comment_id", commentID, "error", err)
		return Classify("update comment", err)
	}
	return nil
}

// DeleteComment removes a comment.
func (g *gitHubClient) DeleteComment(ctx context.Context, owner, repo string, commentID int64) error {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	if _, err := g.client.Issues.DeleteComment(ctx, owner, repo, commentID); err != nil {
		return Classify("delete comment", err)
	}
	return nil
}

// RemoveLabel removes a label from an issue. Removing an absent label is not an error.
func (g *gitHubClient) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	ctx, cancel := g.bounded(ctx)
	defer cancel()

	_, err := g.client.Issues.RemoveLabelForIssue(ctx, owner, repo, number, label)
	if err != nil && !IsNotFound(err) {
		return Classify("remove label", err)
	}
	return nil
}
