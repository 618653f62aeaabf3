package github

import (
	"context"

	"github.com/google/go-github/v73/github"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

// Guard runs a call under a circuit breaker.
type Guard interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

// GuardedFactory routes every call of the clients it hands out through guard.
func GuardedFactory(f ClientFactory, guard Guard) ClientFactory {
	return ClientFactoryFunc(func(ctx context.Context, installationID int64) (Client, error) {
		c, err := f.ForInstallation(ctx, installationID)
		if err != nil {
			return nil, err
		}
		return &guardedClient{next: c, guard: guard}, nil
	})
}

type guardedClient struct {
	next  Client
	guard Guard
}

func guarded[T any](ctx context.Context, g Guard, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (c *guardedClient) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	return guarded(ctx, c.guard, func(ctx context.Context) (*github.PullRequest, error) {
		return c.next.GetPullRequest(ctx, owner, repo, number)
	})
}

func (c *guardedClient) GetChangedFiles(ctx context.Context, owner, repo string, number int) ([]core.ChangedFile, error) {
	return guarded(ctx, c.guard, func(ctx context.Context) ([]core.ChangedFile, error) {
		return c.next.GetChangedFiles(ctx, owner, repo, number)
	})
}

func (c *guardedClient) GetDefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	return guarded(ctx, c.guard, func(ctx context.Context) (string, error) {
		return c.next.GetDefaultBranch(ctx, owner, repo)
	})
}

func (c *guardedClient) GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error) {
	return guarded(ctx, c.guard, func(ctx context.Context) (*github.Issue, error) {
		return c.next.GetIssue(ctx, owner, repo, number)
	})
}

func (c *guardedClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	return guarded(ctx, c.guard, func(ctx context.Context) ([]byte, error) {
		return c.next.GetFileContent(ctx, owner, repo, path, ref)
	})
}

func (c *guardedClient) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]*github.IssueComment, error) {
	return guarded(ctx, c.guard, func(ctx context.Context) ([]*github.IssueComment, error) {
		return c.next.ListIssueComments(ctx, owner, repo, number)
	})
}

func (c *guardedClient) GetIssueComment(ctx context.Context, owner, repo string, commentID int64) (*github.IssueComment, error) {
	return guarded(ctx, c.guard, func(ctx context.Context) (*github.IssueComment, error) {
		return c.next.GetIssueComment(ctx, owner, repo, commentID)
	})
}

func (c *guardedClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) (int64, error) {
	return guarded(ctx, c.guard, func(ctx context.Context) (int64, error) {
		return c.next.CreateComment(ctx, owner, repo, number, body)
	})
}

func (c *guardedClient) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	return c.guard.Execute(ctx, func(ctx context.Context) error {
		return c.next.UpdateComment(ctx, owner, repo, commentID, body)
	})
}

func (c *guardedClient) DeleteComment(ctx context.Context, owner, repo string, commentID int64) error {
	return c.guard.Execute(ctx, func(ctx context.Context) error {
		return c.next.DeleteComment(ctx, owner, repo, commentID)
	})
}

func (c *guardedClient) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	return c.guard.Execute(ctx, func(ctx context.Context) error {
		return c.next.RemoveLabel(ctx, owner, repo, number, label)
	})
}
