package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/storage"
)

// Document is a piece of repository context shown to the reviewer.
type Document struct {
	Source  string
	Content string
}

// RepoContext is optional context beyond the diff itself. The zero value is valid.
type RepoContext struct {
	Guidelines []Document
	Related    []Document
}

// Enricher gathers repository context for a pull request. Implementations never
// fail: anything they cannot fetch is left out.
type Enricher interface {
	Enrich(ctx context.Context, client github.Client, pr *core.PullRequestData) RepoContext
}

var guidelineFiles = [][]string{
	{"CONTRIBUTING.md", ".github/CONTRIBUTING.md", "docs/CONTRIBUTING.md"},
	{"README.md"},
}

type contextEnricher struct {
	index   storage.RepoIndex
	numDocs int
	logger  *slog.Logger
}

// NewContextEnricher returns an Enricher that reads contribution guidelines through
// the GitHub API and, when index is non-nil, searches previously indexed code.
func NewContextEnricher(index storage.RepoIndex, numDocs int, logger *slog.Logger) Enricher {
	if numDocs <= 0 {
		numDocs = 5
	}
	return &contextEnricher{index: index, numDocs: numDocs, logger: logger}
}

func (e *contextEnricher) Enrich(ctx context.Context, client github.Client, pr *core.PullRequestData) RepoContext {
	var rc RepoContext
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rc.Guidelines = e.guidelines(gctx, client, pr)
		return nil
	})
	g.Go(func() error {
		rc.Related = e.related(gctx, pr)
		return nil
	})
	_ = g.Wait()

	return rc
}

func (e *contextEnricher) guidelines(ctx context.Context, client github.Client, pr *core.PullRequestData) []Document {
	var docs []Document
	for _, candidates := range guidelineFiles {
		for _, path := range candidates {
			data, err := client.GetFileContent(ctx, pr.RepoOwner, pr.RepoName, path, "")
			if err != nil {
				if !github.IsNotFound(err) {
					e.logger.Debug("guideline fetch failed", "repo", pr.RepoFullName, "path", path, "error", err)
				}
				continue
			}
			if content := strings.TrimSpace(string(data)); content != "" {
				docs = append(docs, Document{Source: path, Content: content})
				break
			}
		}
	}
	return docs
}

func (e *contextEnricher) related(ctx context.Context, pr *core.PullRequestData) []Document {
	if e.index == nil {
		return nil
	}

	changed := make(map[string]struct{}, len(pr.ChangedFiles))
	var query strings.Builder
	query.WriteString(pr.PRTitle)
	for _, f := range pr.ChangedFiles {
		changed[f.Filename] = struct{}{}
		query.WriteString("\n")
		query.WriteString(f.Filename)
	}

	results, err := e.index.Search(ctx, pr.InstallationID, pr.RepoFullName, query.String(), e.numDocs)
	if err != nil {
		e.logger.Warn("similarity search failed, continuing without related code", "repo", pr.RepoFullName, "error", err)
		return nil
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		source := fmt.Sprint(r.Metadata["source"])
		if _, inDiff := changed[source]; inDiff {
			continue
		}
		docs = append(docs, Document{Source: source, Content: r.PageContent})
	}
	return docs
}
