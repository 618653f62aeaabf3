package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sevigo/goframe/schema"

	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/storage"
)

const (
	chunkLines   = 60
	chunkOverlap = 10
)

var indexableExtensions = map[string]struct{}{
	".go": {}, ".js": {}, ".ts": {}, ".tsx": {}, ".jsx": {}, ".py": {}, ".java": {},
	".c": {}, ".cpp": {}, ".h": {}, ".hpp": {}, ".rs": {}, ".rb": {}, ".php": {},
	".cs": {}, ".swift": {}, ".kt": {}, ".scala": {}, ".sol": {},
	".md": {}, ".yml": {}, ".yaml": {}, ".toml": {}, ".sql": {},
}

// IsIndexable reports whether a path is a text file worth embedding.
func IsIndexable(path string) bool {
	_, ok := indexableExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Indexer feeds repository files into the RepoIndex used by enrichment.
type Indexer struct {
	index  storage.RepoIndex
	logger *slog.Logger
}

func NewIndexer(index storage.RepoIndex, logger *slog.Logger) *Indexer {
	return &Indexer{index: index, logger: logger}
}

// IndexPaths fetches paths at ref and indexes them in overlapping line chunks. It
// returns the number of chunks stored. Unindexable or missing files are skipped.
func (ix *Indexer) IndexPaths(ctx context.Context, client github.Client, installationID int64, owner, repo, ref string, paths []string) (int, error) {
	var docs []schema.Document
	for _, path := range paths {
		if !IsIndexable(path) {
			ix.logger.Debug("skipping unindexable file", "path", path)
			continue
		}
		data, err := client.GetFileContent(ctx, owner, repo, path, ref)
		if err != nil {
			if github.IsNotFound(err) {
				ix.logger.Warn("file not found, skipping", "path", path)
				continue
			}
			return 0, fmt.Errorf("failed to fetch %s: %w", path, err)
		}
		docs = append(docs, ChunkFile(path, string(data))...)
	}

	if err := ix.index.Index(ctx, installationID, owner+"/"+repo, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// ChunkFile splits content into overlapping chunks of lines.
func ChunkFile(path, content string) []schema.Document {
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) == 1 && strings.TrimSpace(lines[0]) == "" {
		return nil
	}

	var docs []schema.Document
	step := chunkLines - chunkOverlap
	for start := 0; start < len(lines); start += step {
		end := min(start+chunkLines, len(lines))
		docs = append(docs, schema.Document{
			PageContent: strings.Join(lines[start:end], "\n"),
			Metadata: map[string]any{
				"source":     path,
				"start_line": start + 1,
				"end_line":   end,
			},
		})
		if end == len(lines) {
			break
		}
	}
	return docs
}
