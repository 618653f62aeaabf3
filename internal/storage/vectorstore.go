package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sevigo/goframe/embeddings"
	"github.com/sevigo/goframe/schema"
	"github.com/sevigo/goframe/vectorstores"
	"github.com/sevigo/goframe/vectorstores/qdrant"

	"github.com/devasignhq/devasign-api-sub002/internal/util"
)

// RepoIndex stores embedded chunks of repository content, one collection per
// installation and repository.
type RepoIndex interface {
	// Index embeds and stores documents for a repository.
	Index(ctx context.Context, installationID int64, repoFullName string, docs []schema.Document) error

	// Search returns the chunks most similar to query.
	Search(ctx context.Context, installationID int64, repoFullName, query string, numDocs int) ([]schema.Document, error)

	// Drop removes a repository's collection and all its data.
	Drop(ctx context.Context, installationID int64, repoFullName string) error
}

// qdrantRepoIndex implements RepoIndex on Qdrant.
type qdrantRepoIndex struct {
	host          string
	embedder      embeddings.Embedder
	embedderModel string
	logger        *slog.Logger
}

// NewQdrantRepoIndex creates a Qdrant-backed repository index.
func NewQdrantRepoIndex(host, embedderModel string, embedder embeddings.Embedder, logger *slog.Logger) RepoIndex {
	return &qdrantRepoIndex{
		host:          host,
		embedder:      embedder,
		embedderModel: embedderModel,
		logger:        logger,
	}
}

func (q *qdrantRepoIndex) collection(installationID int64, repoFullName string) (string, vectorstores.VectorStore, error) {
	if repoFullName == "" {
		return "", nil, fmt.Errorf("repository name cannot be empty")
	}
	if q.embedder == nil {
		return "", nil, fmt.Errorf("no embedder configured for the repository index")
	}

	name := util.CollectionName(installationID, repoFullName, q.embedderModel)
	store, err := qdrant.New(
		qdrant.WithHost(q.host),
		qdrant.WithEmbedder(q.embedder),
		qdrant.WithCollectionName(name),
		qdrant.WithLogger(q.logger),
	)
	if err != nil {
		return name, nil, fmt.Errorf("failed to open qdrant collection %s: %w", name, err)
	}
	return name, store, nil
}

func (q *qdrantRepoIndex) Index(ctx context.Context, installationID int64, repoFullName string, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	name, store, err := q.collection(installationID, repoFullName)
	if err != nil {
		return err
	}

	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to add documents to qdrant collection %s: %w", name, err)
	}
	q.logger.Info("indexed repository documents", "collection", name, "count", len(docs))
	return nil
}

func (q *qdrantRepoIndex) Search(ctx context.Context, installationID int64, repoFullName, query string, numDocs int) ([]schema.Document, error) {
	name, store, err := q.collection(installationID, repoFullName)
	if err != nil {
		return nil, err
	}

	docs, err := store.SimilaritySearch(ctx, query, numDocs)
	if err != nil {
		return nil, fmt.Errorf("similarity search in %s failed: %w", name, err)
	}
	return docs, nil
}

func (q *qdrantRepoIndex) Drop(ctx context.Context, installationID int64, repoFullName string) error {
	name, store, err := q.collection(installationID, repoFullName)
	if err != nil {
		return err
	}
	return store.DeleteCollection(ctx, name)
}
