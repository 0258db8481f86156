package retrieval

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/index"
)

// Index defines the storage contract for retrieval operations.
type Index interface {
	EnsureCollection(ctx context.Context, spec index.CollectionSpec) error
	ListCollections(ctx context.Context) ([]index.CollectionInfo, error)
	CountDocuments(ctx context.Context, collection string) (int, error)
	Upsert(ctx context.Context, collection string, docs []index.UpsertDoc) error
	Query(ctx context.Context, q index.Query) ([]index.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
