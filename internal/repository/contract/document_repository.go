package contract

import (
	"context"

	"compliance-assistant-be/internal/entity"
	"compliance-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredDocument wraps a Document with its relevance score
type ScoredDocument struct {
	Document   *entity.Document
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type DocumentRepository interface {
	Create(ctx context.Context, document *entity.Document) error
	CreateBulk(ctx context.Context, documents []*entity.Document) error
	Update(ctx context.Context, document *entity.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteBySourceId(ctx context.Context, sourceId string) error
	DeleteBySourceTag(ctx context.Context, tag string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// Advanced
	// SearchSimilarWithScore returns documents with cosine similarity scores,
	// filtered by threshold and a minimum content length. An empty sourceTag
	// searches every collection.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64, minContentLength int, sourceTag string) ([]*ScoredDocument, error)
	// SearchKeywordWithScore returns documents matched by full-text search,
	// scored with ts_rank so results can be fused with vector hits.
	SearchKeywordWithScore(ctx context.Context, query string, limit int, minContentLength int, sourceTag string) ([]*ScoredDocument, error)
}
