package implementation

import (
	"context"
	"errors"

	"compliance-assistant-be/internal/entity"
	"compliance-assistant-be/internal/mapper"
	"compliance-assistant-be/internal/model"
	"compliance-assistant-be/internal/repository/contract"
	"compliance-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentMapper
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentMapper(),
	}
}

func (r *DocumentRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, document *entity.Document) error {
	m := r.mapper.ToModel(document)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*document = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentRepositoryImpl) CreateBulk(ctx context.Context, documents []*entity.Document) error {
	if len(documents) == 0 {
		return nil
	}
	models := make([]*model.Document, len(documents))
	for i, e := range documents {
		models[i] = r.mapper.ToModel(e)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	// Update IDs back to entities
	for i, m := range models {
		*documents[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *DocumentRepositoryImpl) Update(ctx context.Context, document *entity.Document) error {
	m := r.mapper.ToModel(document)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*document = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Document{}, id).Error
}

// DeleteBySourceId removes every chunk of one upstream document. Used before
// re-ingesting a document so stale chunks never survive a refresh.
func (r *DocumentRepositoryImpl) DeleteBySourceId(ctx context.Context, sourceId string) error {
	return r.db.WithContext(ctx).Where("source_id = ?", sourceId).Delete(&model.Document{}).Error
}

func (r *DocumentRepositoryImpl) DeleteBySourceTag(ctx context.Context, tag string) error {
	return r.db.WithContext(ctx).Where("source_tag = ?", tag).Delete(&model.Document{}).Error
}

func (r *DocumentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	var m model.Document
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *DocumentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	var models []*model.Document
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.Document, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *DocumentRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.Document{}).Count(&count).Error
	return count, err
}

// SearchSimilarWithScore returns documents with similarity scores, filtered by threshold
func (r *DocumentRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64, minContentLength int, sourceTag string) ([]*contract.ScoredDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is: 1 - cosine_similarity
	// So we compute: 1 - (embedding <=> query_vector) = cosine_similarity
	type result struct {
		model.Document
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("documents").
		Select("documents.*, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("documents.deleted_at IS NULL").
		Where("length(content) >= ?", minContentLength).
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold)
	if sourceTag != "" {
		query = query.Where("source_tag = ?", sourceTag)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	scoredDocuments := make([]*contract.ScoredDocument, len(results))
	for i, res := range results {
		scoredDocuments[i] = &contract.ScoredDocument{
			Document:   r.mapper.ToEntity(&res.Document),
			Similarity: res.Similarity,
		}
	}
	return scoredDocuments, nil
}

// SearchKeywordWithScore matches documents with Postgres full-text search.
// ts_rank is not bounded to 1.0, so scores are clamped to stay comparable
// with cosine similarities when both result sets are fused.
func (r *DocumentRepositoryImpl) SearchKeywordWithScore(ctx context.Context, query string, limit int, minContentLength int, sourceTag string) ([]*contract.ScoredDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.Document
		Similarity float64
	}
	var results []result

	q := r.db.WithContext(ctx).
		Table("documents").
		Select(
			"documents.*, LEAST(ts_rank(to_tsvector('english', coalesce(title, '') || ' ' || content), plainto_tsquery('english', ?)), 1.0) as similarity",
			query,
		).
		Where("documents.deleted_at IS NULL").
		Where("length(content) >= ?", minContentLength).
		Where("to_tsvector('english', coalesce(title, '') || ' ' || content) @@ plainto_tsquery('english', ?)", query)
	if sourceTag != "" {
		q = q.Where("source_tag = ?", sourceTag)
	}

	err := q.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error

	if err != nil {
		return nil, err
	}

	scoredDocuments := make([]*contract.ScoredDocument, len(results))
	for i, res := range results {
		scoredDocuments[i] = &contract.ScoredDocument{
			Document:   r.mapper.ToEntity(&res.Document),
			Similarity: res.Similarity,
		}
	}
	return scoredDocuments, nil
}
