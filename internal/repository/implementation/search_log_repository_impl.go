package implementation

import (
	"context"
	"errors"

	"compliance-assistant-be/internal/entity"
	"compliance-assistant-be/internal/mapper"
	"compliance-assistant-be/internal/model"
	"compliance-assistant-be/internal/repository/contract"
	"compliance-assistant-be/internal/repository/specification"

	"gorm.io/gorm"
)

type SearchLogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SearchLogMapper
}

func NewSearchLogRepository(db *gorm.DB) contract.SearchLogRepository {
	return &SearchLogRepositoryImpl{
		db:     db,
		mapper: mapper.NewSearchLogMapper(),
	}
}

func (r *SearchLogRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SearchLogRepositoryImpl) Create(ctx context.Context, log *entity.SearchLog) error {
	m := r.mapper.ToModel(log)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*log = *r.mapper.ToEntity(m)
	return nil
}

func (r *SearchLogRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SearchLog, error) {
	var m model.SearchLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SearchLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SearchLog, error) {
	var models []*model.SearchLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *SearchLogRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.SearchLog{}).Count(&count).Error
	return count, err
}
