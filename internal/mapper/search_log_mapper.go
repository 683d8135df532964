package mapper

import (
	"compliance-assistant-be/internal/entity"
	"compliance-assistant-be/internal/model"
)

type SearchLogMapper struct{}

func NewSearchLogMapper() *SearchLogMapper {
	return &SearchLogMapper{}
}

func (m *SearchLogMapper) ToEntity(e *model.SearchLog) *entity.SearchLog {
	if e == nil {
		return nil
	}
	return &entity.SearchLog{
		Id:                  e.Id,
		SearchId:            e.SearchId,
		Query:               e.Query,
		Answer:              e.Answer,
		Intent:              e.Intent,
		Strategy:            e.Strategy,
		SearchTime:          e.SearchTime,
		ResponseTimeSeconds: e.ResponseTimeSeconds,
		TokenSize:           e.TokenSize,
		DegradedEmbeddings:  e.DegradedEmbeddings,
		CreatedAt:           e.CreatedAt,
	}
}

func (m *SearchLogMapper) ToModel(e *entity.SearchLog) *model.SearchLog {
	if e == nil {
		return nil
	}
	return &model.SearchLog{
		Id:                  e.Id,
		SearchId:            e.SearchId,
		Query:               e.Query,
		Answer:              e.Answer,
		Intent:              e.Intent,
		Strategy:            e.Strategy,
		SearchTime:          e.SearchTime,
		ResponseTimeSeconds: e.ResponseTimeSeconds,
		TokenSize:           e.TokenSize,
		DegradedEmbeddings:  e.DegradedEmbeddings,
		CreatedAt:           e.CreatedAt,
	}
}

func (m *SearchLogMapper) ToEntities(logs []*model.SearchLog) []*entity.SearchLog {
	entities := make([]*entity.SearchLog, len(logs))
	for i, e := range logs {
		entities[i] = m.ToEntity(e)
	}
	return entities
}
