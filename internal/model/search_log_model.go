package model

import (
	"time"

	"github.com/google/uuid"
)

type SearchLog struct {
	Id                  uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SearchId            string    `gorm:"type:text;not null;uniqueIndex"`
	Query               string    `gorm:"type:text"`
	Answer              string    `gorm:"type:text"`
	Intent              string    `gorm:"type:text"`
	Strategy            string    `gorm:"type:text"`
	SearchTime          time.Time
	ResponseTimeSeconds float64
	TokenSize           int
	DegradedEmbeddings  int
	CreatedAt           time.Time `gorm:"autoCreateTime"`
}

func (SearchLog) TableName() string {
	return "search_logs"
}
