package entity

import (
	"time"

	"github.com/google/uuid"
)

type SearchLog struct {
	Id                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	SearchId            string
	Query               string
	Answer              string
	Intent              string
	Strategy            string
	SearchTime          time.Time
	ResponseTimeSeconds float64
	TokenSize           int
	DegradedEmbeddings  int
	CreatedAt           time.Time
}
