package specification

import "gorm.io/gorm"

// BySourceTag filters documents by the source corpus they were ingested from
type BySourceTag struct {
	Tag string
}

func (s BySourceTag) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_tag = ?", s.Tag)
}

// BySourceId filters document chunks belonging to one upstream document
type BySourceId struct {
	SourceId string
}

func (s BySourceId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_id = ?", s.SourceId)
}

// MinContentLength filters out fragments too short to be useful context
type MinContentLength struct {
	Length int
}

func (s MinContentLength) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("length(content) >= ?", s.Length)
}

// DocumentSearchQuery filters documents by title or content (case-insensitive)
type DocumentSearchQuery struct {
	Query string
}

func (s DocumentSearchQuery) Apply(db *gorm.DB) *gorm.DB {
	pattern := "%" + s.Query + "%"
	return db.Where("title ILIKE ? OR content ILIKE ?", pattern, pattern)
}
