package retrieval

import (
	"compliance-assistant-be/internal/repository/contract"
)

// Result is one retrieved document fragment with its relevance score.
type Result struct {
	ID          string
	Content     string
	Title       string
	Similarity  float64
	SourceDocID string
	SourceTag   string
	Metadata    map[string]interface{}
}

func fromScored(scored *contract.ScoredDocument) Result {
	doc := scored.Document
	return Result{
		ID:          doc.Id.String(),
		Content:     doc.Content,
		Title:       doc.Title,
		Similarity:  scored.Similarity,
		SourceDocID: doc.SourceId,
		SourceTag:   doc.SourceTag,
		Metadata:    doc.Metadata,
	}
}
