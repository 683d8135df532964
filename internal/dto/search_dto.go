package dto

import "time"

type RetrieveRequest struct {
	Query            string  `json:"query" validate:"required"`
	MatchCount       int     `json:"match_count" validate:"omitempty,gt=0,lte=50"`
	MatchThreshold   float64 `json:"match_threshold" validate:"omitempty,gte=0,lte=1"`
	MinContentLength int     `json:"min_content_length" validate:"omitempty,gte=0"`
	SourceTag        string  `json:"source_tag"` // optional collection scope
}

type RetrievedDocumentResponse struct {
	Id          string                 `json:"id"`
	Title       string                 `json:"title,omitempty"`
	Content     string                 `json:"content"`
	Similarity  float64                `json:"similarity"`
	SourceDocId string                 `json:"source_doc_id"`
	SourceTag   string                 `json:"source_tag,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type RetrieveResponse struct {
	Query              string                      `json:"query"`
	Intent             string                      `json:"intent"`
	Strategy           string                      `json:"strategy"`
	Entities           []string                    `json:"entities"`
	ExpandedQueries    []string                    `json:"expanded_queries"`
	DegradedEmbeddings int                         `json:"degraded_embeddings"`
	Results            []RetrievedDocumentResponse `json:"results"`
}

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

type ChatStreamRequest struct {
	Messages      []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	SystemPrompt  string        `json:"system_prompt"`
	MaxSteps      int           `json:"max_steps" validate:"omitempty,gt=0,lte=10"`
	RetrievalMode string        `json:"retrieval_mode" validate:"omitempty,oneof=auto none"`
	SourceTag     string        `json:"source_tag"` // optional collection scope for the retrieval tool
}

type SearchLogResponse struct {
	SearchId            string    `json:"search_id"`
	Query               string    `json:"query"`
	Answer              string    `json:"answer"`
	Intent              string    `json:"intent"`
	Strategy            string    `json:"strategy"`
	SearchTime          time.Time `json:"search_time"`
	ResponseTimeSeconds float64   `json:"response_time_seconds"`
	TokenSize           int       `json:"token_size"`
	DegradedEmbeddings  int       `json:"degraded_embeddings"`
}

type SearchLogListResponse struct {
	Logs  []SearchLogResponse `json:"logs"`
	Total int64               `json:"total"`
}
