package dto

type IngestionRunRequest struct {
	SourceTag string `json:"source_tag"`
	Refresh   bool   `json:"refresh"` // drop previously ingested chunks of a re-seen document
}

type IngestionRunResponse struct {
	SourceTag          string `json:"source_tag"`
	PagesFetched       int    `json:"pages_fetched"`
	DocumentsScheduled int    `json:"documents_scheduled"`
	ChunksScheduled    int    `json:"chunks_scheduled"`
	DegradedEmbeddings int    `json:"degraded_embeddings"`
}

// PersistDocumentMessage is the task payload placed on the persist queue.
// Each message is one already-embedded chunk; the consumer only writes it.
type PersistDocumentMessage struct {
	SourceId   string                 `json:"source_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	Embedding  []float32              `json:"embedding"`
	SourceTag  string                 `json:"source_tag"`
	Metadata   map[string]interface{} `json:"metadata"`
	Refresh    bool                   `json:"refresh"`
}
