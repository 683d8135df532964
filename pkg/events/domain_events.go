package events

import "time"

const (
	TypeIngestionStarted   = "INGESTION_STARTED"
	TypeIngestionCompleted = "INGESTION_COMPLETED"
	TypeDocumentPersisted  = "DOCUMENT_PERSISTED"
	TypeSearchCompleted    = "SEARCH_COMPLETED"
)

func NewIngestionStartedEvent(sourceTag string) Event {
	return BaseEvent{
		Type: TypeIngestionStarted,
		Data: map[string]interface{}{
			"source_tag": sourceTag,
		},
		OccurredAt: time.Now(),
	}
}

func NewIngestionCompletedEvent(sourceTag string, documentsScheduled int, chunksScheduled int) Event {
	return BaseEvent{
		Type: TypeIngestionCompleted,
		Data: map[string]interface{}{
			"source_tag":          sourceTag,
			"documents_scheduled": documentsScheduled,
			"chunks_scheduled":    chunksScheduled,
		},
		OccurredAt: time.Now(),
	}
}

func NewDocumentPersistedEvent(sourceId string, chunkIndex int) Event {
	return BaseEvent{
		Type: TypeDocumentPersisted,
		Data: map[string]interface{}{
			"source_id":   sourceId,
			"chunk_index": chunkIndex,
		},
		OccurredAt: time.Now(),
	}
}

func NewSearchCompletedEvent(searchId string, query string, responseTimeSeconds float64) Event {
	return BaseEvent{
		Type: TypeSearchCompleted,
		Data: map[string]interface{}{
			"search_id":             searchId,
			"query":                 query,
			"response_time_seconds": responseTimeSeconds,
		},
		OccurredAt: time.Now(),
	}
}
