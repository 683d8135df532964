package service

import (
	"context"
	"encoding/json"
	"fmt"

	"compliance-assistant-be/internal/dto"
	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/internal/websocket"
	"compliance-assistant-be/pkg/embedding"
	"compliance-assistant-be/pkg/events"
	"compliance-assistant-be/pkg/nats"
	"compliance-assistant-be/pkg/resilience"
	"compliance-assistant-be/pkg/source"
	"compliance-assistant-be/pkg/utils"
)

// Chunking tuned for embedding context limits: ~1500 chars per chunk with a
// 200 char overlap at boundaries.
const (
	chunkSize    = 1500
	chunkOverlap = 200
)

type IIngestionService interface {
	Run(ctx context.Context, request *dto.IngestionRunRequest) (*dto.IngestionRunResponse, error)
}

// ingestionService walks the paginated source until an empty page, embeds
// every document chunk, and enqueues one persist task per chunk. Writing is
// left entirely to the queue consumer so a slow database never stalls the
// source walk.
type ingestionService struct {
	source     *source.Client
	embedder   *embedding.Client
	publisher  IPublisherService
	eventBus   *nats.Publisher
	hub        *websocket.Hub
	log        logger.ILogger
	defaultTag string
}

func NewIngestionService(
	sourceClient *source.Client,
	embedder *embedding.Client,
	publisher IPublisherService,
	eventBus *nats.Publisher,
	hub *websocket.Hub,
	log logger.ILogger,
	defaultTag string,
) IIngestionService {
	return &ingestionService{
		source:     sourceClient,
		embedder:   embedder,
		publisher:  publisher,
		eventBus:   eventBus,
		hub:        hub,
		log:        log,
		defaultTag: defaultTag,
	}
}

func (is *ingestionService) Run(ctx context.Context, request *dto.IngestionRunRequest) (*dto.IngestionRunResponse, error) {
	tag := request.SourceTag
	if tag == "" {
		tag = is.defaultTag
	}

	is.log.Info("Ingestion", "Ingestion run started", map[string]interface{}{
		"source_tag": tag,
		"refresh":    request.Refresh,
	})
	// Lifecycle events go through NATS; the notifier relays them to the hub.
	// Only per-page progress is broadcast directly.
	is.publishEvent(ctx, events.NewIngestionStartedEvent(tag))

	response := &dto.IngestionRunResponse{SourceTag: tag}
	fetched := 0

	for page := 1; ; page++ {
		// 1. Fetch one page, retrying transient source failures
		pageData, err := resilience.Do(ctx, is.log, "fetch_source_page",
			func(ctx context.Context) (*source.Page, error) {
				return is.source.FetchPage(ctx, page)
			},
		)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		// 2. An empty page marks the end of the listing
		if len(pageData.Data) == 0 {
			break
		}
		response.PagesFetched++

		// 3. Chunk, embed and enqueue every document on the page
		for _, doc := range pageData.Data {
			chunks := utils.SplitText(is.formatDocument(doc, tag), chunkSize, chunkOverlap)
			vectors, degraded := is.embedder.EmbedBatch(ctx, chunks, embedding.TaskRetrievalDocument)
			response.DegradedEmbeddings += degraded

			for i, chunk := range chunks {
				if err := is.enqueue(ctx, doc, chunk, vectors[i], i, tag, request.Refresh); err != nil {
					return nil, fmt.Errorf("enqueue chunk %d of %s: %w", i, doc.Id, err)
				}
			}

			response.DocumentsScheduled++
			response.ChunksScheduled += len(chunks)
		}

		fetched += len(pageData.Data)
		is.notify("ingestion_progress", map[string]interface{}{
			"source_tag": tag,
			"fetched":    fetched,
			"total":      pageData.Total,
		})

		if pageData.Total > 0 && fetched >= pageData.Total {
			break
		}
	}

	is.log.Info("Ingestion", "Ingestion run completed", map[string]interface{}{
		"source_tag":          tag,
		"pages":               response.PagesFetched,
		"documents_scheduled": response.DocumentsScheduled,
		"chunks_scheduled":    response.ChunksScheduled,
		"degraded_embeddings": response.DegradedEmbeddings,
	})
	is.publishEvent(ctx, events.NewIngestionCompletedEvent(tag, response.DocumentsScheduled, response.ChunksScheduled))

	return response, nil
}

// formatDocument renders the canonical text that gets chunked and embedded.
func (is *ingestionService) formatDocument(doc source.Document, tag string) string {
	return fmt.Sprintf(`Document Title: %s
Source: %s

%s`,
		doc.Title,
		tag,
		doc.Content,
	)
}

func (is *ingestionService) enqueue(ctx context.Context, doc source.Document, chunk string, vector []float32, chunkIndex int, tag string, refresh bool) error {
	payload, err := json.Marshal(dto.PersistDocumentMessage{
		SourceId:   doc.Id,
		ChunkIndex: chunkIndex,
		Title:      doc.Title,
		Content:    chunk,
		Embedding:  vector,
		SourceTag:  tag,
		Metadata:   doc.Metadata,
		Refresh:    refresh,
	})
	if err != nil {
		return err
	}
	return is.publisher.Publish(ctx, payload)
}

func (is *ingestionService) publishEvent(ctx context.Context, event events.Event) {
	if is.eventBus == nil {
		return
	}
	if err := is.eventBus.Publish(ctx, event); err != nil {
		is.log.Warn("Ingestion", "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

func (is *ingestionService) notify(notificationType string, data map[string]interface{}) {
	if is.hub == nil {
		return
	}
	is.hub.Broadcast(websocket.Notification{Type: notificationType, Data: data})
}
