package service

import (
	"context"
	"encoding/json"

	"compliance-assistant-be/internal/dto"
	"compliance-assistant-be/internal/entity"
	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/internal/repository/unitofwork"
	"compliance-assistant-be/pkg/events"
	"compliance-assistant-be/pkg/resilience"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// IEventPublisher is the slice of the NATS publisher the consumer needs to
// announce persisted documents.
type IEventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// consumerService drains the persist queue with a single worker, so tasks
// run strictly in enqueue order. A task that still fails after retries is
// logged and skipped; it never blocks the tasks behind it.
type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	eventBus   IEventPublisher
	log        logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	eventBus IEventPublisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		eventBus:   eventBus,
		log:        log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PersistDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("Consumer", "Failed to unmarshal persist task", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.log.Debug("Consumer", "Persisting document chunk", map[string]interface{}{
		"source_id":   payload.SourceId,
		"chunk_index": payload.ChunkIndex,
	})

	_, err := resilience.Do(ctx, cs.log, "persist_document",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, cs.persist(ctx, &payload)
		},
	)
	if err != nil {
		// Skip the task instead of Nacking: a poisoned message must not stall
		// everything enqueued after it.
		cs.log.Error("Consumer", "Persist task failed, skipping", map[string]interface{}{
			"source_id":   payload.SourceId,
			"chunk_index": payload.ChunkIndex,
			"error":       err.Error(),
		})
		msg.Ack()
		return
	}

	if cs.eventBus != nil {
		if err := cs.eventBus.Publish(ctx, events.NewDocumentPersistedEvent(payload.SourceId, payload.ChunkIndex)); err != nil {
			cs.log.Warn("Consumer", "Failed to publish persisted event", map[string]interface{}{
				"source_id": payload.SourceId,
				"error":     err.Error(),
			})
		}
	}
	msg.Ack()
}

func (cs *consumerService) persist(ctx context.Context, payload *dto.PersistDocumentMessage) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	repo := uow.DocumentRepository()

	// The first chunk of a refreshed document clears its stale chunks.
	if payload.Refresh && payload.ChunkIndex == 0 {
		if err := repo.DeleteBySourceId(ctx, payload.SourceId); err != nil {
			return err
		}
	}

	return repo.Create(ctx, &entity.Document{
		Id:         uuid.New(),
		SourceId:   payload.SourceId,
		ChunkIndex: payload.ChunkIndex,
		Title:      payload.Title,
		Content:    payload.Content,
		Embedding:  payload.Embedding,
		SourceTag:  payload.SourceTag,
		Metadata:   payload.Metadata,
	})
}
