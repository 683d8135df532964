package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"compliance-assistant-be/internal/dto"
	"compliance-assistant-be/internal/entity"
	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/internal/repository/contract"
	"compliance-assistant-be/internal/repository/specification"
	"compliance-assistant-be/internal/repository/unitofwork"
	"compliance-assistant-be/pkg/events"
	"compliance-assistant-be/pkg/resilience"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocumentRepo records calls. A document whose SourceId matches
// failSourceId fails permanently, to exercise failure isolation without
// waiting out the retry schedule.
type fakeDocumentRepo struct {
	mu           sync.Mutex
	created      []*entity.Document
	deleted      []string
	failSourceId string
}

func (f *fakeDocumentRepo) Create(ctx context.Context, document *entity.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSourceId != "" && document.SourceId == f.failSourceId {
		return resilience.Permanent(assert.AnError)
	}
	f.created = append(f.created, document)
	return nil
}

func (f *fakeDocumentRepo) CreateBulk(ctx context.Context, documents []*entity.Document) error {
	for _, document := range documents {
		if err := f.Create(ctx, document); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDocumentRepo) Update(ctx context.Context, document *entity.Document) error { return nil }
func (f *fakeDocumentRepo) Delete(ctx context.Context, id uuid.UUID) error              { return nil }

func (f *fakeDocumentRepo) DeleteBySourceId(ctx context.Context, sourceId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, sourceId)
	return nil
}

func (f *fakeDocumentRepo) DeleteBySourceTag(ctx context.Context, tag string) error { return nil }

func (f *fakeDocumentRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	return nil, nil
}

func (f *fakeDocumentRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	return nil, nil
}

func (f *fakeDocumentRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}

func (f *fakeDocumentRepo) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64, minContentLength int, sourceTag string) ([]*contract.ScoredDocument, error) {
	return nil, nil
}

func (f *fakeDocumentRepo) SearchKeywordWithScore(ctx context.Context, query string, limit int, minContentLength int, sourceTag string) ([]*contract.ScoredDocument, error) {
	return nil, nil
}

func (f *fakeDocumentRepo) createdSourceIds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.created))
	for i, document := range f.created {
		ids[i] = document.SourceId
	}
	return ids
}

type fakeSearchLogRepo struct {
	mu   sync.Mutex
	logs []*entity.SearchLog
}

func (f *fakeSearchLogRepo) Create(ctx context.Context, log *entity.SearchLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeSearchLogRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SearchLog, error) {
	return nil, nil
}

func (f *fakeSearchLogRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SearchLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.SearchLog(nil), f.logs...), nil
}

func (f *fakeSearchLogRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.logs)), nil
}

type fakeUnitOfWork struct {
	documents  contract.DocumentRepository
	searchLogs contract.SearchLogRepository
}

func (f *fakeUnitOfWork) Begin(ctx context.Context) error { return nil }
func (f *fakeUnitOfWork) Commit() error                   { return nil }
func (f *fakeUnitOfWork) Rollback() error                 { return nil }

func (f *fakeUnitOfWork) DocumentRepository() contract.DocumentRepository { return f.documents }
func (f *fakeUnitOfWork) SearchLogRepository() contract.SearchLogRepository {
	return f.searchLogs
}

type fakeRepositoryFactory struct {
	uow unitofwork.UnitOfWork
}

func (f *fakeRepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

// recordingEventBus captures published domain events.
type recordingEventBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEventBus) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEventBus) published() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func newQueueFixture(t *testing.T, repo *fakeDocumentRepo) (IPublisherService, IConsumerService, *recordingEventBus) {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })

	factory := &fakeRepositoryFactory{uow: &fakeUnitOfWork{documents: repo, searchLogs: &fakeSearchLogRepo{}}}
	eventBus := &recordingEventBus{}
	publisher := NewPublisherService("PERSIST_TEST", pubSub)
	consumer := NewConsumerService(pubSub, "PERSIST_TEST", factory, eventBus, logger.NewNopLogger())
	return publisher, consumer, eventBus
}

func publishTask(t *testing.T, publisher IPublisherService, task dto.PersistDocumentMessage) {
	t.Helper()
	payload, err := json.Marshal(task)
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(context.Background(), payload))
}

func TestConsumerProcessesTasksInOrder(t *testing.T) {
	repo := &fakeDocumentRepo{}
	publisher, consumer, _ := newQueueFixture(t, repo)
	require.NoError(t, consumer.Consume(context.Background()))

	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t1", Content: "a"})
	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t2", Content: "b"})
	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t3", Content: "c"})

	assert.Eventually(t, func() bool {
		return len(repo.createdSourceIds()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"t1", "t2", "t3"}, repo.createdSourceIds())
}

func TestConsumerIsolatesFailedTask(t *testing.T) {
	repo := &fakeDocumentRepo{failSourceId: "t2"}
	publisher, consumer, _ := newQueueFixture(t, repo)
	require.NoError(t, consumer.Consume(context.Background()))

	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t1", Content: "a"})
	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t2", Content: "b"})
	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t3", Content: "c"})

	// t2 fails; t1 and t3 still land, in order
	assert.Eventually(t, func() bool {
		return len(repo.createdSourceIds()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"t1", "t3"}, repo.createdSourceIds())
}

func TestConsumerSkipsMalformedPayload(t *testing.T) {
	repo := &fakeDocumentRepo{}
	publisher, consumer, _ := newQueueFixture(t, repo)
	require.NoError(t, consumer.Consume(context.Background()))

	require.NoError(t, publisher.Publish(context.Background(), []byte("not json")))
	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t1", Content: "a"})

	assert.Eventually(t, func() bool {
		return len(repo.createdSourceIds()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConsumerRefreshDropsStaleChunksFirst(t *testing.T) {
	repo := &fakeDocumentRepo{}
	publisher, consumer, _ := newQueueFixture(t, repo)
	require.NoError(t, consumer.Consume(context.Background()))

	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "doc-9", ChunkIndex: 0, Content: "a", Refresh: true})
	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "doc-9", ChunkIndex: 1, Content: "b", Refresh: true})

	assert.Eventually(t, func() bool {
		return len(repo.createdSourceIds()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Only the first chunk triggers the delete
	assert.Equal(t, []string{"doc-9"}, repo.deleted)
}

func TestConsumerAnnouncesPersistedDocuments(t *testing.T) {
	repo := &fakeDocumentRepo{failSourceId: "t2"}
	publisher, consumer, eventBus := newQueueFixture(t, repo)
	require.NoError(t, consumer.Consume(context.Background()))

	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t1", ChunkIndex: 3, Content: "a"})
	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t2", Content: "b"})
	publishTask(t, publisher, dto.PersistDocumentMessage{SourceId: "t3", Content: "c"})

	// t3 landing means the failed t2 has already been handled
	assert.Eventually(t, func() bool {
		return len(repo.createdSourceIds()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Only the successful writes are announced
	published := eventBus.published()
	require.Len(t, published, 2)
	assert.Equal(t, events.TypeDocumentPersisted, published[0].EventType())
	assert.Equal(t, "t1", published[0].Payload()["source_id"])
	assert.Equal(t, 3, published[0].Payload()["chunk_index"])
	assert.Equal(t, "t3", published[1].Payload()["source_id"])
}
