package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"compliance-assistant-be/internal/dto"
	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/pkg/embedding"
	"compliance-assistant-be/pkg/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingPublisher records enqueued payloads in publish order.
type capturingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *capturingPublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, append([]byte(nil), payload...))
	return nil
}

func (p *capturingPublisher) tasks(t *testing.T) []dto.PersistDocumentMessage {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	tasks := make([]dto.PersistDocumentMessage, len(p.payloads))
	for i, payload := range p.payloads {
		require.NoError(t, json.Unmarshal(payload, &tasks[i]))
	}
	return tasks
}

type stubEmbeddingProvider struct {
	err error
}

func (s *stubEmbeddingProvider) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1, 2, 3}},
	}, nil
}

func newIngestionFixture(t *testing.T, pages map[int]source.Page, provider embedding.EmbeddingProvider) (IIngestionService, *capturingPublisher, *int) {
	t.Helper()

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		listing, ok := pages[page]
		if !ok {
			listing = source.Page{Data: []source.Document{}}
		}
		json.NewEncoder(w).Encode(listing)
	}))
	t.Cleanup(server.Close)

	publisher := &capturingPublisher{}
	embedder := embedding.NewClient(3, func() embedding.EmbeddingProvider { return provider }, logger.NewNopLogger())
	svc := NewIngestionService(
		source.NewClient(server.URL, 10),
		embedder,
		publisher,
		nil, // no event bus
		nil, // no websocket hub
		logger.NewNopLogger(),
		"regulations",
	)
	return svc, publisher, &requests
}

func TestIngestionStopsWhenTotalReached(t *testing.T) {
	pages := map[int]source.Page{
		1: {Data: []source.Document{
			{Id: "d1", Title: "GDPR overview", Content: "data protection basics"},
			{Id: "d2", Title: "SOX summary", Content: "financial controls"},
		}, Total: 3},
		2: {Data: []source.Document{
			{Id: "d3", Title: "HIPAA intro", Content: "health data rules"},
		}, Total: 3},
	}
	svc, publisher, requests := newIngestionFixture(t, pages, &stubEmbeddingProvider{})

	response, err := svc.Run(context.Background(), &dto.IngestionRunRequest{})

	require.NoError(t, err)
	assert.Equal(t, 2, *requests, "no request past the reported total")
	assert.Equal(t, 2, response.PagesFetched)
	assert.Equal(t, 3, response.DocumentsScheduled)
	assert.Equal(t, 3, response.ChunksScheduled)
	assert.Zero(t, response.DegradedEmbeddings)

	tasks := publisher.tasks(t)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"d1", "d2", "d3"}, []string{tasks[0].SourceId, tasks[1].SourceId, tasks[2].SourceId})
}

func TestIngestionStopsAtEmptyPage(t *testing.T) {
	// The source reports no total, so only an empty listing ends the walk.
	pages := map[int]source.Page{
		1: {Data: []source.Document{
			{Id: "d1", Title: "ISO 27001", Content: "information security"},
		}},
	}
	svc, _, requests := newIngestionFixture(t, pages, &stubEmbeddingProvider{})

	response, err := svc.Run(context.Background(), &dto.IngestionRunRequest{})

	require.NoError(t, err)
	assert.Equal(t, 2, *requests, "empty page 2 ends the walk")
	assert.Equal(t, 1, response.PagesFetched)
	assert.Equal(t, 1, response.DocumentsScheduled)
}

func TestIngestionTaskPayload(t *testing.T) {
	pages := map[int]source.Page{
		1: {Data: []source.Document{
			{Id: "d1", Title: "PCI DSS", Content: "card data handling", Metadata: map[string]interface{}{"version": "4.0"}},
		}, Total: 1},
	}
	svc, publisher, _ := newIngestionFixture(t, pages, &stubEmbeddingProvider{})

	_, err := svc.Run(context.Background(), &dto.IngestionRunRequest{SourceTag: "payments", Refresh: true})
	require.NoError(t, err)

	tasks := publisher.tasks(t)
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, "d1", task.SourceId)
	assert.Equal(t, 0, task.ChunkIndex)
	assert.Equal(t, "PCI DSS", task.Title)
	assert.Contains(t, task.Content, "card data handling")
	assert.Contains(t, task.Content, "Source: payments", "chunk text embeds the tag")
	assert.Equal(t, []float32{1, 2, 3}, task.Embedding)
	assert.Equal(t, "payments", task.SourceTag)
	assert.True(t, task.Refresh)
	assert.Equal(t, "4.0", task.Metadata["version"])
}

func TestIngestionCountsDegradedEmbeddings(t *testing.T) {
	pages := map[int]source.Page{
		1: {Data: []source.Document{
			{Id: "d1", Title: "A", Content: "short"},
			{Id: "d2", Title: "B", Content: "short"},
		}, Total: 2},
	}
	svc, publisher, _ := newIngestionFixture(t, pages, &stubEmbeddingProvider{err: errors.New("embedder down")})

	response, err := svc.Run(context.Background(), &dto.IngestionRunRequest{})

	// Embedding failures degrade to zero vectors; the run itself succeeds.
	require.NoError(t, err)
	assert.Equal(t, 2, response.DegradedEmbeddings)

	for _, task := range publisher.tasks(t) {
		assert.Equal(t, []float32{0, 0, 0}, task.Embedding)
	}
}

func TestIngestionDefaultsSourceTag(t *testing.T) {
	pages := map[int]source.Page{
		1: {Data: []source.Document{
			{Id: "d1", Title: "A", Content: "short"},
		}, Total: 1},
	}
	svc, publisher, _ := newIngestionFixture(t, pages, &stubEmbeddingProvider{})

	response, err := svc.Run(context.Background(), &dto.IngestionRunRequest{})

	require.NoError(t, err)
	assert.Equal(t, "regulations", response.SourceTag)
	assert.Equal(t, "regulations", publisher.tasks(t)[0].SourceTag)
}
