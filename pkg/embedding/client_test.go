package embedding

import (
	"context"
	"errors"
	"testing"

	"compliance-assistant-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls     int
	responses map[string][]float32
	err       error
}

func (f *fakeProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	values, ok := f.responses[text]
	if !ok {
		return nil, errors.New("no canned response")
	}
	return &EmbeddingResponse{Embedding: EmbeddingResponseEmbedding{Values: values}}, nil
}

func newTestClient(provider EmbeddingProvider, dimension int) *Client {
	return NewClient(dimension, func() EmbeddingProvider { return provider }, logger.NewNopLogger())
}

func TestEmbedReturnsProviderVector(t *testing.T) {
	provider := &fakeProvider{responses: map[string][]float32{"hello": {0.1, 0.2, 0.3}}}
	client := newTestClient(provider, 3)

	vector, degraded := client.Embed(context.Background(), "hello", TaskRetrievalQuery)

	assert.False(t, degraded)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestEmbedFallsBackToZeroVectorOnError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	client := newTestClient(provider, 4)

	vector, degraded := client.Embed(context.Background(), "hello", TaskRetrievalQuery)

	assert.True(t, degraded)
	assert.Equal(t, []float32{0, 0, 0, 0}, vector)
	assert.Len(t, vector, client.Dimension())
}

func TestEmbedFallsBackOnDimensionMismatch(t *testing.T) {
	provider := &fakeProvider{responses: map[string][]float32{"hello": {0.1, 0.2}}}
	client := newTestClient(provider, 3)

	vector, degraded := client.Embed(context.Background(), "hello", TaskRetrievalQuery)

	assert.True(t, degraded)
	assert.Equal(t, client.ZeroVector(), vector)
}

func TestEmbedCachesSuccessfulResults(t *testing.T) {
	provider := &fakeProvider{responses: map[string][]float32{"hello": {1, 2, 3}}}
	client := newTestClient(provider, 3)

	first, _ := client.Embed(context.Background(), "hello", TaskRetrievalQuery)
	second, _ := client.Embed(context.Background(), "hello", TaskRetrievalQuery)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls, "second call served from cache")
}

func TestEmbedCacheKeyIncludesTaskType(t *testing.T) {
	provider := &fakeProvider{responses: map[string][]float32{"hello": {1, 2, 3}}}
	client := newTestClient(provider, 3)

	client.Embed(context.Background(), "hello", TaskRetrievalQuery)
	client.Embed(context.Background(), "hello", TaskRetrievalDocument)

	assert.Equal(t, 2, provider.calls, "different task types are distinct cache entries")
}

func TestEmbedBatchCountsDegradedLegs(t *testing.T) {
	provider := &fakeProvider{responses: map[string][]float32{
		"a": {1, 0, 0},
		"c": {0, 0, 1},
	}}
	client := newTestClient(provider, 3)

	vectors, degradedCount := client.EmbedBatch(context.Background(), []string{"a", "b", "c"}, TaskRetrievalDocument)

	require.Len(t, vectors, 3)
	assert.Equal(t, 1, degradedCount)
	assert.Equal(t, []float32{1, 0, 0}, vectors[0])
	assert.Equal(t, client.ZeroVector(), vectors[1], "failed leg contributes a zero vector")
	assert.Equal(t, []float32{0, 0, 1}, vectors[2])
}

func TestZeroVectorMatchesDimension(t *testing.T) {
	client := newTestClient(&fakeProvider{}, 768)
	assert.Len(t, client.ZeroVector(), 768)
}
