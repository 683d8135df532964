package retrieval

import (
	"context"
	"sync"
	"testing"

	"compliance-assistant-be/internal/entity"
	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/internal/repository/contract"
	"compliance-assistant-be/internal/repository/specification"
	"compliance-assistant-be/internal/repository/unitofwork"
	"compliance-assistant-be/pkg/analyzer"
	"compliance-assistant-be/pkg/embedding"
	"compliance-assistant-be/pkg/resilience"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// searchStubRepo serves canned rankings and counts which legs actually ran.
type searchStubRepo struct {
	mu             sync.Mutex
	vectorCalls    int
	keywordCalls   int
	vectorResults  []*contract.ScoredDocument
	keywordResults []*contract.ScoredDocument
	vectorErr      error
	lastSourceTag  string
}

func (s *searchStubRepo) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64, minContentLength int, sourceTag string) ([]*contract.ScoredDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectorCalls++
	s.lastSourceTag = sourceTag
	if s.vectorErr != nil {
		return nil, s.vectorErr
	}
	return s.vectorResults, nil
}

func (s *searchStubRepo) SearchKeywordWithScore(ctx context.Context, query string, limit int, minContentLength int, sourceTag string) ([]*contract.ScoredDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywordCalls++
	s.lastSourceTag = sourceTag
	return s.keywordResults, nil
}

func (s *searchStubRepo) Create(ctx context.Context, document *entity.Document) error { return nil }
func (s *searchStubRepo) CreateBulk(ctx context.Context, documents []*entity.Document) error {
	return nil
}
func (s *searchStubRepo) Update(ctx context.Context, document *entity.Document) error { return nil }
func (s *searchStubRepo) Delete(ctx context.Context, id uuid.UUID) error              { return nil }
func (s *searchStubRepo) DeleteBySourceId(ctx context.Context, sourceId string) error { return nil }
func (s *searchStubRepo) DeleteBySourceTag(ctx context.Context, tag string) error     { return nil }
func (s *searchStubRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Document, error) {
	return nil, nil
}
func (s *searchStubRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	return nil, nil
}
func (s *searchStubRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}

func (s *searchStubRepo) calls() (vector, keyword int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vectorCalls, s.keywordCalls
}

type stubUnitOfWork struct {
	repo contract.DocumentRepository
}

func (s *stubUnitOfWork) Begin(ctx context.Context) error                   { return nil }
func (s *stubUnitOfWork) Commit() error                                     { return nil }
func (s *stubUnitOfWork) Rollback() error                                   { return nil }
func (s *stubUnitOfWork) DocumentRepository() contract.DocumentRepository   { return s.repo }
func (s *stubUnitOfWork) SearchLogRepository() contract.SearchLogRepository { return nil }

type stubFactory struct {
	repo contract.DocumentRepository
}

func (s *stubFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &stubUnitOfWork{repo: s.repo}
}

type fixedEmbedder struct {
	err error
}

func (f *fixedEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1, 0, 0}},
	}, nil
}

func scored(id string, similarity float64) *contract.ScoredDocument {
	return &contract.ScoredDocument{
		Document: &entity.Document{
			Id:       uuid.MustParse(id),
			SourceId: "src-" + id[:8],
			Title:    "doc " + id[:8],
			Content:  "content",
		},
		Similarity: similarity,
	}
}

func newTestRetriever(repo *searchStubRepo, provider embedding.EmbeddingProvider) *Retriever {
	embedder := embedding.NewClient(3, func() embedding.EmbeddingProvider { return provider }, logger.NewNopLogger())
	return NewRetriever(
		analyzer.NewAnalyzer(analyzer.DefaultRuleset()),
		embedder,
		&stubFactory{repo: repo},
		logger.NewNopLogger(),
		DefaultConfig(),
	)
}

const (
	idA = "11111111-1111-1111-1111-111111111111"
	idB = "22222222-2222-2222-2222-222222222222"
	idC = "33333333-3333-3333-3333-333333333333"
)

func TestRetrieveVectorStrategyRunsSingleLeg(t *testing.T) {
	repo := &searchStubRepo{vectorResults: []*contract.ScoredDocument{scored(idA, 0.9)}}
	r := newTestRetriever(repo, &fixedEmbedder{})

	// Procedural phrasing with no anchored entities selects the plain
	// vector strategy: one search with the original query only.
	retrieval, err := r.Retrieve(context.Background(), "how to onboard a new hire", Config{})

	require.NoError(t, err)
	assert.Equal(t, analyzer.StrategyVector, retrieval.Analysis.Strategy)

	vector, keyword := repo.calls()
	assert.Equal(t, 1, vector)
	assert.Zero(t, keyword)
	require.Len(t, retrieval.Results, 1)
	assert.Equal(t, idA, retrieval.Results[0].ID)
}

func TestRetrieveKeywordStrategySkipsVectorSearch(t *testing.T) {
	repo := &searchStubRepo{keywordResults: []*contract.ScoredDocument{scored(idB, 0.7)}}
	r := newTestRetriever(repo, &fixedEmbedder{})

	// A regulatory query anchored on exactly one entity goes keyword-only.
	retrieval, err := r.Retrieve(context.Background(), "gdpr requirements", Config{})

	require.NoError(t, err)
	assert.Equal(t, analyzer.StrategyKeyword, retrieval.Analysis.Strategy)

	vector, keyword := repo.calls()
	assert.Zero(t, vector)
	assert.Equal(t, 1, keyword)
	require.Len(t, retrieval.Results, 1)
	assert.Equal(t, idB, retrieval.Results[0].ID)
}

func TestRetrieveHybridStrategyFusesBothLegTypes(t *testing.T) {
	repo := &searchStubRepo{
		vectorResults: []*contract.ScoredDocument{scored(idA, 0.9), scored(idB, 0.5)},
		keywordResults: []*contract.ScoredDocument{
			scored(idB, 0.8), scored(idC, 0.6),
		},
	}
	r := newTestRetriever(repo, &fixedEmbedder{})

	// Regulatory intent without anchored entities selects hybrid: expansion
	// variants plus a keyword leg, fused into one ranking.
	retrieval, err := r.Retrieve(context.Background(), "what are the legal obligations", Config{})

	require.NoError(t, err)
	assert.Equal(t, analyzer.StrategyHybrid, retrieval.Analysis.Strategy)

	vector, keyword := repo.calls()
	assert.GreaterOrEqual(t, vector, 1)
	assert.Equal(t, 1, keyword)

	// B appears in both legs and keeps its best score
	require.Len(t, retrieval.Results, 3)
	assert.Equal(t, idA, retrieval.Results[0].ID)
	assert.Equal(t, idB, retrieval.Results[1].ID)
	assert.InDelta(t, 0.8, retrieval.Results[1].Similarity, 1e-9)
	assert.Equal(t, idC, retrieval.Results[2].ID)
}

func TestRetrieveSemanticStrategyHasNoKeywordLeg(t *testing.T) {
	repo := &searchStubRepo{vectorResults: []*contract.ScoredDocument{scored(idA, 0.9)}}
	r := newTestRetriever(repo, &fixedEmbedder{})

	retrieval, err := r.Retrieve(context.Background(), "likelihood of a serious incident", Config{})

	require.NoError(t, err)
	assert.Equal(t, analyzer.StrategySemantic, retrieval.Analysis.Strategy)

	vector, keyword := repo.calls()
	assert.GreaterOrEqual(t, vector, 1)
	assert.Zero(t, keyword)
}

func TestRetrieveAbsorbsFailedLeg(t *testing.T) {
	repo := &searchStubRepo{
		vectorErr:      resilience.Permanent(assert.AnError),
		keywordResults: []*contract.ScoredDocument{scored(idC, 0.6)},
	}
	r := newTestRetriever(repo, &fixedEmbedder{})

	// Hybrid query: the vector legs all fail, the keyword leg still delivers.
	retrieval, err := r.Retrieve(context.Background(), "what are the legal obligations", Config{})

	require.NoError(t, err)
	require.Len(t, retrieval.Results, 1)
	assert.Equal(t, idC, retrieval.Results[0].ID)
}

func TestRetrieveCountsDegradedEmbeddings(t *testing.T) {
	repo := &searchStubRepo{vectorResults: []*contract.ScoredDocument{scored(idA, 0.9)}}
	r := newTestRetriever(repo, &fixedEmbedder{err: assert.AnError})

	retrieval, err := r.Retrieve(context.Background(), "how to onboard a new hire", Config{})

	// The zero-vector fallback keeps the search alive and is counted.
	require.NoError(t, err)
	assert.Equal(t, 1, retrieval.DegradedEmbeddings)
	assert.Len(t, retrieval.Results, 1)
}

func TestRetrieveScopesByCollection(t *testing.T) {
	repo := &searchStubRepo{vectorResults: []*contract.ScoredDocument{scored(idA, 0.9)}}
	r := newTestRetriever(repo, &fixedEmbedder{})

	_, err := r.Retrieve(context.Background(), "how to onboard a new hire", Config{SourceTag: "hr-policies"})

	require.NoError(t, err)
	assert.Equal(t, "hr-policies", repo.lastSourceTag)
}

func TestRetrieveAppliesConfigDefaults(t *testing.T) {
	cfg := Config{MatchCount: 7}.withDefaults(DefaultConfig())

	assert.Equal(t, 7, cfg.MatchCount)
	assert.Equal(t, DefaultConfig().MatchThreshold, cfg.MatchThreshold)
	assert.Equal(t, DefaultConfig().MinContentLength, cfg.MinContentLength)
	assert.Equal(t, DefaultConfig().SearchTimeout, cfg.SearchTimeout)
}
