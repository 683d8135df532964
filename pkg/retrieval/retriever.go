package retrieval

import (
	"context"
	"sync"
	"time"

	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/internal/repository/contract"
	"compliance-assistant-be/internal/repository/unitofwork"
	"compliance-assistant-be/pkg/analyzer"
	"compliance-assistant-be/pkg/embedding"
	"compliance-assistant-be/pkg/resilience"

	"golang.org/x/sync/errgroup"
)

// Config encapsulates search parameters
type Config struct {
	MatchCount       int
	MatchThreshold   float64
	MinContentLength int
	SearchTimeout    time.Duration
	SourceTag        string // empty searches every collection
}

// DefaultConfig returns default search configuration
func DefaultConfig() Config {
	return Config{
		MatchCount:       5,
		MatchThreshold:   0.45,
		MinContentLength: 40,
		SearchTimeout:    10 * time.Second,
	}
}

func (c Config) withDefaults(defaults Config) Config {
	if c.MatchCount <= 0 {
		c.MatchCount = defaults.MatchCount
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = defaults.MatchThreshold
	}
	if c.MinContentLength <= 0 {
		c.MinContentLength = defaults.MinContentLength
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = defaults.SearchTimeout
	}
	return c
}

// Retrieval is the outcome of one retrieve call: the query analysis, the
// fused ranking, and how many embedding legs fell back to the zero vector.
type Retrieval struct {
	Analysis           analyzer.Analysis
	Expanded           analyzer.ExpandedQuery
	Results            []Result
	DegradedEmbeddings int
}

// Retriever runs the full retrieval pipeline: analyze the query, expand it,
// embed the variants, search each leg concurrently and fuse the rankings.
// A failed leg is absorbed (logged, contributes nothing) so one slow or
// broken leg never fails the whole retrieve.
type Retriever struct {
	analyzer *analyzer.Analyzer
	embedder *embedding.Client
	factory  unitofwork.RepositoryFactory
	log      logger.ILogger
	defaults Config
}

func NewRetriever(
	queryAnalyzer *analyzer.Analyzer,
	embedder *embedding.Client,
	factory unitofwork.RepositoryFactory,
	log logger.ILogger,
	defaults Config,
) *Retriever {
	return &Retriever{
		analyzer: queryAnalyzer,
		embedder: embedder,
		factory:  factory,
		log:      log,
		defaults: defaults.withDefaults(DefaultConfig()),
	}
}

// Retrieve executes every search leg the selected strategy calls for and
// returns the fused top MatchCount results. Zero-valued cfg fields fall back
// to the retriever defaults.
func (r *Retriever) Retrieve(ctx context.Context, query string, cfg Config) (*Retrieval, error) {
	cfg = cfg.withDefaults(r.defaults)

	// 1. Analyze and expand the query
	analysis := r.analyzer.Analyze(query)
	expanded := r.analyzer.Expand(query)

	vectorQueries, useKeyword := r.planLegs(query, analysis, expanded)

	// 2. Run every leg concurrently. Legs report into fixed slots so the
	// fuse input order is deterministic regardless of completion order.
	lists := make([][]Result, len(vectorQueries)+1)

	var mu sync.Mutex
	degraded := 0

	g, legCtx := errgroup.WithContext(ctx)
	for i, vectorQuery := range vectorQueries {
		g.Go(func() error {
			results, wasDegraded := r.vectorLeg(legCtx, vectorQuery, cfg)
			mu.Lock()
			lists[i] = results
			if wasDegraded {
				degraded++
			}
			mu.Unlock()
			return nil
		})
	}
	if useKeyword {
		g.Go(func() error {
			results := r.keywordLeg(legCtx, query, cfg)
			mu.Lock()
			lists[len(vectorQueries)] = results
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Fuse the per-leg rankings
	retrieval := &Retrieval{
		Analysis:           analysis,
		Expanded:           expanded,
		Results:            Fuse(lists, cfg.MatchCount),
		DegradedEmbeddings: degraded,
	}

	r.log.Info("Retrieval", "Retrieve completed", map[string]interface{}{
		"query":               query,
		"intent":              string(analysis.Intent),
		"strategy":            string(analysis.Strategy),
		"vector_legs":         len(vectorQueries),
		"keyword_leg":         useKeyword,
		"results":             len(retrieval.Results),
		"degraded_embeddings": degraded,
	})
	return retrieval, nil
}

// planLegs maps the selected strategy to concrete search legs.
func (r *Retriever) planLegs(query string, analysis analyzer.Analysis, expanded analyzer.ExpandedQuery) (vectorQueries []string, useKeyword bool) {
	switch analysis.Strategy {
	case analyzer.StrategyKeyword:
		return nil, true
	case analyzer.StrategyHybrid:
		return expansionVariants(query, expanded), true
	case analyzer.StrategySemantic:
		return expansionVariants(query, expanded), false
	default: // StrategyVector
		return []string{query}, false
	}
}

// expansionVariants returns the original query plus its distinct expansions.
func expansionVariants(query string, expanded analyzer.ExpandedQuery) []string {
	variants := []string{query}
	seen := map[string]bool{query: true}
	candidates := append(append([]string{}, expanded.Expanded...), expanded.Reformulations...)
	for _, candidate := range candidates {
		if candidate == "" || seen[candidate] {
			continue
		}
		seen[candidate] = true
		variants = append(variants, candidate)
	}
	return variants
}

func (r *Retriever) vectorLeg(ctx context.Context, query string, cfg Config) (results []Result, degraded bool) {
	vector, degraded := r.embedder.Embed(ctx, query, embedding.TaskRetrievalQuery)

	scored, err := resilience.Do(ctx, r.log, "vector_search",
		func(ctx context.Context) ([]*contract.ScoredDocument, error) {
			repo := r.factory.NewUnitOfWork(ctx).DocumentRepository()
			return repo.SearchSimilarWithScore(ctx, vector, cfg.MatchCount, cfg.MatchThreshold, cfg.MinContentLength, cfg.SourceTag)
		},
		resilience.WithAttemptTimeout(cfg.SearchTimeout),
	)
	if err != nil {
		r.log.Warn("Retrieval", "Vector leg failed, dropping it from fusion", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return nil, degraded
	}

	return toResults(scored), degraded
}

func (r *Retriever) keywordLeg(ctx context.Context, query string, cfg Config) []Result {
	scored, err := resilience.Do(ctx, r.log, "keyword_search",
		func(ctx context.Context) ([]*contract.ScoredDocument, error) {
			repo := r.factory.NewUnitOfWork(ctx).DocumentRepository()
			return repo.SearchKeywordWithScore(ctx, query, cfg.MatchCount, cfg.MinContentLength, cfg.SourceTag)
		},
		resilience.WithAttemptTimeout(cfg.SearchTimeout),
	)
	if err != nil {
		r.log.Warn("Retrieval", "Keyword leg failed, dropping it from fusion", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return nil
	}

	return toResults(scored)
}

func toResults(scored []*contract.ScoredDocument) []Result {
	results := make([]Result, len(scored))
	for i, s := range scored {
		results[i] = fromScored(s)
	}
	return results
}
