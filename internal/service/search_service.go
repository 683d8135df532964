package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"compliance-assistant-be/internal/dto"
	"compliance-assistant-be/internal/entity"
	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/internal/repository/specification"
	"compliance-assistant-be/internal/repository/unitofwork"
	"compliance-assistant-be/pkg/agent"
	"compliance-assistant-be/pkg/events"
	"compliance-assistant-be/pkg/llm"
	"compliance-assistant-be/pkg/nats"
	"compliance-assistant-be/pkg/retrieval"

	"github.com/google/uuid"
)

const defaultSystemPrompt = `You are a compliance document assistant. Answer questions about regulations, risk and internal procedures strictly from the documents returned by the search_documents tool. When the retrieved documents do not cover the question, say so instead of guessing. Cite the source title of every document you rely on.`

type ISearchService interface {
	Retrieve(ctx context.Context, request *dto.RetrieveRequest) (*dto.RetrieveResponse, error)
	ChatStream(ctx context.Context, request *dto.ChatStreamRequest) (<-chan agent.Event, error)
	GetLogs(ctx context.Context, limit int, offset int) (*dto.SearchLogListResponse, error)
}

type searchService struct {
	retriever   *retrieval.Retriever
	llmProvider llm.LLMProvider
	uowFactory  unitofwork.RepositoryFactory
	eventBus    *nats.Publisher
	log         logger.ILogger
	maxSteps    int
}

func NewSearchService(
	retriever *retrieval.Retriever,
	llmProvider llm.LLMProvider,
	uowFactory unitofwork.RepositoryFactory,
	eventBus *nats.Publisher,
	log logger.ILogger,
	maxSteps int,
) ISearchService {
	return &searchService{
		retriever:   retriever,
		llmProvider: llmProvider,
		uowFactory:  uowFactory,
		eventBus:    eventBus,
		log:         log,
		maxSteps:    maxSteps,
	}
}

func (ss *searchService) Retrieve(ctx context.Context, request *dto.RetrieveRequest) (*dto.RetrieveResponse, error) {
	result, err := ss.retriever.Retrieve(ctx, request.Query, retrieval.Config{
		MatchCount:       request.MatchCount,
		MatchThreshold:   request.MatchThreshold,
		MinContentLength: request.MinContentLength,
		SourceTag:        request.SourceTag,
	})
	if err != nil {
		return nil, err
	}

	response := &dto.RetrieveResponse{
		Query:              request.Query,
		Intent:             string(result.Analysis.Intent),
		Strategy:           string(result.Analysis.Strategy),
		Entities:           result.Analysis.Entities,
		ExpandedQueries:    append(append([]string{}, result.Expanded.Expanded...), result.Expanded.Reformulations...),
		DegradedEmbeddings: result.DegradedEmbeddings,
		Results:            make([]dto.RetrievedDocumentResponse, len(result.Results)),
	}
	for i, res := range result.Results {
		response.Results[i] = dto.RetrievedDocumentResponse{
			Id:          res.ID,
			Title:       res.Title,
			Content:     res.Content,
			Similarity:  res.Similarity,
			SourceDocId: res.SourceDocID,
			SourceTag:   res.SourceTag,
			Metadata:    res.Metadata,
		}
	}
	return response, nil
}

// chatStats collects what the retrieval tool observed during a chat run so
// the search log can record it. Guarded because tool calls may run
// concurrently within one step.
type chatStats struct {
	mu                 sync.Mutex
	intent             string
	strategy           string
	degradedEmbeddings int
}

func (ss *searchService) ChatStream(ctx context.Context, request *dto.ChatStreamRequest) (<-chan agent.Event, error) {
	searchId := uuid.New().String()
	query := lastUserMessage(request.Messages)

	history := ss.buildHistory(request)

	stats := &chatStats{}
	var tools []agent.Tool
	if request.RetrievalMode != "none" {
		tools = append(tools, ss.retrievalTool(stats, request.SourceTag))
	}

	maxSteps := request.MaxSteps
	if maxSteps <= 0 {
		maxSteps = ss.maxSteps
	}
	orchestrator := agent.NewOrchestrator(ss.llmProvider, ss.log, maxSteps)

	out := make(chan agent.Event)
	go func() {
		defer close(out)
		start := time.Now()

		var answer string
		var failed bool
		for event := range orchestrator.Run(ctx, history, tools) {
			switch event.Type {
			case agent.EventDone:
				answer = event.Answer
			case agent.EventError:
				failed = true
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}

		if !failed && ctx.Err() == nil {
			ss.finishSearch(searchId, query, answer, stats, time.Since(start))
		}
	}()

	return out, nil
}

func (ss *searchService) GetLogs(ctx context.Context, limit int, offset int) (*dto.SearchLogListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	uow := ss.uowFactory.NewUnitOfWork(ctx)
	repo := uow.SearchLogRepository()

	total, err := repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	logs, err := repo.FindAll(ctx,
		specification.OrderBy{Field: "search_time", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	response := &dto.SearchLogListResponse{
		Total: total,
		Logs:  make([]dto.SearchLogResponse, len(logs)),
	}
	for i, log := range logs {
		response.Logs[i] = dto.SearchLogResponse{
			SearchId:            log.SearchId,
			Query:               log.Query,
			Answer:              log.Answer,
			Intent:              log.Intent,
			Strategy:            log.Strategy,
			SearchTime:          log.SearchTime,
			ResponseTimeSeconds: log.ResponseTimeSeconds,
			TokenSize:           log.TokenSize,
			DegradedEmbeddings:  log.DegradedEmbeddings,
		}
	}
	return response, nil
}

func (ss *searchService) buildHistory(request *dto.ChatStreamRequest) []llm.Message {
	systemPrompt := request.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	history := make([]llm.Message, 0, len(request.Messages)+1)
	history = append(history, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, msg := range request.Messages {
		if msg.Role == llm.RoleSystem {
			// The run's system prompt is fixed above; client-sent system
			// messages are folded into the user transcript.
			history = append(history, llm.Message{Role: llm.RoleUser, Content: msg.Content})
			continue
		}
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return history
}

// retrievalTool exposes the retrieval pipeline to the model. The tool result
// is a JSON document list; a failed retrieve surfaces to the model as a
// structured error through the orchestrator.
func (ss *searchService) retrievalTool(stats *chatStats, sourceTag string) agent.Tool {
	return agent.Tool{
		Name:        "search_documents",
		Description: "Search the compliance document store. Returns the most relevant document fragments for a query.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query",
				},
				"match_count": map[string]interface{}{
					"type":        "integer",
					"description": "How many fragments to return (optional)",
				},
			},
			"required": []string{"query"},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			query, _ := args["query"].(string)
			cfg := retrieval.Config{SourceTag: sourceTag}
			if count, ok := args["match_count"].(float64); ok {
				cfg.MatchCount = int(count)
			}

			result, err := ss.retriever.Retrieve(ctx, query, cfg)
			if err != nil {
				return "", err
			}

			stats.mu.Lock()
			stats.intent = string(result.Analysis.Intent)
			stats.strategy = string(result.Analysis.Strategy)
			stats.degradedEmbeddings += result.DegradedEmbeddings
			stats.mu.Unlock()

			type fragment struct {
				Id          string  `json:"id"`
				Title       string  `json:"title,omitempty"`
				Content     string  `json:"content"`
				Similarity  float64 `json:"similarity"`
				SourceDocId string  `json:"source_doc_id"`
			}
			fragments := make([]fragment, len(result.Results))
			for i, res := range result.Results {
				fragments[i] = fragment{
					Id:          res.ID,
					Title:       res.Title,
					Content:     res.Content,
					Similarity:  res.Similarity,
					SourceDocId: res.SourceDocID,
				}
			}

			raw, err := json.Marshal(map[string]interface{}{"documents": fragments})
			if err != nil {
				return "", err
			}
			return string(raw), nil
		},
	}
}

// finishSearch persists the search log and announces the completed search.
// It runs after the stream already ended, so it uses its own context.
func (ss *searchService) finishSearch(searchId, query, answer string, stats *chatStats, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	searchLog := &entity.SearchLog{
		Id:                  uuid.New(),
		SearchId:            searchId,
		Query:               query,
		Answer:              answer,
		Intent:              stats.intent,
		Strategy:            stats.strategy,
		SearchTime:          time.Now().Add(-elapsed),
		ResponseTimeSeconds: elapsed.Seconds(),
		TokenSize:           len(answer) / 4, // rough chars-per-token estimate
		DegradedEmbeddings:  stats.degradedEmbeddings,
	}

	uow := ss.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SearchLogRepository().Create(ctx, searchLog); err != nil {
		ss.log.Error("Search", "Failed to persist search log", map[string]interface{}{
			"search_id": searchId,
			"error":     err.Error(),
		})
	}

	// Announced through NATS; the notifier relays the event to the hub.
	if ss.eventBus != nil {
		if err := ss.eventBus.Publish(ctx, events.NewSearchCompletedEvent(searchId, query, elapsed.Seconds())); err != nil {
			ss.log.Warn("Search", "Failed to publish search event", map[string]interface{}{
				"search_id": searchId,
				"error":     err.Error(),
			})
		}
	}
}

func lastUserMessage(messages []dto.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}
