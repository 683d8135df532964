package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider plays back one prepared chunk script per ChatStream call
// and records the history it was given.
type scriptedProvider struct {
	mu        sync.Mutex
	scripts   [][]llm.StreamChunk
	histories [][]llm.Message
	streamErr error
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (p *scriptedProvider) ChatStream(ctx context.Context, history []llm.Message, tools []llm.ToolSpec, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.histories = append(p.histories, append([]llm.Message(nil), history...))

	if p.streamErr != nil {
		return nil, p.streamErr
	}
	if len(p.scripts) == 0 {
		return nil, errors.New("scripted provider: no more responses")
	}

	script := p.scripts[0]
	p.scripts = p.scripts[1:]

	out := make(chan llm.StreamChunk, len(script))
	for _, chunk := range script {
		out <- chunk
	}
	close(out)
	return out, nil
}

func collect(stream <-chan Event) []Event {
	var events []Event
	for event := range stream {
		events = append(events, event)
	}
	return events
}

func eventsOfType(events []Event, eventType EventType) []Event {
	var filtered []Event
	for _, event := range events {
		if event.Type == eventType {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

func TestRunPlainAnswer(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{
		{{Delta: "Hello "}, {Delta: "world", Done: true}},
	}}
	o := NewOrchestrator(provider, logger.NewNopLogger(), 3)

	events := collect(o.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil))

	deltas := eventsOfType(events, EventTextDelta)
	require.Len(t, deltas, 2)
	assert.Equal(t, "Hello ", deltas[0].Delta)
	assert.Equal(t, "world", deltas[1].Delta)

	final := events[len(events)-1]
	assert.Equal(t, EventDone, final.Type)
	assert.Equal(t, "Hello world", final.Answer)
}

func TestRunToolCallThenAnswer(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{
		{{ToolCalls: []llm.ToolCall{{Name: "search_documents", Arguments: map[string]interface{}{"query": "gdpr"}}}, Done: true}},
		{{Delta: "GDPR applies.", Done: true}},
	}}
	o := NewOrchestrator(provider, logger.NewNopLogger(), 3)

	var gotArgs map[string]interface{}
	tool := Tool{
		Name: "search_documents",
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			gotArgs = args
			return `{"documents":[]}`, nil
		},
	}

	events := collect(o.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "what is gdpr?"}}, []Tool{tool}))

	assert.Equal(t, map[string]interface{}{"query": "gdpr"}, gotArgs)

	calls := eventsOfType(events, EventToolCall)
	require.Len(t, calls, 1)
	assert.Equal(t, "search_documents", calls[0].ToolName)

	results := eventsOfType(events, EventToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, `{"documents":[]}`, results[0].ToolResult)

	final := events[len(events)-1]
	assert.Equal(t, EventDone, final.Type)
	assert.Equal(t, "GDPR applies.", final.Answer)

	// The second model call must see the assistant's tool request and the
	// tool result appended to the history.
	require.Len(t, provider.histories, 2)
	secondHistory := provider.histories[1]
	require.Len(t, secondHistory, 3)
	assert.Equal(t, llm.RoleAssistant, secondHistory[1].Role)
	require.Len(t, secondHistory[1].ToolCalls, 1)
	assert.Equal(t, llm.RoleTool, secondHistory[2].Role)
	assert.Equal(t, "search_documents", secondHistory[2].ToolName)
}

func TestRunExecutesToolsConcurrently(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{
		{{ToolCalls: []llm.ToolCall{
			{Name: "search_documents", Arguments: map[string]interface{}{"query": "economy of Japan"}},
			{Name: "search_documents", Arguments: map[string]interface{}{"query": "economy of Germany"}},
		}, Done: true}},
		{{Delta: "Comparison done.", Done: true}},
	}}
	o := NewOrchestrator(provider, logger.NewNopLogger(), 3)

	// Each execution waits for the other; this only terminates when both
	// tool calls really run at the same time.
	var arrivals int32
	barrier := make(chan struct{})
	tool := Tool{
		Name: "search_documents",
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			if atomic.AddInt32(&arrivals, 1) == 2 {
				close(barrier)
			}
			select {
			case <-barrier:
				return `{"documents":[]}`, nil
			case <-time.After(2 * time.Second):
				return "", errors.New("tool calls did not overlap")
			}
		},
	}

	events := collect(o.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "Compare the economies of Japan and Germany"}}, []Tool{tool}))

	results := eventsOfType(events, EventToolResult)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, `{"documents":[]}`, result.ToolResult)
	}
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestRunToolFailureIsIsolated(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{
		{{ToolCalls: []llm.ToolCall{{Name: "search_documents", Arguments: map[string]interface{}{"query": "x"}}}, Done: true}},
		{{Delta: "I could not find anything.", Done: true}},
	}}
	o := NewOrchestrator(provider, logger.NewNopLogger(), 3)

	tool := Tool{
		Name: "search_documents",
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "", errors.New("store unavailable")
		},
	}

	events := collect(o.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}}, []Tool{tool}))

	// The failure becomes a structured result the model can read
	results := eventsOfType(events, EventToolResult)
	require.Len(t, results, 1)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(results[0].ToolResult), &payload))
	assert.Equal(t, "store unavailable", payload["error"])

	// The run continues to a normal final answer
	assert.Equal(t, EventDone, events[len(events)-1].Type)
	assert.Empty(t, eventsOfType(events, EventError))
}

func TestRunUnknownTool(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{
		{{ToolCalls: []llm.ToolCall{{Name: "does_not_exist"}}, Done: true}},
		{{Delta: "ok", Done: true}},
	}}
	o := NewOrchestrator(provider, logger.NewNopLogger(), 3)

	events := collect(o.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}}, nil))

	results := eventsOfType(events, EventToolResult)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].ToolResult, "unknown tool")
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestRunModelFailureIsFatal(t *testing.T) {
	provider := &scriptedProvider{streamErr: errors.New("model down")}
	o := NewOrchestrator(provider, logger.NewNopLogger(), 3)

	events := collect(o.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}}, nil))

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.ErrorContains(t, events[0].Err, "model down")
}

func TestRunStreamErrorIsFatal(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{
		{{Delta: "partial "}, {Err: errors.New("connection reset")}},
	}}
	o := NewOrchestrator(provider, logger.NewNopLogger(), 3)

	events := collect(o.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}}, nil))

	final := events[len(events)-1]
	assert.Equal(t, EventError, final.Type)
	assert.ErrorContains(t, final.Err, "connection reset")
}

func TestRunStopsAtMaxSteps(t *testing.T) {
	// The model keeps requesting tools and never closes on its own
	loop := []llm.StreamChunk{
		{Delta: "partial answer "},
		{ToolCalls: []llm.ToolCall{{Name: "search_documents", Arguments: map[string]interface{}{"query": "x"}}}, Done: true},
	}
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{loop, loop, loop, loop}}
	o := NewOrchestrator(provider, logger.NewNopLogger(), 2)

	tool := Tool{
		Name: "search_documents",
		Execute: func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "{}", nil
		},
	}

	events := collect(o.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}}, []Tool{tool}))

	assert.Len(t, eventsOfType(events, EventToolCall), 2, "exactly maxSteps model rounds")

	// Exhausting the budget is a normal termination: the text streamed across
	// the rounds becomes the final answer.
	final := events[len(events)-1]
	assert.Equal(t, EventDone, final.Type)
	assert.Equal(t, "partial answer partial answer ", final.Answer)
	assert.Empty(t, eventsOfType(events, EventError))
}

func TestRunContextCancellation(t *testing.T) {
	provider := &scriptedProvider{scripts: [][]llm.StreamChunk{
		{{Delta: "a"}, {Delta: "b"}, {Delta: "c", Done: true}},
	}}
	o := NewOrchestrator(provider, logger.NewNopLogger(), 3)

	ctx, cancel := context.WithCancel(context.Background())
	stream := o.Run(ctx, []llm.Message{{Role: llm.RoleUser, Content: "q"}}, nil)

	// Read one event, then walk away; the run must terminate anyway.
	<-stream
	cancel()

	for range stream {
	}
}
