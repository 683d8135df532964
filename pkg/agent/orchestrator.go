package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"compliance-assistant-be/internal/pkg/logger"
	"compliance-assistant-be/pkg/llm"

	"golang.org/x/sync/errgroup"
)

const DefaultMaxSteps = 5

// Orchestrator drives the model/tool loop for one conversation turn. Each
// step streams one model response; if the model requests tools they are all
// executed concurrently, their results are appended to the history as tool
// messages, and the loop re-enters the model. The loop is bounded by
// maxSteps; once the budget is spent the text accumulated so far becomes the
// final answer. A tool failure is surfaced to the model as a structured error
// result; a model failure is fatal and terminates the run.
type Orchestrator struct {
	provider llm.LLMProvider
	log      logger.ILogger
	maxSteps int
}

func NewOrchestrator(provider llm.LLMProvider, log logger.ILogger, maxSteps int) *Orchestrator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Orchestrator{
		provider: provider,
		log:      log,
		maxSteps: maxSteps,
	}
}

// Run starts the loop and returns its event stream. The stream ends with a
// done or error event and the channel is closed. Cancelling ctx abandons the
// run; partial output already emitted is not retracted.
func (o *Orchestrator) Run(ctx context.Context, history []llm.Message, tools []Tool, opts ...llm.Option) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		o.run(ctx, out, history, tools, opts...)
	}()
	return out
}

func (o *Orchestrator) run(ctx context.Context, out chan<- Event, history []llm.Message, tools []Tool, opts ...llm.Option) {
	specs := toolSpecs(tools)

	var answer strings.Builder

	for step := 0; step < o.maxSteps; step++ {
		// 1. Stream one model response
		stream, err := o.provider.ChatStream(ctx, history, specs, opts...)
		if err != nil {
			o.emit(ctx, out, Event{Type: EventError, Err: fmt.Errorf("model request failed: %w", err)})
			return
		}

		var stepText strings.Builder
		var calls []llm.ToolCall

		for chunk := range stream {
			if chunk.Err != nil {
				o.emit(ctx, out, Event{Type: EventError, Err: fmt.Errorf("model stream failed: %w", chunk.Err)})
				return
			}
			if chunk.Delta != "" {
				stepText.WriteString(chunk.Delta)
				answer.WriteString(chunk.Delta)
				if !o.emit(ctx, out, Event{Type: EventTextDelta, Delta: chunk.Delta}) {
					return
				}
			}
			calls = append(calls, chunk.ToolCalls...)
		}
		if ctx.Err() != nil {
			return
		}

		// 2. No tool requests means the model produced its final answer
		if len(calls) == 0 {
			o.emit(ctx, out, Event{Type: EventDone, Answer: answer.String()})
			return
		}

		history = append(history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   stepText.String(),
			ToolCalls: calls,
		})

		// 3. Execute every requested tool concurrently, then feed results
		// back in request order so the transcript stays deterministic.
		for _, call := range calls {
			if !o.emit(ctx, out, Event{Type: EventToolCall, ToolName: call.Name, ToolArgs: call.Arguments}) {
				return
			}
		}

		results := o.executeAll(ctx, tools, calls)

		for i, call := range calls {
			if !o.emit(ctx, out, Event{Type: EventToolResult, ToolName: call.Name, ToolResult: results[i]}) {
				return
			}
			history = append(history, llm.Message{
				Role:     llm.RoleTool,
				ToolName: call.Name,
				Content:  results[i],
			})
		}
	}

	// Step budget exhausted: stop calling the model and settle for whatever
	// text has streamed so far as the final answer.
	o.log.Warn("Agent", "Step budget exhausted, closing with accumulated answer", map[string]interface{}{
		"max_steps": o.maxSteps,
	})
	o.emit(ctx, out, Event{Type: EventDone, Answer: answer.String()})
}

func (o *Orchestrator) executeAll(ctx context.Context, tools []Tool, calls []llm.ToolCall) []string {
	results := make([]string, len(calls))

	var mu sync.Mutex
	g, execCtx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			result := o.execute(execCtx, tools, call)
			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) execute(ctx context.Context, tools []Tool, call llm.ToolCall) string {
	tool, found := findTool(tools, call.Name)
	if !found {
		o.log.Warn("Agent", "Model requested unknown tool", map[string]interface{}{
			"tool": call.Name,
		})
		return errorResult(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		o.log.Warn("Agent", "Tool execution failed", map[string]interface{}{
			"tool":  call.Name,
			"error": err.Error(),
		})
		return errorResult(err.Error())
	}
	return result
}

func (o *Orchestrator) emit(ctx context.Context, out chan<- Event, event Event) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
