package llm

import (
	"context"
)

// Standard roles used across providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message in a provider-agnostic format.
// The conversation is an append-only log; tool results are appended as
// distinct RoleTool messages rather than mutating earlier entries.
type Message struct {
	Role    string
	Content string

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall

	// ToolName is set on tool result messages.
	ToolName string
}

// ToolCall is a model-requested invocation of a named tool.
type ToolCall struct {
	Name      string
	Arguments map[string]interface{}
}

// ToolSpec describes a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema for the arguments
}

// StreamChunk is one unit of streamed model output. Either Delta carries a
// text fragment, or ToolCalls carries requested invocations. Err terminates
// the stream; the channel is closed after the final chunk.
type StreamChunk struct {
	Delta     string
	ToolCalls []ToolCall
	Done      bool
	Err       error
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider defines the contract for any LLM backend.
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the full response.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method).
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// ChatStream streams the model's response. Tools may be nil. The returned
	// channel is closed when the response is complete, the model fails, or
	// ctx is cancelled.
	ChatStream(ctx context.Context, history []Message, tools []ToolSpec, options ...Option) (<-chan StreamChunk, error)
}
