package agent

// EventType discriminates the entries of a run's event stream.
type EventType string

const (
	// EventTextDelta carries a fragment of the model's answer text.
	EventTextDelta EventType = "text_delta"
	// EventToolCall announces that a tool is about to be executed.
	EventToolCall EventType = "tool_call"
	// EventToolResult carries the payload a tool returned (or its error form).
	EventToolResult EventType = "tool_result"
	// EventDone terminates a successful run. Answer holds the full final text.
	EventDone EventType = "done"
	// EventError terminates a failed run.
	EventError EventType = "error"
)

// Event is one entry in the stream returned by Run. Exactly one terminal
// event (done or error) is emitted, after which the channel is closed.
type Event struct {
	Type EventType

	Delta  string
	Answer string

	ToolName   string
	ToolArgs   map[string]interface{}
	ToolResult string

	Err error
}
