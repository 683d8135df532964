package agent

import (
	"context"
	"encoding/json"

	"compliance-assistant-be/pkg/llm"
)

// Tool is a capability the model may invoke during a run. Execute returns the
// payload that is fed back to the model as the tool result.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema for the arguments
	Execute     func(ctx context.Context, args map[string]interface{}) (string, error)
}

func toolSpecs(tools []Tool) []llm.ToolSpec {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]llm.ToolSpec, len(tools))
	for i, tool := range tools {
		specs[i] = llm.ToolSpec{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		}
	}
	return specs
}

func findTool(tools []Tool, name string) (Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}

// errorResult renders a failed tool execution as a structured payload the
// model can read and react to, instead of aborting the run.
func errorResult(message string) string {
	raw, _ := json.Marshal(map[string]string{"error": message})
	return string(raw)
}
