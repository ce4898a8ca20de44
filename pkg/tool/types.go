package tool

import (
	"context"
	"time"
)

// Tool is a named capability the model may request.
type Tool interface {
	Name() string
	Description() string

	// InputSchema is the JSON Schema advertised as the call's parameters.
	InputSchema() map[string]any

	// Execute performs the call and returns the text handed back to the model.
	Execute(ctx context.Context, input map[string]any, tc *ToolContext) (string, error)
}

// TimedTool carries its own deadline. Zero means the executor default.
type TimedTool interface {
	Tool
	Timeout() time.Duration
}
