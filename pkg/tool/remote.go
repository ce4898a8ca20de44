package tool

import (
	"context"
	"fmt"
)

// Caller performs a remote tools/call. *oracle.Client satisfies it.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Remote is a tool whose implementation lives on an oracle node.
// Arguments are forwarded unchanged.
type Remote struct {
	BaseTool
	caller Caller
}

// NewRemote binds a tool name to the node that serves it.
func NewRemote(name, description string, caller Caller) *Remote {
	return &Remote{
		BaseTool: NewBaseTool(name, description),
		caller:   caller,
	}
}

// Execute forwards the call to the node.
func (r *Remote) Execute(ctx context.Context, input map[string]any, tc *ToolContext) (string, error) {
	if r.caller == nil {
		return "", fmt.Errorf("tool %s has no node", r.Name())
	}
	return r.caller.CallTool(ctx, r.Name(), input)
}

// WithArgs sets the input schema from an argument struct.
func (r *Remote) WithArgs(args any) *Remote {
	r.SchemaVal = GenerateSchema(args)
	return r
}
