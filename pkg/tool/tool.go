package tool

import (
	"fmt"
	"strings"

	"alphaagent/pkg/types"
)

// Format renders a readable list for prompt injection or logs.
func Format(tools []Tool) string {
	if len(tools) == 0 {
		return "no tools available"
	}
	parts := make([]string, 0, len(tools))
	for _, t := range tools {
		parts = append(parts, fmt.Sprintf("- %s: %s", t.Name(), t.Description()))
	}
	return strings.Join(parts, "\n")
}

// ToDeclaration converts a Tool into the declaration advertised to the model.
func ToDeclaration(t Tool) types.FunctionDeclaration {
	return types.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.InputSchema(),
	}
}

// ToDeclarations converts a list of Tools to declarations, keeping order.
func ToDeclarations(tools []Tool) []types.FunctionDeclaration {
	res := make([]types.FunctionDeclaration, len(tools))
	for i, t := range tools {
		res[i] = ToDeclaration(t)
	}
	return res
}
