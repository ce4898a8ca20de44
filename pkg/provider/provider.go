package provider

import (
	"context"

	"alphaagent/pkg/types"
)

// Request is everything a backend needs to produce the next model turn.
type Request struct {
	SystemInstruction string
	Tools             []types.FunctionDeclaration
	Contents          []types.Content
}

// ChatModel defines the interface for interacting with chat LLMs.
type ChatModel interface {
	// Name returns the provider name (e.g., "proxy", "gemini").
	Name() string

	// Generate sends the full conversation and returns the next model turn.
	// Failures are reported as *Error so callers can branch on Kind.
	Generate(ctx context.Context, req Request) (*types.ChatResponse, error)
}
