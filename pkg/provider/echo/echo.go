package echo

import (
	"context"
	"strings"

	"alphaagent/pkg/provider"
	"alphaagent/pkg/types"
)

// ChatModel is a deterministic offline provider useful for smoke runs.
// It never requests tools; it answers with the last user text it was given.
type ChatModel struct {
	Prefix string
}

// New returns a new echo provider.
func New(prefix string) *ChatModel {
	return &ChatModel{Prefix: prefix}
}

func (p *ChatModel) Name() string {
	if p.Prefix == "" {
		return "echo"
	}
	return "echo-" + strings.ReplaceAll(p.Prefix, " ", "_")
}

// Generate implements provider.ChatModel
func (p *ChatModel) Generate(ctx context.Context, req provider.Request) (*types.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &provider.Error{Provider: p.Name(), Message: "canceled", Err: err}
	}

	var sb strings.Builder
	if p.Prefix != "" {
		sb.WriteString(strings.TrimSpace(p.Prefix))
		sb.WriteString(" ")
	}
	for i := len(req.Contents) - 1; i >= 0; i-- {
		if req.Contents[i].Role != types.RoleUser {
			continue
		}
		if text, ok := req.Contents[i].FirstText(); ok {
			sb.WriteString(text)
			break
		}
	}

	reply := sb.String()
	return &types.ChatResponse{
		Content:      types.Content{Role: types.RoleModel, Parts: []types.Part{types.Text(reply)}},
		FinishReason: "stop",
		Usage: types.Usage{
			PromptTokens:     len(reply),
			CompletionTokens: len(reply),
			TotalTokens:      len(reply) * 2,
		},
	}, nil
}

var _ provider.ChatModel = (*ChatModel)(nil)
