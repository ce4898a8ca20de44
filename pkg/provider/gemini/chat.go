package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"alphaagent/pkg/provider"
	"alphaagent/pkg/telemetry"
	"alphaagent/pkg/types"
)

// Config contains Gemini credential and runtime options.
type Config struct {
	APIKey      string
	Model       string // e.g., "gemini-1.5-flash"
	Temperature float64
}

// ChatModel implements provider.ChatModel using Google Gemini.
type ChatModel struct {
	client             *genai.Client
	defaultModel       string
	defaultTemperature float64
}

const (
	defaultModel       = "gemini-1.5-flash"
	defaultTemperature = 0.5
	providerName       = "gemini"
)

// NewChatModel builds a Gemini chat provider.
func NewChatModel(ctx context.Context, cfg Config) (*ChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	modelName := cfg.Model
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultModel
	}

	temp := cfg.Temperature
	if temp == 0 {
		temp = defaultTemperature
	}

	return &ChatModel{
		client:             client,
		defaultModel:       modelName,
		defaultTemperature: temp,
	}, nil
}

func (m *ChatModel) Name() string {
	return providerName
}

// Close releases the underlying client.
func (m *ChatModel) Close() error {
	return m.client.Close()
}

// Generate implements provider.ChatModel.Generate
func (m *ChatModel) Generate(ctx context.Context, req provider.Request) (_ *types.ChatResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.gemini.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", providerName),
			attribute.String("llm.model", m.defaultModel),
			attribute.Int("llm.contents_count", len(req.Contents)),
		),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if len(req.Contents) == 0 {
		return nil, &provider.Error{Provider: providerName, Message: "no messages to send"}
	}

	cs := m.prepareSession(req)

	// History holds every turn but the last; the last turn's parts drive SendMessage.
	last := req.Contents[len(req.Contents)-1]
	resp, err := cs.SendMessage(ctx, toGeminiParts(last.Parts)...)
	if err != nil {
		return nil, classifyError(err)
	}

	return toChatResponse(resp)
}

// prepareSession creates a ChatSession with history populated.
func (m *ChatModel) prepareSession(req provider.Request) *genai.ChatSession {
	gm := m.client.GenerativeModel(m.defaultModel)
	gm.SetTemperature(float32(m.defaultTemperature))

	if strings.TrimSpace(req.SystemInstruction) != "" {
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}
	if len(req.Tools) > 0 {
		gm.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiDeclarations(req.Tools)}}
	}

	cs := gm.StartChat()
	history := req.Contents[:len(req.Contents)-1]
	cs.History = make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		cs.History = append(cs.History, &genai.Content{
			Role:  string(turn.Role),
			Parts: toGeminiParts(turn.Parts),
		})
	}
	return cs
}

// Helpers

func toGeminiParts(parts []types.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.FunctionCall != nil:
			out = append(out, genai.FunctionCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args})
		case p.FunctionResponse != nil:
			out = append(out, genai.FunctionResponse{Name: p.FunctionResponse.Name, Response: p.FunctionResponse.Response})
		case p.Text != "":
			out = append(out, genai.Text(p.Text))
		}
	}
	return out
}

func toGeminiDeclarations(decls []types.FunctionDeclaration) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, len(decls))
	for i, d := range decls {
		out[i] = &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toGeminiSchema(d.Parameters),
		}
	}
	return out
}

// toGeminiSchema converts a JSON-schema map into the SDK schema type.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{Type: toGeminiType(schema["type"])}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				out.Properties[name] = toGeminiSchema(sub)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = toGeminiSchema(items)
	}
	out.Required = stringList(schema["required"])
	out.Enum = stringList(schema["enum"])
	return out
}

func toGeminiType(v any) genai.Type {
	s, _ := v.(string)
	switch s {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func stringList(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, val := range vals {
			if s, ok := val.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toChatResponse(resp *genai.GenerateContentResponse) (*types.ChatResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &provider.Error{Provider: providerName, Message: "no candidates returned"}
	}

	cand := resp.Candidates[0]
	content := types.Content{Role: types.RoleModel}

	// A candidate can carry text and function calls side by side.
	for _, part := range cand.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			content.Parts = append(content.Parts, types.Text(string(p)))
		case genai.FunctionCall:
			content.Parts = append(content.Parts, types.Part{FunctionCall: &types.FunctionCall{Name: p.Name, Args: p.Args}})
		}
	}

	out := &types.ChatResponse{
		Content:      content,
		FinishReason: toFinishReason(cand.FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = types.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func toFinishReason(fr genai.FinishReason) string {
	switch fr {
	case genai.FinishReasonStop:
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonSafety:
		return "content_filter"
	default:
		return fmt.Sprintf("unknown:%d", fr)
	}
}

// classifyError converts SDK failures into *provider.Error.
func classifyError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &provider.Error{
			Provider: providerName,
			Kind:     provider.Classify(gerr.Code, "", gerr.Message),
			Code:     gerr.Code,
			Message:  gerr.Message,
			Err:      err,
		}
	}
	return &provider.Error{
		Provider: providerName,
		Kind:     provider.Classify(0, "", err.Error()),
		Message:  "generate content",
		Err:      err,
	}
}

// Ensure interface compliance
var _ provider.ChatModel = (*ChatModel)(nil)
