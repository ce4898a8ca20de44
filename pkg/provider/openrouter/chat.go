package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"alphaagent/pkg/parser"
	"alphaagent/pkg/provider"
	"alphaagent/pkg/telemetry"
	"alphaagent/pkg/types"
)

// Config contains OpenRouter credential and runtime options.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPClient  *http.Client
	Temperature float64 // Default temperature
	Referer     string  // Optional: HTTP-Referer header required by OpenRouter when set in dashboard
	AppName     string  // Optional: X-Title header recommended by OpenRouter
}

// ChatModel implements provider.ChatModel using OpenRouter's OpenAI-compatible API.
type ChatModel struct {
	client             *goopenai.Client
	defaultModel       string
	defaultTemperature float64
}

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1"
	defaultTemperature = 0.7
	defaultModel       = "openrouter/auto"
	refererHeaderKey   = "HTTP-Referer"
	appNameHeaderKey   = "X-Title"
	providerName       = "openrouter"
)

// NewChatModel builds a chat completion provider for OpenRouter.
func NewChatModel(cfg Config) (*ChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = defaultBaseURL
	if strings.TrimSpace(cfg.BaseURL) != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	headers := map[string]string{}
	if strings.TrimSpace(cfg.Referer) != "" {
		headers[refererHeaderKey] = cfg.Referer
	}
	if strings.TrimSpace(cfg.AppName) != "" {
		headers[appNameHeaderKey] = cfg.AppName
	}
	if cfg.HTTPClient != nil {
		apiCfg.HTTPClient = cfg.HTTPClient
	}
	if len(headers) > 0 {
		apiCfg.HTTPClient = withHeaders(cfg.HTTPClient, headers)
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
		client:             goopenai.NewClientWithConfig(apiCfg),
		defaultModel:       modelName,
		defaultTemperature: temp,
	}, nil
}

func (m *ChatModel) Name() string {
	return providerName
}

func (m *ChatModel) prepareRequest(req provider.Request) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Contents)+1)
	if strings.TrimSpace(req.SystemInstruction) != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	msgs = append(msgs, convertContents(req.Contents)...)

	out := goopenai.ChatCompletionRequest{
		Model:       m.defaultModel,
		Messages:    msgs,
		Temperature: float32(m.defaultTemperature),
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]goopenai.Tool, len(req.Tools))
		for i, t := range req.Tools {
			out.Tools[i] = goopenai.Tool{
				Type: goopenai.ToolTypeFunction,
				Function: &goopenai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			}
		}
	}
	return out
}

// Generate implements provider.ChatModel.Generate
func (m *ChatModel) Generate(ctx context.Context, req provider.Request) (_ *types.ChatResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.openrouter.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", providerName),
			attribute.String("llm.model", m.defaultModel),
			attribute.Int("llm.tools_count", len(req.Tools)),
		),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	resp, err := m.client.CreateChatCompletion(ctx, m.prepareRequest(req))
	if err != nil {
		return nil, classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &provider.Error{Provider: providerName, Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	content := types.Content{Role: types.RoleModel}
	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, types.Text(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		content.Parts = append(content.Parts, types.Part{FunctionCall: convertFromOpenAIToolCall(tc)})
	}

	return &types.ChatResponse{
		Content:      content,
		FinishReason: string(choice.FinishReason),
		Usage: types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Helpers

type headerRoundTripper struct {
	headers map[string]string
	base    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range h.headers {
		if strings.TrimSpace(v) == "" {
			continue
		}
		req.Header.Set(k, v)
	}
	return h.base.RoundTrip(req)
}

// withHeaders wraps the provided HTTP client (or default) to inject headers.
func withHeaders(client *http.Client, headers map[string]string) *http.Client {
	baseClient := client
	if baseClient == nil {
		baseClient = &http.Client{}
	}

	clone := *baseClient
	baseTransport := baseClient.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	clone.Transport = &headerRoundTripper{
		headers: headers,
		base:    baseTransport,
	}

	return &clone
}

// convertContents maps Gemini-shaped turns onto chat completion messages.
// Function responses without an id are paired positionally with the calls of
// the preceding model turn.
func convertContents(turns []types.Content) []goopenai.ChatCompletionMessage {
	var (
		out     []goopenai.ChatCompletionMessage
		pending []string
	)
	for ti, turn := range turns {
		var texts []string
		switch turn.Role {
		case types.RoleModel:
			msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant}
			pending = pending[:0]
			for pi, p := range turn.Parts {
				if p.FunctionCall == nil {
					if p.Text != "" {
						texts = append(texts, p.Text)
					}
					continue
				}
				id := p.FunctionCall.ID
				if id == "" {
					id = fmt.Sprintf("call_%d_%d", ti, pi)
				}
				pending = append(pending, id)
				msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
					ID:   id,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      p.FunctionCall.Name,
						Arguments: encodeArgs(p.FunctionCall.Args),
					},
				})
			}
			msg.Content = strings.Join(texts, "\n")
			out = append(out, msg)
		default:
			for _, p := range turn.Parts {
				if p.FunctionResponse == nil {
					if p.Text != "" {
						texts = append(texts, p.Text)
					}
					continue
				}
				id := p.FunctionResponse.ID
				if id == "" && len(pending) > 0 {
					id, pending = pending[0], pending[1:]
				}
				out = append(out, goopenai.ChatCompletionMessage{
					Role:       goopenai.ChatMessageRoleTool,
					ToolCallID: id,
					Name:       p.FunctionResponse.Name,
					Content:    encodeArgs(p.FunctionResponse.Response),
				})
			}
			if len(texts) > 0 {
				out = append(out, goopenai.ChatCompletionMessage{
					Role:    goopenai.ChatMessageRoleUser,
					Content: strings.Join(texts, "\n"),
				})
			}
		}
	}
	return out
}

func encodeArgs(v map[string]any) string {
	if v == nil {
		return "{}"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func convertFromOpenAIToolCall(tc goopenai.ToolCall) *types.FunctionCall {
	id := tc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	args, err := parser.ParseArgs(tc.Function.Arguments)
	if err != nil {
		// Hand the raw text through rather than dropping the call.
		args = map[string]any{"raw": tc.Function.Arguments}
	}
	return &types.FunctionCall{ID: id, Name: tc.Function.Name, Args: args}
}

// classifyError converts client failures into *provider.Error.
func classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &provider.Error{
			Provider: providerName,
			Kind:     provider.Classify(apiErr.HTTPStatusCode, apiErr.Type, apiErr.Message),
			Code:     apiErr.HTTPStatusCode,
			Status:   apiErr.Type,
			Message:  apiErr.Message,
			Err:      err,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &provider.Error{
			Provider: providerName,
			Kind:     provider.Classify(reqErr.HTTPStatusCode, "", ""),
			Code:     reqErr.HTTPStatusCode,
			Message:  "request failed",
			Err:      err,
		}
	}
	return &provider.Error{Provider: providerName, Message: "request failed", Err: err}
}

// Ensure interface compliance
var _ provider.ChatModel = (*ChatModel)(nil)
