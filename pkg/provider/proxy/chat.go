package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"alphaagent/pkg/provider"
	"alphaagent/pkg/telemetry"
	"alphaagent/pkg/types"
)

// Config contains the proxy endpoint and credential.
type Config struct {
	URL        string // Full endpoint, e.g. https://node/proxy/gemini
	APIKey     string
	HeaderName string // Defaults to X-Gemini-Key
	HTTPClient *http.Client
}

// ChatModel implements provider.ChatModel against a Gemini generateContent proxy.
type ChatModel struct {
	url        string
	apiKey     string
	headerName string
	client     *http.Client
}

const (
	defaultHeaderName = "X-Gemini-Key"
	providerName      = "proxy"

	// InvalidJSONMessage is reported when the proxy body is not JSON.
	InvalidJSONMessage = "Invalid JSON from Gemini Proxy. Upstream failure."
)

// NewChatModel builds a proxy-backed chat provider.
func NewChatModel(cfg Config) (*ChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("proxy url is required")
	}

	header := cfg.HeaderName
	if strings.TrimSpace(header) == "" {
		header = defaultHeaderName
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &ChatModel{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		headerName: header,
		client:     client,
	}, nil
}

func (m *ChatModel) Name() string {
	return providerName
}

// Wire format of the generateContent request/response.

type generateRequest struct {
	SystemInstruction *types.Content  `json:"system_instruction,omitempty"`
	Tools             []toolBlock     `json:"tools,omitempty"`
	Contents          []types.Content `json:"contents"`
}

type toolBlock struct {
	FunctionDeclarations []types.FunctionDeclaration `json:"functionDeclarations"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type candidate struct {
	Content      *types.Content `json:"content"`
	FinishReason string         `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type generateResponse struct {
	Error         *apiError      `json:"error"`
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

// Generate implements provider.ChatModel.Generate
func (m *ChatModel) Generate(ctx context.Context, req provider.Request) (_ *types.ChatResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.proxy.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", providerName),
			attribute.Int("llm.contents_count", len(req.Contents)),
			attribute.Int("llm.tools_count", len(req.Tools)),
		),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, &provider.Error{Provider: providerName, Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, &provider.Error{Provider: providerName, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(m.headerName, m.apiKey)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, &provider.Error{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.Error{Provider: providerName, Message: "read response", Err: err}
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// A throttling gateway may answer 429 with an HTML page.
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &provider.Error{Provider: providerName, Kind: provider.KindRateLimited, Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, &provider.Error{Provider: providerName, Kind: provider.KindInvalid, Message: InvalidJSONMessage, Err: err}
	}

	if e := decoded.Error; e != nil {
		return nil, &provider.Error{
			Provider: providerName,
			Kind:     provider.Classify(e.Code, e.Status, e.Message),
			Code:     e.Code,
			Status:   e.Status,
			Message:  e.Message,
		}
	}

	if len(decoded.Candidates) == 0 || decoded.Candidates[0].Content == nil {
		return nil, &provider.Error{Provider: providerName, Code: resp.StatusCode, Message: "no candidates returned"}
	}

	return toChatResponse(decoded), nil
}

// Helpers

func buildRequest(req provider.Request) generateRequest {
	out := generateRequest{Contents: req.Contents}
	if out.Contents == nil {
		out.Contents = []types.Content{}
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		out.SystemInstruction = &types.Content{Parts: []types.Part{types.Text(req.SystemInstruction)}}
	}
	if len(req.Tools) > 0 {
		out.Tools = []toolBlock{{FunctionDeclarations: req.Tools}}
	}
	return out
}

func toChatResponse(resp generateResponse) *types.ChatResponse {
	cand := resp.Candidates[0]
	content := *cand.Content
	if content.Role == "" {
		content.Role = types.RoleModel
	}

	out := &types.ChatResponse{
		Content:      content,
		FinishReason: strings.ToLower(cand.FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = types.Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return out
}

// Ensure interface compliance
var _ provider.ChatModel = (*ChatModel)(nil)
