package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"alphaagent/pkg/telemetry"
)

// Client calls tools on a single oracle node via POST {base}/message.
type Client struct {
	baseURL string
	http    *http.Client
	lastID  atomic.Int64
}

// NewClient wires a client for baseURL. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
	c.lastID.Store(time.Now().UnixMilli())
	return c
}

// BaseURL returns the node this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CallTool invokes name with args and returns the text of the first content item.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (_ string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "oracle.tools_call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tool.name", name),
			attribute.String("oracle.node", c.baseURL),
		),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(Request{
		JSONRPC: jsonRPCVersion,
		ID:      c.nextID(),
		Method:  methodToolCall,
		Params:  ToolCallParams{Name: name, Arguments: args},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode == http.StatusPaymentRequired {
		return "", ErrPaymentRequired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var decoded Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", decoded.Error
	}
	if decoded.Result == nil || len(decoded.Result.Content) == 0 {
		return "", ErrEmptyResult
	}
	return decoded.Result.Content[0].Text, nil
}

// nextID returns a strictly increasing request id.
func (c *Client) nextID() int64 {
	return c.lastID.Add(1)
}
