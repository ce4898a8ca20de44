package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	jsonRPCVersion = "2.0"
	methodToolCall = "tools/call"
)

// Request models a JSON-RPC 2.0 request accepted by oracle nodes.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response models a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  *ToolCallResult `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// ToolCallParams drives tools/call requests.
type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCallResult is the payload of a successful tools/call.
type ToolCallResult struct {
	Content []ContentItem `json:"content"`
}

// ContentItem is one entry of a tool result.
type ContentItem struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

var (
	// ErrPaymentRequired is returned when a node answers HTTP 402.
	ErrPaymentRequired = errors.New("402 Payment Required: free limit exceeded")
	// ErrEmptyResult is returned when a node answers without any content.
	ErrEmptyResult = errors.New("tool result has no content")
)

// RPCError represents an error payload inside the JSON-RPC envelope.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = "Unknown tool error"
	}
	return fmt.Sprintf("oracle error %d: %s", e.Code, msg)
}

// StatusError reports a non-2xx HTTP status from a node.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("node error: %s", e.Status)
}

// Is lets errors.Is(err, ErrPaymentRequired) match a 402 StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrPaymentRequired && e.StatusCode == http.StatusPaymentRequired
}
