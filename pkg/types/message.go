package types

// Role identifies who authored a turn in the conversation.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"` // Set by backends that track call ids (OpenAI-compatible)
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Part is an atomic content unit within a turn.
// Exactly one of Text, FunctionCall or FunctionResponse is expected to be set.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`

	// ThoughtSignature is opaque model state that must be echoed back unchanged.
	ThoughtSignature string `json:"thoughtSignature,omitempty"`
}

// Content is a single conversation turn.
type Content struct {
	Role  Role   `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Text builds a plain text part.
func Text(s string) Part {
	return Part{Text: s}
}

// NewUserText returns a user turn holding a single text part.
func NewUserText(s string) Content {
	return Content{Role: RoleUser, Parts: []Part{Text(s)}}
}

// FunctionResponsePart wraps a tool output the way the model expects to read it back.
func FunctionResponsePart(call FunctionCall, output string) Part {
	return Part{FunctionResponse: &FunctionResponse{
		ID:   call.ID,
		Name: call.Name,
		Response: map[string]any{
			"name":    call.Name,
			"content": map[string]any{"output": output},
		},
	}}
}

// FunctionCalls returns the tool calls in the turn, in order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// FirstText returns the first non-empty text part.
func (c Content) FirstText() (string, bool) {
	for _, p := range c.Parts {
		if p.Text != "" {
			return p.Text, true
		}
	}
	return "", false
}

// FunctionDeclaration describes a tool advertised to the model.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON Schema
}

// Usage represents token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse represents the full response from a ChatModel.
type ChatResponse struct {
	Content      Content
	FinishReason string
	Usage        Usage
}
