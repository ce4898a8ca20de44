package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// JSONParser parses JSON output into a value of type T.
type JSONParser[T any] struct{}

// NewJSONParser creates a new JSON parser.
func NewJSONParser[T any]() *JSONParser[T] {
	return &JSONParser[T]{}
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?(.*?)```")

// Parse extracts and decodes JSON from text. Markdown code fences and prose
// around a single object or array are tolerated.
func (p *JSONParser[T]) Parse(text string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(cleanJSON(text)), &out); err != nil {
		return out, fmt.Errorf("parse json %q: %w", truncate(text, 120), err)
	}
	return out, nil
}

// ParseArgs decodes tool-call arguments; blank input yields an empty map.
func ParseArgs(text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return map[string]any{}, nil
	}
	args, err := NewJSONParser[map[string]any]().Parse(text)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if json.Valid([]byte(text)) {
		return text
	}
	return outermostSpan(text)
}

// outermostSpan returns text from the first opening brace or bracket to the
// last matching closer, or text unchanged when there is none.
func outermostSpan(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return text
	}
	return text[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
