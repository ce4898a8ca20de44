package memory

import (
	"fmt"
	"strings"
	"sync"

	"alphaagent/pkg/types"
)

// Memory defines how conversation state is stored.
// Turns are only ever appended; nothing is edited or removed.
type Memory interface {
	Append(turns ...types.Content)
	History() []types.Content
	Len() int
}

// InMemory is a simple thread-safe memory backend.
type InMemory struct {
	mu    sync.RWMutex
	turns []types.Content
}

// NewInMemory creates an empty memory store.
func NewInMemory() *InMemory {
	return &InMemory{turns: make([]types.Content, 0, 8)}
}

// Append adds turns to the end of the conversation.
func (m *InMemory) Append(turns ...types.Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turns...)
}

// History returns a copy of the conversation so callers cannot mutate internal state.
func (m *InMemory) History() []types.Content {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Content, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len reports the number of turns recorded so far.
func (m *InMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// FormatHistory renders a readable transcript, one line per part.
func FormatHistory(turns []types.Content) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		for _, p := range turn.Parts {
			lines = append(lines, string(turn.Role)+": "+describePart(p))
		}
	}
	return strings.Join(lines, "\n")
}

func describePart(p types.Part) string {
	switch {
	case p.FunctionCall != nil:
		return fmt.Sprintf("call %s(%v)", p.FunctionCall.Name, p.FunctionCall.Args)
	case p.FunctionResponse != nil:
		return fmt.Sprintf("result %s %v", p.FunctionResponse.Name, p.FunctionResponse.Response["content"])
	default:
		return p.Text
	}
}
