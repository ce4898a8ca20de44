package tool

import (
	"time"
)

const defaultToolTimeout = 30 * time.Second

// BaseTool implements the descriptive half of Tool.
// Embed this struct and provide Execute.
type BaseTool struct {
	NameVal    string
	DescVal    string
	SchemaVal  map[string]any
	TimeoutVal time.Duration
}

func NewBaseTool(name, desc string) BaseTool {
	return BaseTool{
		NameVal:    name,
		DescVal:    desc,
		SchemaVal:  map[string]any{"type": "object", "properties": map[string]any{}},
		TimeoutVal: defaultToolTimeout,
	}
}

func (b *BaseTool) Name() string                { return b.NameVal }
func (b *BaseTool) Description() string         { return b.DescVal }
func (b *BaseTool) InputSchema() map[string]any { return b.SchemaVal }
func (b *BaseTool) Timeout() time.Duration      { return b.TimeoutVal }
