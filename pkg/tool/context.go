package tool

import (
	"log/slog"
)

// ToolContext carries run metadata into tool execution.
type ToolContext struct {
	RunID string
	Step  int // Driver step that requested the call

	logger *slog.Logger
}

// Option configures a ToolContext.
type Option func(*ToolContext)

func NewToolContext(opts ...Option) *ToolContext {
	tc := &ToolContext{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// Logger returns the configured logger tagged with the step.
// The run id is carried by the logger the driver supplies.
func (tc *ToolContext) Logger() *slog.Logger {
	return tc.logger.With("step", tc.Step)
}

func WithRunID(id string) Option {
	return func(tc *ToolContext) { tc.RunID = id }
}

func WithStep(step int) Option {
	return func(tc *ToolContext) { tc.Step = step }
}

func WithLogger(l *slog.Logger) Option {
	return func(tc *ToolContext) {
		if l != nil {
			tc.logger = l
		}
	}
}
