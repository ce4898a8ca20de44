package tool

import (
	"context"
	"time"
)

const defaultExecTimeout = 60 * time.Second

// ExecutorConfig controls how tools are executed.
type ExecutorConfig struct {
	DefaultTimeout time.Duration
}

// Executor runs one tool call at a time under a deadline.
type Executor struct {
	config ExecutorConfig
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultExecTimeout
	}
	return &Executor{config: cfg}
}

// ExecuteRequest describes a single tool invocation.
type ExecuteRequest struct {
	Tool    Tool
	Input   map[string]any
	Context *ToolContext

	TimeoutOverride time.Duration // Wins over the tool and executor timeouts when > 0
}

// ExecuteResult captures the output of a tool invocation.
type ExecuteResult struct {
	Success    bool
	Output     string
	Error      error
	Duration   time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
}

// Execute runs req.Tool once. Tool errors are reported in the result, never returned.
func (e *Executor) Execute(ctx context.Context, req *ExecuteRequest) *ExecuteResult {
	tc := req.Context
	if tc == nil {
		tc = NewToolContext()
	}
	input := req.Input
	if input == nil {
		input = map[string]any{}
	}
	timeout := e.timeoutFor(req)

	res := &ExecuteResult{StartedAt: time.Now()}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	res.Output, res.Error = req.Tool.Execute(execCtx, input, tc)
	cancel()

	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	res.Success = res.Error == nil

	tc.Logger().Debug("tool executed",
		"tool", req.Tool.Name(),
		"timeout", timeout,
		"duration", res.Duration,
		"success", res.Success,
	)
	return res
}

func (e *Executor) timeoutFor(req *ExecuteRequest) time.Duration {
	if req.TimeoutOverride > 0 {
		return req.TimeoutOverride
	}
	if tt, ok := req.Tool.(TimedTool); ok && tt.Timeout() > 0 {
		return tt.Timeout()
	}
	return e.config.DefaultTimeout
}
