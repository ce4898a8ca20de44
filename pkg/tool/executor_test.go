package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type blockingTool struct {
	BaseTool
}

func (b *blockingTool) Execute(ctx context.Context, _ map[string]any, _ *ToolContext) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestExecutor_Execute(t *testing.T) {
	caller := &stubCaller{out: "42"}
	exec := NewExecutor(ExecutorConfig{})

	res := exec.Execute(context.Background(), &ExecuteRequest{Tool: NewRemote("answer", "", caller)})
	assert.True(t, res.Success)
	assert.Equal(t, "42", res.Output)
	assert.NoError(t, res.Error)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Equal(t, []string{"answer"}, caller.calls)
}

func TestExecutor_ToolError(t *testing.T) {
	boom := errors.New("boom")
	exec := NewExecutor(ExecutorConfig{})

	res := exec.Execute(context.Background(), &ExecuteRequest{Tool: NewRemote("x", "", &stubCaller{err: boom})})
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Error, boom)
}

func TestExecutor_Timeout(t *testing.T) {
	tests := []struct {
		name     string
		toolTime time.Duration
		override time.Duration
	}{
		{name: "tool timeout", toolTime: 10 * time.Millisecond},
		{name: "request override", toolTime: time.Hour, override: 10 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bt := &blockingTool{BaseTool: NewBaseTool("slow", "")}
			bt.TimeoutVal = tt.toolTime

			exec := NewExecutor(ExecutorConfig{DefaultTimeout: time.Hour})
			res := exec.Execute(context.Background(), &ExecuteRequest{Tool: bt, TimeoutOverride: tt.override})
			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Error, context.DeadlineExceeded)
			assert.Less(t, res.Duration, time.Minute)
		})
	}
}
