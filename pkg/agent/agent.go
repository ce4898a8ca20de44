package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"alphaagent/pkg/memory"
	"alphaagent/pkg/prompt"
	"alphaagent/pkg/provider"
	"alphaagent/pkg/report"
	"alphaagent/pkg/retry"
	"alphaagent/pkg/telemetry"
	"alphaagent/pkg/tool"
	"alphaagent/pkg/types"
)

// ErrMaxSteps is returned by Run when the model keeps requesting tools past the step limit.
var ErrMaxSteps = errors.New("exceeded maximum driver steps")

const defaultMaxSteps = 25

// State is the driver's position in the conversation.
type State int

const (
	StateAwaitingModel State = iota
	StateToolPending
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateToolPending:
		return "TOOL_PENDING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Config describes how an Agent is assembled.
type Config struct {
	Provider     provider.ChatModel
	Registry     *tool.Registry
	Memory       memory.Memory
	SystemPrompt prompt.Template
	Vars         map[string]any // Substituted into SystemPrompt

	Retry     retry.Policy     // Zero value uses retry.DefaultPolicy
	Sleep     retry.Sleeper    // Nil uses retry.Sleep
	Decorator report.Decorator // Nil leaves the report unchanged

	MaxSteps    int
	ToolTimeout time.Duration

	Narrator io.Writer // Human-facing progress; nil discards
	Logger   *slog.Logger
	RunID    string
}

// Agent drives one conversation with a model until it answers without tool calls.
type Agent struct {
	provider   provider.ChatModel
	registry   *tool.Registry
	dispatcher *tool.Dispatcher
	memory     memory.Memory
	system     string
	retrier    retry.Retrier
	decorator  report.Decorator
	maxSteps   int
	narrator   io.Writer
	logger     *slog.Logger
	runID      string

	state  State
	step   int
	report string
}

// New builds an Agent and wires defaults.
func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = tool.NewRegistry()
	}
	mem := cfg.Memory
	if mem == nil {
		mem = memory.NewInMemory()
	}
	system := cfg.SystemPrompt
	if system.Text == "" {
		system = prompt.NewTemplate(prompt.DefaultSystemInstruction)
	}
	policy := cfg.Retry
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	narrator := cfg.Narrator
	if narrator == nil {
		narrator = io.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	a := &Agent{
		provider:   cfg.Provider,
		registry:   registry,
		dispatcher: tool.NewDispatcher(registry, nil).WithTimeout(cfg.ToolTimeout),
		memory:     mem,
		system:     system.Render(cfg.Vars),
		decorator:  cfg.Decorator,
		maxSteps:   maxSteps,
		narrator:   narrator,
		logger:     logger.With("run_id", runID, "provider", cfg.Provider.Name()),
		runID:      runID,
		state:      StateAwaitingModel,
	}
	a.retrier = retry.Retrier{
		Policy:    policy,
		Retryable: provider.IsRetryable,
		Sleep:     cfg.Sleep,
		OnRetry:   a.onRetry,
	}
	return a, nil
}

// Run seeds the conversation with input and drives it to a final report.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	a.memory.Append(types.NewUserText(input))

	for {
		if a.step >= a.maxSteps {
			return "", fmt.Errorf("%w (%d)", ErrMaxSteps, a.maxSteps)
		}
		done, err := a.ExecuteTurn(ctx)
		if err != nil {
			return "", err
		}
		if done {
			return a.report, nil
		}
	}
}

// ExecuteTurn sends the conversation to the model once, retrying rate limits,
// and handles the resulting turn. It reports true once a final answer is recorded.
func (a *Agent) ExecuteTurn(ctx context.Context) (done bool, err error) {
	if a.state == StateDone {
		return true, nil
	}
	a.step++
	ctx, span := telemetry.StartSpan(ctx, "agent.turn",
		trace.WithAttributes(attribute.String("run.id", a.runID), attribute.Int("agent.step", a.step)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	req := provider.Request{
		SystemInstruction: a.system,
		Tools:             a.registry.Declarations(),
		Contents:          a.memory.History(),
	}

	var resp *types.ChatResponse
	err = a.retrier.Do(ctx, func(ctx context.Context) error {
		r, err := a.provider.Generate(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		a.logger.Error("model request failed", "step", a.step, "kind", provider.KindOf(err).String(), "error", err)
		return false, fmt.Errorf("step %d: %w", a.step, err)
	}

	turn := resp.Content
	if turn.Role == "" {
		turn.Role = types.RoleModel
	}
	a.memory.Append(turn)

	calls := turn.FunctionCalls()
	a.logger.Debug("model turn",
		"step", a.step,
		"tool_calls", len(calls),
		"finish_reason", resp.FinishReason,
		"total_tokens", resp.Usage.TotalTokens,
	)

	if len(calls) == 0 {
		text, ok := turn.FirstText()
		a.report = report.Finalize(text, ok, a.decorator)
		a.state = StateDone
		return true, nil
	}

	a.state = StateToolPending
	tc := tool.NewToolContext(tool.WithRunID(a.runID), tool.WithStep(a.step), tool.WithLogger(a.logger))
	parts := make([]types.Part, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, a.dispatch(ctx, call, tc).Part())
	}
	a.memory.Append(types.Content{Role: types.RoleUser, Parts: parts})
	a.state = StateAwaitingModel

	if err := ctx.Err(); err != nil {
		return false, err
	}
	return false, nil
}

// Report returns the decorated final report, empty until the run is done.
func (a *Agent) Report() string {
	return a.report
}

// State returns the driver state.
func (a *Agent) State() State {
	return a.state
}

// Steps returns how many model turns have been requested.
func (a *Agent) Steps() int {
	return a.step
}

// History returns a copy of the conversation.
func (a *Agent) History() []types.Content {
	return a.memory.History()
}

// Helpers

func (a *Agent) dispatch(ctx context.Context, call types.FunctionCall, tc *tool.ToolContext) tool.Result {
	fmt.Fprintf(a.narrator, "\n🔍 Agent scanning: %s... ", call.Name)

	res := a.dispatcher.Dispatch(ctx, call, tc)
	switch res.Outcome {
	case tool.OutcomeOK:
		fmt.Fprintln(a.narrator, "✔ Data retrieved")
	case tool.OutcomeQuota:
		fmt.Fprintln(a.narrator, "\n⚠️ Global Oracle Network Busy (High Volatility). Using cached/partial routing...")
	default:
		fmt.Fprintf(a.narrator, "\n❌ Network Error: %v\n", res.Err)
	}

	a.logger.Info("tool call",
		"step", a.step,
		"tool", call.Name,
		"outcome", res.Outcome.String(),
		"duration", res.Duration,
	)
	if res.Err != nil {
		a.logger.Warn("tool call degraded", "tool", call.Name, "error", res.Err)
	}
	return res
}

func (a *Agent) onRetry(attempt int, wait time.Duration, err error) {
	fmt.Fprintf(a.narrator, "\n⏳ Free Tier Rate Limit Hit. Waiting %gs before retry... ", wait.Seconds())
	a.logger.Warn("model rate limited", "step", a.step, "attempt", attempt, "wait", wait, "error", err)
}
