package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphaagent/pkg/oracle"
	"alphaagent/pkg/prompt"
	"alphaagent/pkg/provider"
	"alphaagent/pkg/provider/proxy"
	"alphaagent/pkg/report"
	"alphaagent/pkg/retry"
	"alphaagent/pkg/tool"
	"alphaagent/pkg/tool/builtin"
	"alphaagent/pkg/types"
)

// scriptedModel replays canned turns or errors, one per Generate call.
type scriptedModel struct {
	steps    []scriptStep
	requests []provider.Request
}

type scriptStep struct {
	turn types.Content
	err  error
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Generate(_ context.Context, req provider.Request) (*types.ChatResponse, error) {
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i >= len(m.steps) {
		return nil, errors.New("script exhausted")
	}
	if m.steps[i].err != nil {
		return nil, m.steps[i].err
	}
	return &types.ChatResponse{Content: m.steps[i].turn}, nil
}

func callTurn(names ...string) scriptStep {
	turn := types.Content{Role: types.RoleModel}
	for _, n := range names {
		turn.Parts = append(turn.Parts, types.Part{FunctionCall: &types.FunctionCall{Name: n, Args: map[string]any{"query": n}}})
	}
	return scriptStep{turn: turn}
}

func textTurn(s string) scriptStep {
	return scriptStep{turn: types.Content{Role: types.RoleModel, Parts: []types.Part{types.Text(s)}}}
}

func rateLimited() scriptStep {
	return scriptStep{err: &provider.Error{
		Provider: "scripted",
		Kind:     provider.KindRateLimited,
		Code:     429,
		Message:  "Resource has been exhausted",
	}}
}

// recordedSleep captures backoff waits without sleeping.
type recordedSleep struct {
	waits []time.Duration
}

func (s *recordedSleep) Sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

// oracleServer answers tools/call with a text result, or the given status.
func oracleServer(t *testing.T, status int, text string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/message", r.URL.Path)
		var req oracle.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tools/call", req.Method)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]any{"content": []map[string]any{{"type": "text", "text": text}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newRegistry(web, crypto *httptest.Server) *tool.Registry {
	r := tool.NewRegistry()
	builtin.RegisterAll(r, oracle.NewClient(web.URL, web.Client()), oracle.NewClient(crypto.URL, crypto.Client()))
	return r
}

func newAgent(t *testing.T, model provider.ChatModel, registry *tool.Registry, sleep *recordedSleep, narrator *bytes.Buffer) *Agent {
	t.Helper()
	cfg := Config{
		Provider:  model,
		Registry:  registry,
		Decorator: report.Promo(),
		Sleep:     sleep.Sleep,
		RunID:     "test-run",
	}
	if narrator != nil {
		cfg.Narrator = narrator
	}
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func TestNew_RequiresProvider(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRun_TwoTurnsPerToolStep(t *testing.T) {
	web, webHits := oracleServer(t, http.StatusOK, "news")
	crypto, cryptoHits := oracleServer(t, http.StatusOK, "prices")

	model := &scriptedModel{steps: []scriptStep{
		callTurn(builtin.GetAllPrices),
		callTurn(builtin.WebSearch),
		textTurn("LONG SOL"),
	}}
	a := newAgent(t, model, newRegistry(web, crypto), &recordedSleep{}, nil)

	out, err := a.Run(context.Background(), "report please")
	require.NoError(t, err)
	assert.Equal(t, "LONG SOL"+report.PromoBlock, out)
	assert.Equal(t, StateDone, a.State())
	assert.Equal(t, 3, a.Steps())

	history := a.History()
	require.Len(t, history, 1+2+2+1)
	assert.Equal(t, types.RoleUser, history[0].Role)
	for _, i := range []int{1, 3} {
		assert.Equal(t, types.RoleModel, history[i].Role)
		require.Len(t, history[i+1].Parts, 1)
		assert.Equal(t, types.RoleUser, history[i+1].Role)
		resp := history[i+1].Parts[0].FunctionResponse
		require.NotNil(t, resp)
		assert.Equal(t, history[i].Parts[0].FunctionCall.Name, resp.Name)
	}
	assert.Equal(t, map[string]any{"output": "prices"}, history[2].Parts[0].FunctionResponse.Response["content"])
	assert.Equal(t, map[string]any{"output": "news"}, history[4].Parts[0].FunctionResponse.Response["content"])
	assert.Equal(t, int32(1), webHits.Load())
	assert.Equal(t, int32(1), cryptoHits.Load())

	// Every request carries the full conversation so far plus the catalog.
	require.Len(t, model.requests, 3)
	for i, req := range model.requests {
		assert.Len(t, req.Contents, 1+2*i)
		assert.Len(t, req.Tools, 3)
		assert.Contains(t, req.SystemInstruction, "alpha researcher")
	}
}

func TestExecuteTurn_RetriesRateLimitThenSucceeds(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{rateLimited(), rateLimited(), textTurn("X")}}
	sleep := &recordedSleep{}
	var narration bytes.Buffer
	a := newAgent(t, model, nil, sleep, &narration)
	a.memory.Append(types.NewUserText("go"))

	done, err := a.ExecuteTurn(context.Background())
	require.NoError(t, err)
	assert.True(t, done)
	assert.Len(t, model.requests, 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleep.waits)

	var total time.Duration
	for _, w := range sleep.waits {
		total += w
	}
	assert.Equal(t, 6*time.Second, total)
	assert.Contains(t, narration.String(), "Waiting 2s before retry")
	assert.Contains(t, narration.String(), "Waiting 4s before retry")
	assert.Equal(t, 2, a.memory.Len(), "rate-limited attempts append no turns")
}

func TestExecuteTurn_ExhaustsRetries(t *testing.T) {
	steps := make([]scriptStep, 6)
	for i := range steps {
		steps[i] = rateLimited()
	}
	model := &scriptedModel{steps: steps}
	sleep := &recordedSleep{}
	a := newAgent(t, model, nil, sleep, nil)
	a.memory.Append(types.NewUserText("go"))

	done, err := a.ExecuteTurn(context.Background())
	require.Error(t, err)
	assert.False(t, done)
	assert.True(t, errors.Is(err, retry.ErrMaxRetries))
	assert.Contains(t, err.Error(), "exceeded maximum retries")
	assert.Len(t, model.requests, 5, "no sixth request")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, sleep.waits)
	assert.Equal(t, StateAwaitingModel, a.State())
	assert.Equal(t, 1, a.memory.Len())
}

func TestExecuteTurn_NonRetryableErrorIsFatal(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{{err: &provider.Error{
		Provider: "scripted",
		Kind:     provider.KindOther,
		Code:     400,
		Message:  "API key not valid",
	}}}}
	sleep := &recordedSleep{}
	a := newAgent(t, model, nil, sleep, nil)
	a.memory.Append(types.NewUserText("go"))

	_, err := a.ExecuteTurn(context.Background())
	require.Error(t, err)
	assert.Equal(t, provider.KindOther, provider.KindOf(err))
	assert.Len(t, model.requests, 1)
	assert.Empty(t, sleep.waits)
}

func TestExecuteTurn_InvalidJSONIsFatal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>Bad Gateway</html>"))
	}))
	defer srv.Close()

	model, err := proxy.NewChatModel(proxy.Config{URL: srv.URL, APIKey: "k", HTTPClient: srv.Client()})
	require.NoError(t, err)
	sleep := &recordedSleep{}
	a := newAgent(t, model, nil, sleep, nil)

	_, err = a.Run(context.Background(), "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid JSON from Gemini Proxy. Upstream failure.")
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, sleep.waits)
}

func TestExecuteTurn_ToolPaymentRequired(t *testing.T) {
	web, _ := oracleServer(t, http.StatusPaymentRequired, "")
	crypto, _ := oracleServer(t, http.StatusOK, "prices")

	model := &scriptedModel{steps: []scriptStep{callTurn(builtin.WebSearch)}}
	var narration bytes.Buffer
	a := newAgent(t, model, newRegistry(web, crypto), &recordedSleep{}, &narration)
	a.memory.Append(types.NewUserText("go"))

	done, err := a.ExecuteTurn(context.Background())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, StateAwaitingModel, a.State())

	history := a.History()
	require.Len(t, history, 3)
	last := history[2]
	assert.Equal(t, types.RoleUser, last.Role)
	require.Len(t, last.Parts, 1)
	require.NotNil(t, last.Parts[0].FunctionResponse)
	assert.Equal(t, map[string]any{
		"name":    builtin.WebSearch,
		"content": map[string]any{"output": tool.QuotaFallback},
	}, last.Parts[0].FunctionResponse.Response)
	assert.Contains(t, narration.String(), "Global Oracle Network Busy")
}

func TestExecuteTurn_ToolNetworkFailure(t *testing.T) {
	web, _ := oracleServer(t, http.StatusOK, "news")
	crypto, _ := oracleServer(t, http.StatusInternalServerError, "")

	model := &scriptedModel{steps: []scriptStep{callTurn(builtin.GetAllPrices)}}
	var narration bytes.Buffer
	a := newAgent(t, model, newRegistry(web, crypto), &recordedSleep{}, &narration)
	a.memory.Append(types.NewUserText("go"))

	_, err := a.ExecuteTurn(context.Background())
	require.NoError(t, err)
	resp := a.History()[2].Parts[0].FunctionResponse
	assert.Equal(t, map[string]any{"output": tool.NetworkFallback}, resp.Response["content"])
	assert.Contains(t, narration.String(), "Network Error")
}

func TestExecuteTurn_AllCallsAnsweredInOneTurn(t *testing.T) {
	web, webHits := oracleServer(t, http.StatusOK, "news")
	crypto, cryptoHits := oracleServer(t, http.StatusOK, "prices")

	model := &scriptedModel{steps: []scriptStep{callTurn(builtin.GetAllPrices, builtin.WebSearch, builtin.ReadWebpage)}}
	var narration bytes.Buffer
	a := newAgent(t, model, newRegistry(web, crypto), &recordedSleep{}, &narration)
	a.memory.Append(types.NewUserText("go"))

	_, err := a.ExecuteTurn(context.Background())
	require.NoError(t, err)

	history := a.History()
	require.Len(t, history, 3)
	parts := history[2].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, builtin.GetAllPrices, parts[0].FunctionResponse.Name)
	assert.Equal(t, builtin.WebSearch, parts[1].FunctionResponse.Name)
	assert.Equal(t, builtin.ReadWebpage, parts[2].FunctionResponse.Name)
	assert.Equal(t, int32(2), webHits.Load())
	assert.Equal(t, int32(1), cryptoHits.Load())
	assert.Equal(t, 3, bytes.Count(narration.Bytes(), []byte("Data retrieved")))
}

func TestExecuteTurn_FinalText(t *testing.T) {
	tests := []struct {
		name string
		turn types.Content
		want string
	}{
		{
			name: "first text part",
			turn: types.Content{Parts: []types.Part{types.Text("X"), types.Text("ignored")}},
			want: "X" + report.PromoBlock,
		},
		{
			name: "no text",
			turn: types.Content{Role: types.RoleModel},
			want: report.DefaultReport + report.PromoBlock,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &scriptedModel{steps: []scriptStep{{turn: tt.turn}}}
			a := newAgent(t, model, nil, &recordedSleep{}, nil)
			a.memory.Append(types.NewUserText("go"))

			done, err := a.ExecuteTurn(context.Background())
			require.NoError(t, err)
			assert.True(t, done)
			assert.Equal(t, tt.want, a.Report())
			assert.Equal(t, StateDone, a.State())
			assert.Equal(t, types.RoleModel, a.History()[1].Role, "missing role defaults to model")

			// A finished driver does not call the model again.
			done, err = a.ExecuteTurn(context.Background())
			require.NoError(t, err)
			assert.True(t, done)
			assert.Len(t, model.requests, 1)
		})
	}
}

func TestRun_NoDecorator(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{textTurn("plain")}}
	a, err := New(Config{Provider: model})
	require.NoError(t, err)

	out, err := a.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestRun_MaxSteps(t *testing.T) {
	web, _ := oracleServer(t, http.StatusOK, "news")
	crypto, _ := oracleServer(t, http.StatusOK, "prices")

	model := &scriptedModel{steps: []scriptStep{
		callTurn(builtin.WebSearch),
		callTurn(builtin.WebSearch),
		callTurn(builtin.WebSearch),
	}}
	a, err := New(Config{Provider: model, Registry: newRegistry(web, crypto), MaxSteps: 2})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "go")
	assert.True(t, errors.Is(err, ErrMaxSteps))
	assert.Len(t, model.requests, 2)
}

func TestRun_CancelledDuringBackoff(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{rateLimited(), textTurn("late")}}
	ctx, cancel := context.WithCancel(context.Background())
	a, err := New(Config{
		Provider: model,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})
	require.NoError(t, err)

	_, err = a.Run(ctx, "go")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, model.requests, 1)
}

func TestSystemPromptVars(t *testing.T) {
	model := &scriptedModel{steps: []scriptStep{textTurn("ok")}}
	a, err := New(Config{
		Provider:     model,
		SystemPrompt: prompt.NewTemplate("Focus on {{assets}}."),
		Vars:         map[string]any{"assets": "ETH"},
	})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "Focus on ETH.", model.requests[0].SystemInstruction)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "AWAITING_MODEL", StateAwaitingModel.String())
	assert.Equal(t, "TOOL_PENDING", StateToolPending.String())
	assert.Equal(t, "DONE", StateDone.String())
}
