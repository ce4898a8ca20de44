// Command alphaagent runs one research conversation against the model proxy
// and prints the resulting report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"alphaagent/pkg/agent"
	"alphaagent/pkg/config"
	"alphaagent/pkg/memory"
	"alphaagent/pkg/oracle"
	"alphaagent/pkg/prompt"
	"alphaagent/pkg/provider"
	"alphaagent/pkg/provider/echo"
	"alphaagent/pkg/provider/gemini"
	"alphaagent/pkg/provider/openrouter"
	"alphaagent/pkg/provider/proxy"
	"alphaagent/pkg/retry"
	"alphaagent/pkg/telemetry"
	"alphaagent/pkg/tool"
	"alphaagent/pkg/tool/builtin"
)

const rule = "======================================================"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	cfg, transcript, err := loadConfig(args, getenv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "❌ Error: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{Endpoint: cfg.OTLPEndpoint, ServiceName: "alphaagent"})
	if err != nil {
		logger.Error("telemetry setup failed", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	llm, closeLLM, err := newProvider(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "❌ Error: %v\n", err)
		return 1
	}
	defer closeLLM()

	// Oracle calls are bounded by the tool timeout on the call context.
	httpClient := &http.Client{}
	web := oracle.NewClient(cfg.WebNode, httpClient)
	crypto := oracle.NewClient(cfg.CryptoNode, httpClient)
	registry := tool.NewRegistry()
	builtin.RegisterAll(registry, web, crypto)
	logger.Debug("tool catalog", "web_node", web.BaseURL(), "crypto_node", crypto.BaseURL(), "tools", tool.Format(registry.List()))

	system := prompt.NewTemplate(cfg.SystemInstruction)
	userPrompt := prompt.NewTemplate(cfg.Prompt)
	for _, tpl := range []prompt.Template{system, userPrompt} {
		if missing := tpl.Missing(cfg.PromptVars()); len(missing) > 0 {
			logger.Warn("unresolved prompt placeholders", "names", missing)
		}
	}

	mem := memory.NewInMemory()
	ag, err := agent.New(agent.Config{
		Provider:     llm,
		Registry:     registry,
		Memory:       mem,
		SystemPrompt: system,
		Vars:         cfg.PromptVars(),
		Retry: retry.Policy{
			MaxAttempts:       cfg.MaxAttempts,
			InitialBackoff:    cfg.BaseDelay,
			BackoffMultiplier: 2,
		},
		Decorator:   cfg.Decorator(),
		MaxSteps:    cfg.MaxSteps,
		ToolTimeout: cfg.ToolTimeout,
		Narrator:    stdout,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to build agent", "error", err)
		return 1
	}

	fmt.Fprint(stdout, "🔌 Syncing with Global Alpha Network... ")
	fmt.Fprintln(stdout, "✔ Connected")
	fmt.Fprintln(stdout, "\n🤖 Agent: Researching current market sentiment... (This may take a minute)")

	input := userPrompt.Render(cfg.PromptVars())
	final, err := ag.Run(ctx, input)
	if transcript {
		fmt.Fprintf(stderr, "\n--- Conversation Transcript ---\n%s\n", memory.FormatHistory(mem.History()))
	}
	if err != nil {
		fmt.Fprintln(stderr, "\nFATAL INTERNAL ERROR:")
		fmt.Fprintln(stderr, err)
		logger.Error("agent run failed", "steps", ag.Steps(), "kind", provider.KindOf(err).String(), "error", err)
		return 1
	}

	fmt.Fprintf(stdout, "\n%s\n📈 DEEP ALPHA REPORT GENERATED\n%s\n%s\n", rule, rule, final)
	return 0
}

// loadConfig layers defaults, the optional YAML file, the environment and flags.
func loadConfig(args []string, getenv func(string) string, stderr io.Writer) (config.Config, bool, error) {
	cfg := config.Default()

	fs := flag.NewFlagSet("alphaagent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath  = fs.String("config", "", "YAML config file")
		backend     = fs.String("backend", string(cfg.Backend), "Model backend: proxy, gemini, openrouter or echo")
		model       = fs.String("model", "", "Model name for the gemini and openrouter backends")
		userPrompt  = fs.String("prompt", cfg.Prompt, "User prompt template")
		assets      = fs.String("assets", cfg.Assets, "Assets substituted for {{assets}}")
		noFooter    = fs.Bool("no-footer", false, "Do not append the footer block to the report")
		verbose     = fs.Bool("verbose", false, "Debug logging")
		transcript  = fs.Bool("transcript", false, "Print the conversation transcript to stderr")
		maxAttempts = fs.Int("max-attempts", cfg.MaxAttempts, "Model attempts per turn under rate limiting")
		maxSteps    = fs.Int("max-steps", cfg.MaxSteps, "Upper bound on model turns")
	)
	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}

	if *configPath != "" {
		if err := config.LoadFile(*configPath, &cfg); err != nil {
			return cfg, false, err
		}
	}
	if err := config.ApplyEnv(&cfg, getenv); err != nil {
		return cfg, false, err
	}

	// Explicit flags win over file and environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = config.Backend(*backend)
		case "model":
			cfg.Model = *model
		case "prompt":
			cfg.Prompt = *userPrompt
		case "assets":
			cfg.Assets = *assets
		case "no-footer":
			cfg.NoFooter = *noFooter
		case "verbose":
			cfg.Verbose = *verbose
		case "max-attempts":
			cfg.MaxAttempts = *maxAttempts
		case "max-steps":
			cfg.MaxSteps = *maxSteps
		}
	})

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, false, err
	}
	return cfg, *transcript, nil
}

// newProvider builds the selected backend and its cleanup function.
func newProvider(ctx context.Context, cfg config.Config) (provider.ChatModel, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case config.BackendGemini:
		m, err := gemini.NewChatModel(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, noop, err
		}
		return m, func() { _ = m.Close() }, nil
	case config.BackendOpenRouter:
		m, err := openrouter.NewChatModel(openrouter.Config{
			APIKey:      cfg.OpenRouterAPIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			AppName:     "alphaagent",
			HTTPClient:  modelHTTPClient(cfg),
		})
		return m, noop, err
	case config.BackendEcho:
		return echo.New(""), noop, nil
	default:
		m, err := proxy.NewChatModel(proxy.Config{
			URL:        cfg.ProxyEndpoint(),
			APIKey:     cfg.APIKey,
			HTTPClient: modelHTTPClient(cfg),
		})
		return m, noop, err
	}
}

// modelHTTPClient is shared by the HTTP model backends. A zero ModelTimeout
// leaves requests bounded only by ctx.
func modelHTTPClient(cfg config.Config) *http.Client {
	return &http.Client{Timeout: cfg.ModelTimeout}
}
