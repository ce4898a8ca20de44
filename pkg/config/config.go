// Package config resolves run settings from defaults, a YAML file,
// environment variables and flags, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"alphaagent/pkg/prompt"
	"alphaagent/pkg/report"
)

// Backend selects the model transport.
type Backend string

const (
	BackendProxy      Backend = "proxy"
	BackendGemini     Backend = "gemini"
	BackendOpenRouter Backend = "openrouter"
	BackendEcho       Backend = "echo"
)

const (
	DefaultWebNode    = "https://ghostrouter-web.ghostrouter-lite-demo.workers.dev"
	DefaultCryptoNode = "https://ghostrouter-lite.ghostrouter-lite-demo.workers.dev"
	proxyPath         = "/proxy/gemini"
)

// Environment keys.
const (
	EnvGeminiKey     = "GEMINI_API_KEY"
	EnvOpenRouterKey = "OPENROUTER_API_KEY"
	EnvBackend       = "ALPHA_BACKEND"
	EnvModel         = "ALPHA_MODEL"
	EnvWebNode       = "ALPHA_WEB_NODE"
	EnvCryptoNode    = "ALPHA_CRYPTO_NODE"
	EnvProxyURL      = "ALPHA_PROXY_URL"
	EnvMaxAttempts   = "ALPHA_MAX_ATTEMPTS"
	EnvOTLPEndpoint  = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// ErrMissingAPIKey is returned by Validate when the selected backend has no key.
var ErrMissingAPIKey = errors.New("api key not set")

// Config holds everything a run needs.
type Config struct {
	Backend          Backend `yaml:"backend"`
	APIKey           string  `yaml:"-"`
	OpenRouterAPIKey string  `yaml:"-"`
	Model            string  `yaml:"model"`
	Temperature      float64 `yaml:"temperature"`

	WebNode    string `yaml:"web_node"`
	CryptoNode string `yaml:"crypto_node"`
	ProxyURL   string `yaml:"proxy_url"`

	Prompt            string `yaml:"prompt"`
	Assets            string `yaml:"assets"`
	SystemInstruction string `yaml:"system_instruction"`

	NoFooter   bool   `yaml:"no_footer"`
	FooterText string `yaml:"footer"`

	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	ToolTimeout  time.Duration `yaml:"tool_timeout"`
	ModelTimeout time.Duration `yaml:"model_timeout"` // Zero waits for the model indefinitely
	MaxSteps     int           `yaml:"max_steps"`

	Verbose      bool   `yaml:"verbose"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default returns the settings of a plain run.
func Default() Config {
	return Config{
		Backend:           BackendProxy,
		Temperature:       0.5,
		WebNode:           DefaultWebNode,
		CryptoNode:        DefaultCryptoNode,
		Prompt:            prompt.DefaultUserPrompt,
		Assets:            prompt.DefaultAssets,
		SystemInstruction: prompt.DefaultSystemInstruction,
		MaxAttempts:       5,
		BaseDelay:         2 * time.Second,
		ToolTimeout:       30 * time.Second,
		MaxSteps:          25,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the file keep their value.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays non-empty environment values onto cfg.
// A malformed numeric value is an error.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&cfg.APIKey, EnvGeminiKey)
	set(&cfg.OpenRouterAPIKey, EnvOpenRouterKey)
	set(&cfg.Model, EnvModel)
	set(&cfg.WebNode, EnvWebNode)
	set(&cfg.CryptoNode, EnvCryptoNode)
	set(&cfg.ProxyURL, EnvProxyURL)
	set(&cfg.OTLPEndpoint, EnvOTLPEndpoint)
	if v := strings.TrimSpace(getenv(EnvBackend)); v != "" {
		cfg.Backend = Backend(v)
	}
	if v := strings.TrimSpace(getenv(EnvMaxAttempts)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvMaxAttempts, v)
		}
		cfg.MaxAttempts = n
	}
	return nil
}

// Normalize trims values and fills zero settings with defaults.
func (c *Config) Normalize() {
	d := Default()

	c.Backend = Backend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.OpenRouterAPIKey = strings.TrimSpace(c.OpenRouterAPIKey)
	c.Model = strings.TrimSpace(c.Model)
	c.WebNode = strings.TrimRight(strings.TrimSpace(c.WebNode), "/")
	c.CryptoNode = strings.TrimRight(strings.TrimSpace(c.CryptoNode), "/")
	c.ProxyURL = strings.TrimSpace(c.ProxyURL)

	if c.WebNode == "" {
		c.WebNode = d.WebNode
	}
	if c.CryptoNode == "" {
		c.CryptoNode = d.CryptoNode
	}
	if strings.TrimSpace(c.Prompt) == "" {
		c.Prompt = d.Prompt
	}
	if strings.TrimSpace(c.Assets) == "" {
		c.Assets = d.Assets
	}
	if strings.TrimSpace(c.SystemInstruction) == "" {
		c.SystemInstruction = d.SystemInstruction
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = d.ToolTimeout
	}
	if c.ModelTimeout < 0 {
		c.ModelTimeout = 0
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
}

// Validate checks the settings the selected backend depends on.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendProxy, BackendGemini:
		if c.APIKey == "" {
			return fmt.Errorf("%w: %s must be set in your .env file", ErrMissingAPIKey, EnvGeminiKey)
		}
	case BackendOpenRouter:
		if c.OpenRouterAPIKey == "" {
			return fmt.Errorf("%w: %s must be set in your .env file", ErrMissingAPIKey, EnvOpenRouterKey)
		}
	case BackendEcho:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	for name, raw := range map[string]string{"web_node": c.WebNode, "crypto_node": c.CryptoNode, "proxy_url": c.ProxyURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: invalid url %q", name, raw)
		}
	}
	return nil
}

// ProxyEndpoint is the model proxy URL, derived from the web node unless overridden.
func (c *Config) ProxyEndpoint() string {
	if c.ProxyURL != "" {
		return c.ProxyURL
	}
	return c.WebNode + proxyPath
}

// Decorator builds the report post-processing chain.
func (c *Config) Decorator() report.Decorator {
	var ds []report.Decorator
	switch {
	case c.NoFooter:
	case c.FooterText != "":
		ds = append(ds, report.Append(c.FooterText))
	default:
		ds = append(ds, report.Promo())
	}
	return report.Chain(ds...)
}

// PromptVars are the substitutions available to prompt templates.
func (c *Config) PromptVars() map[string]any {
	return map[string]any{"assets": c.Assets}
}
